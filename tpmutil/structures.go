// Copyright (c) 2018, Google LLC All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tpmutil

// RawBytes is for Pack arguments that are already encoded. Compared to
// []byte, RawBytes will not be prepended with slice length during encoding.
type RawBytes []byte

// TPMMarshal writes b without a length prefix.
func (b RawBytes) TPMMarshal(out *Buffer) { out.WriteBytes(b) }

// U8Bytes is a byte slice with an 8-bit header.
type U8Bytes []byte

// TPMMarshal packs U8Bytes.
func (b U8Bytes) TPMMarshal(out *Buffer) { out.WriteSized(Size8, b) }

// TPMUnmarshal unpacks U8Bytes.
func (b *U8Bytes) TPMUnmarshal(in *Buffer) { *b = in.ReadSized(Size8) }

// U16Bytes is a byte slice with a 16-bit header.
type U16Bytes []byte

// TPMMarshal packs U16Bytes.
func (b U16Bytes) TPMMarshal(out *Buffer) { out.WriteSized(Size16, b) }

// TPMUnmarshal unpacks U16Bytes.
func (b *U16Bytes) TPMUnmarshal(in *Buffer) { *b = in.ReadSized(Size16) }

// U32Bytes is a byte slice with a 32-bit header.
type U32Bytes []byte

// TPMMarshal packs U32Bytes.
func (b U32Bytes) TPMMarshal(out *Buffer) { out.WriteSized(Size32, b) }

// TPMUnmarshal unpacks U32Bytes.
func (b *U32Bytes) TPMUnmarshal(in *Buffer) { *b = in.ReadSized(Size32) }

// Tag is a command tag.
type Tag uint16

// Command is an identifier of a TPM command.
type Command uint32

// ResponseCode is a response code returned by TPM.
type ResponseCode uint32

// RCSuccess is response code for successful command.
const RCSuccess ResponseCode = 0x000

// A Handle is a reference to a TPM object.
type Handle uint32

// commandHeader is the header for a TPM command.
type commandHeader struct {
	Tag  Tag
	Size uint32
	Cmd  Command
}

// responseHeader is the header for TPM responses.
type responseHeader struct {
	Tag  Tag
	Size uint32
	Res  ResponseCode
}

// headerSize is the encoded size of both header types.
const headerSize = 10
