// Copyright (c) 2018, Google Inc. All rights reserved.
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

// Package tpmutil provides the TPM 2.0 wire codec and helpers for talking to
// stream-oriented TPM devices.
package tpmutil

import (
	"errors"
	"fmt"
	"io"
)

// MaxResponse is the largest response accepted from a stream device.
const MaxResponse = 4096

// ErrShortResponse is returned when a device answers with fewer bytes than a
// response header.
var ErrShortResponse = errors.New("tpmutil: response shorter than header")

// ResponseHeader decodes the tag, declared size and raw response code at the
// start of a TPM response.
func ResponseHeader(rsp []byte) (tag Tag, size uint32, rc ResponseCode, err error) {
	if len(rsp) < headerSize {
		return 0, 0, 0, fmt.Errorf("%w: got %d bytes", ErrShortResponse, len(rsp))
	}
	var rh responseHeader
	if _, err := Unpack(rsp[:headerSize], &rh); err != nil {
		return 0, 0, 0, err
	}
	return rh.Tag, rh.Size, rh.Res, nil
}

// CommandHeader encodes a command header. The size field covers the header
// and body.
func CommandHeader(tag Tag, bodySize int, cmd Command) ([]byte, error) {
	return Pack(commandHeader{Tag: tag, Size: uint32(headerSize + bodySize), Cmd: cmd})
}

// RunCommandRaw writes a fully encoded command to rw and reads back a single
// response. The response is returned undecoded after checking that its
// declared size matches the number of bytes read.
func RunCommandRaw(rw io.ReadWriter, inb []byte) ([]byte, error) {
	if rw == nil {
		return nil, errors.New("nil TPM handle")
	}
	if _, err := rw.Write(inb); err != nil {
		return nil, err
	}

	outb := make([]byte, MaxResponse)
	outlen, err := rw.Read(outb)
	if err != nil {
		return nil, err
	}
	// Resize the buffer to match the amount read from the TPM.
	outb = outb[:outlen]

	_, size, _, err := ResponseHeader(outb)
	if err != nil {
		return nil, err
	}
	if int(size) != len(outb) {
		return nil, fmt.Errorf("tpmutil: response declares %d bytes, read %d", size, len(outb))
	}
	return outb, nil
}
