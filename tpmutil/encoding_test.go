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

package tpmutil

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type invalidPacked struct {
	A []int
	B uint32
}

type simplePacked struct {
	A uint32
	B uint32
}

type nestedPacked struct {
	SP simplePacked
	C  uint32
}

type nestedSlice struct {
	A uint32
	S []byte
}

type prefixed struct {
	Small U8Bytes
	Mid   U16Bytes
	Large U32Bytes
	Raw   RawBytes
}

func TestEncodingPackInvalid(t *testing.T) {
	var invalid []int
	if _, err := Pack(invalid); err == nil {
		t.Fatal("Pack incorrectly succeeds for a slice of integers")
	}
	if _, err := Pack(&invalid); err == nil {
		t.Fatal("Pack incorrectly succeeds for a pointer to a slice of integers")
	}
	invalid2 := invalidPacked{A: make([]int, 10), B: 137}
	if _, err := Pack(invalid2); err == nil {
		t.Fatal("Pack incorrectly succeeds for a struct that contains an integer slice")
	}
	if _, err := Pack(nil); err == nil {
		t.Fatal("Pack incorrectly succeeds for nil")
	}
	if _, err := Pack(3); err == nil {
		t.Fatal("Pack incorrectly succeeds for a platform-sized int")
	}
}

func TestEncodingPack(t *testing.T) {
	buf := []byte{1, 2, 3}
	tests := []struct {
		name string
		in   interface{}
		want []byte
	}{
		{"uint8", uint8(0xfe), []byte{0xfe}},
		{"uint16", uint16(0x0102), []byte{1, 2}},
		{"uint32", uint32(0x01020304), []byte{1, 2, 3, 4}},
		{"uint64", uint64(0x0102030405060708), []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{"int16", int16(-1), []byte{0xff, 0xff}},
		{"bool", true, []byte{1}},
		{"bytes", buf, []byte{0, 3, 1, 2, 3}},
		{"bytes pointer", &buf, []byte{0, 3, 1, 2, 3}},
		{"empty bytes", []byte(nil), []byte{0, 0}},
		{"struct", simplePacked{1, 2}, []byte{0, 0, 0, 1, 0, 0, 0, 2}},
		{"nested", nestedPacked{simplePacked{1, 2}, 3}, []byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3}},
		{"nested slice", nestedSlice{1, buf}, []byte{0, 0, 0, 1, 0, 3, 1, 2, 3}},
		{"prefixed", prefixed{U8Bytes{9}, U16Bytes{8}, U32Bytes{7}, RawBytes{6}},
			[]byte{1, 9, 0, 1, 8, 0, 0, 0, 1, 7, 6}},
		{"array", [2]uint16{1, 2}, []byte{0, 1, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Pack(tt.in)
			if err != nil {
				t.Fatalf("Pack(%#v) failed: %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Pack(%#v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestEncodingCommandHeader(t *testing.T) {
	body, err := Pack(uint32(137))
	if err != nil {
		t.Fatalf("Pack() = %v", err)
	}
	hdr, err := CommandHeader(0x8001, len(body), 0x17b)
	if err != nil {
		t.Fatalf("CommandHeader() = %v", err)
	}
	want := []byte{0x80, 0x01, 0, 0, 0, 14, 0, 0, 0x01, 0x7b}
	if !bytes.Equal(hdr, want) {
		t.Fatalf("CommandHeader() = %x, want %x", hdr, want)
	}

	var ch commandHeader
	var v uint32
	if _, err := Unpack(append(hdr, body...), &ch, &v); err != nil {
		t.Fatalf("Unpack() = %v", err)
	}
	if ch.Size != 14 || v != 137 {
		t.Fatalf("Unpack() = %+v, %d", ch, v)
	}
}

func TestEncodingInvalidUnpack(t *testing.T) {
	var i *uint32
	ui := []byte{0, 0, 0, 0}
	if _, err := Unpack(ui, i); err == nil {
		t.Fatal("Unpack incorrectly deserialized into a nil pointer")
	}

	var ii uint32
	if _, err := Unpack(ui, ii); err == nil {
		t.Fatal("Unpack incorrectly deserialized into a non pointer")
	}

	var b []byte
	if _, err := Unpack(nil, &b); err == nil {
		t.Fatal("Unpack incorrectly deserialized an empty input into a byte slice")
	}

	// A length of one with no payload.
	if _, err := Unpack([]byte{0, 1}, &b); err == nil {
		t.Fatal("Unpack incorrectly deserialized a byte array that didn't have enough bytes available")
	}

	var iii []int
	if _, err := Unpack([]byte{0, 1, 0}, &iii); err == nil {
		t.Fatal("Unpack incorrectly deserialized into a slice of ints")
	}
}

func TestEncodingUnpack(t *testing.T) {
	var b []byte
	if _, err := Unpack([]byte{0, 0}, &b); err != nil {
		t.Fatalf("Unpack failed to unpack the empty byte array: %v", err)
	}

	n, err := Unpack([]byte{0, 1, 137}, &b)
	if err != nil {
		t.Fatalf("Unpack failed to unpack a byte array with a single value in it: %v", err)
	}
	if n != 3 || !bytes.Equal(b, []byte{137}) {
		t.Fatalf("Unpack() = %d, %x; want 3, 89", n, b)
	}

	sp := simplePacked{137, 138}
	bsp, err := Pack(sp)
	if err != nil {
		t.Fatalf("Pack() = %v", err)
	}
	var sp2 simplePacked
	if _, err := Unpack(bsp, &sp2); err != nil {
		t.Fatalf("Unpack() = %v", err)
	}
	if sp != sp2 {
		t.Fatalf("Unpacked simple struct = %+v, want %+v", sp2, sp)
	}
	if _, err := Unpack(bsp[:len(bsp)-1], &sp2); err == nil {
		t.Fatal("Unpack incorrectly unpacked from a byte array that didn't have enough values")
	}

	np := nestedPacked{sp, 139}
	bnp, err := Pack(np)
	if err != nil {
		t.Fatalf("Pack() = %v", err)
	}
	var np2 nestedPacked
	if _, err := Unpack(bnp, &np2); err != nil {
		t.Fatalf("Unpack() = %v", err)
	}
	if np != np2 {
		t.Fatalf("Unpacked nested struct = %+v, want %+v", np2, np)
	}

	pp := prefixed{U8Bytes{9}, U16Bytes{8, 8}, U32Bytes{7, 7, 7}, nil}
	bpp, err := Pack(pp)
	if err != nil {
		t.Fatalf("Pack() = %v", err)
	}
	var pp2 struct {
		Small U8Bytes
		Mid   U16Bytes
		Large U32Bytes
	}
	if _, err := Unpack(bpp, &pp2); err != nil {
		t.Fatalf("Unpack() = %v", err)
	}
	if diff := cmp.Diff([]byte(pp.Large), []byte(pp2.Large)); diff != "" {
		t.Errorf("U32Bytes mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(pp.Small, pp2.Small) || !bytes.Equal(pp.Mid, pp2.Mid) {
		t.Errorf("Unpacked prefixed struct = %+v, want %+v", pp2, pp)
	}
}

func TestResponseHeader(t *testing.T) {
	rsp := []byte{0x80, 0x01, 0, 0, 0, 10, 0, 0, 0x09, 0x22}
	tag, size, rc, err := ResponseHeader(rsp)
	if err != nil {
		t.Fatalf("ResponseHeader() = %v", err)
	}
	if tag != 0x8001 || size != 10 || rc != 0x922 {
		t.Errorf("ResponseHeader() = %#x, %d, %#x", tag, size, rc)
	}
	if _, _, _, err := ResponseHeader(rsp[:9]); err == nil {
		t.Error("ResponseHeader() succeeded on a short response")
	}
}
