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

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SizeWidth is the width in bytes of a length prefix.
type SizeWidth int

// Length prefix widths used by TPM structures.
const (
	Size8  SizeWidth = 1
	Size16 SizeWidth = 2
	Size32 SizeWidth = 4
)

func (w SizeWidth) max() uint64 {
	switch w {
	case Size8:
		return math.MaxUint8
	case Size16:
		return math.MaxUint16
	case Size32:
		return math.MaxUint32
	}
	return 0
}

var (
	// ErrOverflow is the fault recorded when a read or write crosses the
	// end of the buffer or of the active sized frame.
	ErrOverflow = errors.New("tpmutil: buffer overflow")
	// ErrSizeMismatch is the fault recorded when a sized structure was not
	// consumed exactly.
	ErrSizeMismatch = errors.New("tpmutil: sized structure length mismatch")
)

// frame is an active sized structure. On the write side start is the offset
// of the reserved size field; on the read side start is the offset of the
// first payload byte and size is the declared length.
type frame struct {
	start int
	size  int
	width SizeWidth
}

// Buffer is a marshalling cursor over a byte slice.
//
// Errors are sticky: the first out-of-bounds access or structural violation
// is recorded and every following operation becomes a no-op, so that a
// caller can run a whole sequence of reads or writes and inspect Err once.
// Reads return zero values after a fault.
type Buffer struct {
	data   []byte
	pos    int
	limit  int
	frames []frame
	err    error
}

// NewBuffer returns a Buffer for writing. A capacity of zero or less means
// the buffer grows without limit.
func NewBuffer(capacity int) *Buffer {
	b := &Buffer{limit: -1}
	if capacity > 0 {
		b.data = make([]byte, 0, capacity)
		b.limit = capacity
	}
	return b
}

// NewReader returns a Buffer for reading data.
func NewReader(data []byte) *Buffer {
	return &Buffer{data: data, limit: len(data)}
}

// Bytes returns the bytes written so far.
func (b *Buffer) Bytes() []byte { return b.data }

// Pos returns the current read or write position.
func (b *Buffer) Pos() int { return b.pos }

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return len(b.data) - b.pos }

// Err returns the sticky fault, if any.
func (b *Buffer) Err() error { return b.err }

// SetErr records err as the sticky fault unless one is already recorded.
func (b *Buffer) SetErr(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// Failf records a formatted fault.
func (b *Buffer) Failf(format string, args ...interface{}) {
	b.SetErr(fmt.Errorf(format, args...))
}

// ok reports whether the buffer is still healthy.
func (b *Buffer) ok() bool { return b.err == nil }

// reserve makes room for n more bytes at the write position and returns
// the slice to fill, or nil after recording a fault.
func (b *Buffer) reserve(n int) []byte {
	if !b.ok() {
		return nil
	}
	if b.limit >= 0 && len(b.data)+n > b.limit {
		b.Failf("%w: writing %d bytes at offset %d with capacity %d", ErrOverflow, n, len(b.data), b.limit)
		return nil
	}
	b.data = append(b.data, make([]byte, n)...)
	b.pos = len(b.data)
	return b.data[len(b.data)-n:]
}

// take consumes n bytes at the read position, honoring the innermost sized
// frame.
func (b *Buffer) take(n int) []byte {
	if !b.ok() {
		return nil
	}
	end := len(b.data)
	if len(b.frames) > 0 {
		f := b.frames[len(b.frames)-1]
		end = f.start + f.size
	}
	if n < 0 || b.pos+n > end {
		b.Failf("%w: reading %d bytes at offset %d with %d available", ErrOverflow, n, b.pos, end-b.pos)
		return nil
	}
	out := b.data[b.pos : b.pos+n]
	b.pos += n
	return out
}

// WriteU8 writes a single byte.
func (b *Buffer) WriteU8(v uint8) {
	if p := b.reserve(1); p != nil {
		p[0] = v
	}
}

// WriteU16 writes a big-endian uint16.
func (b *Buffer) WriteU16(v uint16) {
	if p := b.reserve(2); p != nil {
		binary.BigEndian.PutUint16(p, v)
	}
}

// WriteU32 writes a big-endian uint32.
func (b *Buffer) WriteU32(v uint32) {
	if p := b.reserve(4); p != nil {
		binary.BigEndian.PutUint32(p, v)
	}
}

// WriteU64 writes a big-endian uint64.
func (b *Buffer) WriteU64(v uint64) {
	if p := b.reserve(8); p != nil {
		binary.BigEndian.PutUint64(p, v)
	}
}

// ReadU8 reads a single byte.
func (b *Buffer) ReadU8() uint8 {
	if p := b.take(1); p != nil {
		return p[0]
	}
	return 0
}

// ReadU16 reads a big-endian uint16.
func (b *Buffer) ReadU16() uint16 {
	if p := b.take(2); p != nil {
		return binary.BigEndian.Uint16(p)
	}
	return 0
}

// ReadU32 reads a big-endian uint32.
func (b *Buffer) ReadU32() uint32 {
	if p := b.take(4); p != nil {
		return binary.BigEndian.Uint32(p)
	}
	return 0
}

// ReadU64 reads a big-endian uint64.
func (b *Buffer) ReadU64() uint64 {
	if p := b.take(8); p != nil {
		return binary.BigEndian.Uint64(p)
	}
	return 0
}

// WriteBytes writes raw bytes without a length prefix.
func (b *Buffer) WriteBytes(v []byte) {
	if p := b.reserve(len(v)); p != nil {
		copy(p, v)
	}
}

// ReadBytes reads exactly n raw bytes. The result is a copy.
func (b *Buffer) ReadBytes(n int) []byte {
	p := b.take(n)
	if p == nil {
		return nil
	}
	return append([]byte(nil), p...)
}

// writeSize writes v using the given prefix width.
func (b *Buffer) writeSize(w SizeWidth, v int) {
	if v < 0 || uint64(v) > w.max() {
		b.Failf("%w: length %d does not fit a %d-byte size field", ErrOverflow, v, int(w))
		return
	}
	switch w {
	case Size8:
		b.WriteU8(uint8(v))
	case Size16:
		b.WriteU16(uint16(v))
	case Size32:
		b.WriteU32(uint32(v))
	default:
		b.Failf("tpmutil: invalid size width %d", int(w))
	}
}

// readSize reads a length prefix of the given width.
func (b *Buffer) readSize(w SizeWidth) int {
	switch w {
	case Size8:
		return int(b.ReadU8())
	case Size16:
		return int(b.ReadU16())
	case Size32:
		v := b.ReadU32()
		if uint64(v) > math.MaxInt32 {
			b.Failf("%w: declared length %d is too large", ErrOverflow, v)
			return 0
		}
		return int(v)
	}
	b.Failf("tpmutil: invalid size width %d", int(w))
	return 0
}

// WriteSized writes v prefixed with its length in a w-byte field.
func (b *Buffer) WriteSized(w SizeWidth, v []byte) {
	b.writeSize(w, len(v))
	b.WriteBytes(v)
}

// ReadSized reads a w-byte length prefix followed by that many bytes.
func (b *Buffer) ReadSized(w SizeWidth) []byte {
	n := b.readSize(w)
	if !b.ok() {
		return nil
	}
	return b.ReadBytes(n)
}

// WriteList writes a 4-byte element count followed by the elements, each
// produced by calling elem with its index.
func (b *Buffer) WriteList(count int, elem func(i int)) {
	b.writeSize(Size32, count)
	for i := 0; i < count && b.ok(); i++ {
		elem(i)
	}
}

// ReadList reads a 4-byte element count and calls elem that many times.
// It returns the count that was read. limit bounds the accepted count.
func (b *Buffer) ReadList(limit int, elem func(i int)) int {
	n := b.readSize(Size32)
	if !b.ok() {
		return 0
	}
	if n > limit {
		b.Failf("%w: list of %d elements exceeds limit %d", ErrOverflow, n, limit)
		return 0
	}
	for i := 0; i < n && b.ok(); i++ {
		elem(i)
	}
	return n
}

// BeginSized reserves a w-byte size field for a structure whose length is
// not yet known. Every BeginSized must be matched by EndSized.
func (b *Buffer) BeginSized(w SizeWidth) {
	if !b.ok() {
		return
	}
	b.frames = append(b.frames, frame{start: len(b.data), width: w})
	b.reserve(int(w))
}

// EndSized patches the size field reserved by the matching BeginSized with
// the number of bytes written since.
func (b *Buffer) EndSized() {
	if len(b.frames) == 0 {
		b.Failf("tpmutil: EndSized without BeginSized")
		return
	}
	f := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]
	if !b.ok() {
		return
	}
	n := len(b.data) - f.start - int(f.width)
	if uint64(n) > f.width.max() {
		b.Failf("%w: sized structure of %d bytes does not fit a %d-byte size field", ErrOverflow, n, int(f.width))
		return
	}
	field := b.data[f.start : f.start+int(f.width)]
	switch f.width {
	case Size8:
		field[0] = uint8(n)
	case Size16:
		binary.BigEndian.PutUint16(field, uint16(n))
	case Size32:
		binary.BigEndian.PutUint32(field, uint32(n))
	}
}

// PushSized reads a w-byte declared size and restricts all following reads
// to that many bytes until the matching PopSized. It returns the declared
// size.
func (b *Buffer) PushSized(w SizeWidth) int {
	n := b.readSize(w)
	if !b.ok() {
		return 0
	}
	end := len(b.data)
	if len(b.frames) > 0 {
		f := b.frames[len(b.frames)-1]
		end = f.start + f.size
	}
	if b.pos+n > end {
		b.Failf("%w: sized structure declares %d bytes with %d available", ErrOverflow, n, end-b.pos)
		return 0
	}
	b.frames = append(b.frames, frame{start: b.pos, size: n, width: w})
	return n
}

// PopSized ends the sized structure opened by PushSized and records
// ErrSizeMismatch if it was not consumed exactly.
func (b *Buffer) PopSized() {
	if len(b.frames) == 0 {
		b.Failf("tpmutil: PopSized without PushSized")
		return
	}
	f := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]
	if !b.ok() {
		return
	}
	if consumed := b.pos - f.start; consumed != f.size {
		b.Failf("%w: declared %d bytes, consumed %d", ErrSizeMismatch, f.size, consumed)
	}
}

// RemainingSized returns the declared size of the innermost sized structure
// being read minus the bytes already consumed from it. Outside any sized
// structure it returns the number of unread bytes.
func (b *Buffer) RemainingSized() int {
	if len(b.frames) == 0 {
		return b.Len()
	}
	f := b.frames[len(b.frames)-1]
	return f.start + f.size - b.pos
}

// Marshaler is implemented by structures that write their own TPM encoding.
type Marshaler interface {
	TPMMarshal(b *Buffer)
}

// Unmarshaler is implemented by structures that read their own TPM encoding.
// Failures are recorded on the Buffer.
type Unmarshaler interface {
	TPMUnmarshal(b *Buffer)
}

// Marshal encodes ms in order and returns the result.
func Marshal(ms ...Marshaler) ([]byte, error) {
	b := NewBuffer(0)
	for _, m := range ms {
		m.TPMMarshal(b)
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal decodes data into us in order and requires every byte of data to
// be consumed.
func Unmarshal(data []byte, us ...Unmarshaler) error {
	b := NewReader(data)
	for _, u := range us {
		u.TPMUnmarshal(b)
	}
	if err := b.Err(); err != nil {
		return err
	}
	if b.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrSizeMismatch, b.Len())
	}
	return nil
}
