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
	"errors"
	"fmt"
	"reflect"
)

var (
	marshalerType   = reflect.TypeOf((*Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
)

// Pack encodes a set of elements into a single byte array.
//
// Integers are written big-endian; signed integers are written as the
// unsigned value of the same width. Structs are written field by field.
// Byte slices are prepended with a 16-bit length, matching TPM2B encoding;
// use RawBytes for no prefix, or U8Bytes/U32Bytes for other prefix widths.
// Types implementing Marshaler encode themselves.
func Pack(elts ...interface{}) ([]byte, error) {
	b := NewBuffer(0)
	for _, e := range elts {
		if err := packValue(b, reflect.ValueOf(e)); err != nil {
			return nil, err
		}
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// tryMarshal attempts to use a TPMMarshal method defined on the type to
// pack v into b. True is returned if the method exists.
func tryMarshal(b *Buffer, v reflect.Value) bool {
	t := v.Type()
	if t.Implements(marshalerType) {
		if t.Kind() == reflect.Ptr && v.IsNil() {
			return false
		}
		v.Interface().(Marshaler).TPMMarshal(b)
		return true
	}
	// A non-pointer struct field whose pointer type implements the
	// interface.
	if reflect.PtrTo(t).Implements(marshalerType) {
		tmp := reflect.New(t)
		tmp.Elem().Set(v)
		tmp.Interface().(Marshaler).TPMMarshal(b)
		return true
	}
	return false
}

func packValue(b *Buffer, v reflect.Value) error {
	if !v.IsValid() {
		return errors.New("cannot pack nil value")
	}
	if tryMarshal(b, v) {
		return nil
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return fmt.Errorf("cannot pack nil %s", v.Type().String())
		}
		return packValue(b, v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := packValue(b, v.Field(i)); err != nil {
				return err
			}
		}
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("cannot pack slice of %s", v.Type().Elem().String())
		}
		b.WriteSized(Size16, v.Bytes())
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := packValue(b, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Bool:
		if v.Bool() {
			b.WriteU8(1)
		} else {
			b.WriteU8(0)
		}
	case reflect.Uint8:
		b.WriteU8(uint8(v.Uint()))
	case reflect.Uint16:
		b.WriteU16(uint16(v.Uint()))
	case reflect.Uint32:
		b.WriteU32(uint32(v.Uint()))
	case reflect.Uint64:
		b.WriteU64(v.Uint())
	case reflect.Int8:
		b.WriteU8(uint8(v.Int() & 0xff))
	case reflect.Int16:
		b.WriteU16(uint16(v.Int() & 0xffff))
	case reflect.Int32:
		b.WriteU32(uint32(v.Int() & 0xffffffff))
	case reflect.Int64:
		b.WriteU64(uint64(v.Int()))
	default:
		return fmt.Errorf("cannot pack value of type %s", v.Type().String())
	}
	return nil
}

// Unpack is a convenience wrapper around UnpackBuf. Unpack returns the number
// of bytes read from data to fill elts and error, if any.
func Unpack(data []byte, elts ...interface{}) (int, error) {
	b := NewReader(data)
	err := UnpackBuf(b, elts...)
	return b.Pos(), err
}

// UnpackBuf recursively unpacks types from a Buffer using the same rules as
// Pack. All elements must be non-nil pointers.
func UnpackBuf(b *Buffer, elts ...interface{}) error {
	for _, e := range elts {
		v := reflect.ValueOf(e)
		if v.Kind() != reflect.Ptr {
			return fmt.Errorf("non-pointer value %q passed to UnpackBuf", v.Type().String())
		}
		if v.IsNil() {
			return errors.New("nil pointer passed to UnpackBuf")
		}
		if err := unpackValue(b, v); err != nil {
			return err
		}
	}
	return b.Err()
}

// tryUnmarshal uses TPMUnmarshal if v implements Unmarshaler.
func tryUnmarshal(b *Buffer, v reflect.Value) bool {
	t := v.Type()
	if t.Kind() == reflect.Ptr && t.Implements(unmarshalerType) {
		if v.IsNil() {
			return false
		}
		v.Interface().(Unmarshaler).TPMUnmarshal(b)
		return true
	}
	if v.CanAddr() && reflect.PtrTo(t).Implements(unmarshalerType) {
		v.Addr().Interface().(Unmarshaler).TPMUnmarshal(b)
		return true
	}
	return false
}

func unpackValue(b *Buffer, v reflect.Value) error {
	if tryUnmarshal(b, v) {
		return nil
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return fmt.Errorf("cannot unpack into nil %s", v.Type().String())
		}
		return unpackValue(b, v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := unpackValue(b, v.Field(i)); err != nil {
				return err
			}
		}
		return nil
	}

	if !v.CanSet() {
		return fmt.Errorf("cannot unpack unaddressable leaf type %q", v.Type().String())
	}
	switch v.Kind() {
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("cannot unpack slice of %s", v.Type().Elem().String())
		}
		v.SetBytes(b.ReadSized(Size16))
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := unpackValue(b, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Bool:
		v.SetBool(b.ReadU8() != 0)
	case reflect.Uint8:
		v.SetUint(uint64(b.ReadU8()))
	case reflect.Uint16:
		v.SetUint(uint64(b.ReadU16()))
	case reflect.Uint32:
		v.SetUint(uint64(b.ReadU32()))
	case reflect.Uint64:
		v.SetUint(b.ReadU64())
	case reflect.Int8:
		v.SetInt(int64(int8(b.ReadU8())))
	case reflect.Int16:
		v.SetInt(int64(int16(b.ReadU16())))
	case reflect.Int32:
		v.SetInt(int64(int32(b.ReadU32())))
	case reflect.Int64:
		v.SetInt(int64(b.ReadU64()))
	default:
		return fmt.Errorf("cannot unpack value of type %s", v.Type().String())
	}
	return nil
}
