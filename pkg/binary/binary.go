// Copyright 2026 The gVisor Authors.
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

// Package binary translates between the fixed-width records of the easyfs
// on-disk format and their Go struct representations.
//
// Only fixed-size integers, arrays and structs of those are supported. Blank
// (underscore) struct fields are written as zero and skipped on decode, so
// they can describe on-disk padding.
package binary

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

// LittleEndian is the byte order of every easyfs on-disk record.
var LittleEndian = binary.LittleEndian

// Size returns the number of bytes data encodes to. data may be a pointer.
func Size(data any) int {
	return sizeof(reflect.Indirect(reflect.ValueOf(data)).Type())
}

func sizeof(t reflect.Type) int {
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(t.Size())
	case reflect.Array:
		return t.Len() * sizeof(t.Elem())
	case reflect.Struct:
		size := 0
		for i := 0; i < t.NumField(); i++ {
			size += sizeof(t.Field(i).Type)
		}
		return size
	default:
		panic("invalid type: " + t.String())
	}
}

func checkLen(b []byte, n int) {
	if len(b) < n {
		panic(fmt.Sprintf("buffer too short: have %d bytes, need %d", len(b), n))
	}
}

// Marshal appends the encoding of data to buf.
func Marshal(buf []byte, order binary.ByteOrder, data any) []byte {
	n := Size(data)
	off := len(buf)
	buf = append(buf, make([]byte, n)...)
	Put(buf[off:], order, data)
	return buf
}

// Put encodes data into the front of dst without allocating. It panics if
// dst is shorter than Size(data).
func Put(dst []byte, order binary.ByteOrder, data any) {
	v := reflect.Indirect(reflect.ValueOf(data))
	checkLen(dst, sizeof(v.Type()))
	encode(dst, order, v)
}

// Get decodes the front of src into data, which must be a pointer. Trailing
// bytes of src are ignored.
func Get(src []byte, order binary.ByteOrder, data any) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Pointer {
		panic("invalid type: " + v.Type().String())
	}
	v = v.Elem()
	checkLen(src, sizeof(v.Type()))
	decode(src, order, v)
}

func putUint(b []byte, order binary.ByteOrder, size int, x uint64) {
	switch size {
	case 1:
		b[0] = byte(x)
	case 2:
		order.PutUint16(b, uint16(x))
	case 4:
		order.PutUint32(b, uint32(x))
	case 8:
		order.PutUint64(b, x)
	}
}

func getUint(b []byte, order binary.ByteOrder, size int) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	default:
		return order.Uint64(b)
	}
}

// encode writes v to the front of b and returns the bytes used.
func encode(b []byte, order binary.ByteOrder, v reflect.Value) int {
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		size := int(v.Type().Size())
		putUint(b, order, size, v.Uint())
		return size
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		size := int(v.Type().Size())
		putUint(b, order, size, uint64(v.Int()))
		return size
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return reflect.Copy(reflect.ValueOf(b[:v.Len()]), v)
		}
		n := 0
		for i := 0; i < v.Len(); i++ {
			n += encode(b[n:], order, v.Index(i))
		}
		return n
	case reflect.Struct:
		n := 0
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).Name == "_" {
				size := sizeof(v.Type().Field(i).Type)
				clear(b[n : n+size])
				n += size
				continue
			}
			n += encode(b[n:], order, v.Field(i))
		}
		return n
	default:
		panic("invalid type: " + v.Type().String())
	}
}

// decode reads v from the front of b and returns the bytes used.
func decode(b []byte, order binary.ByteOrder, v reflect.Value) int {
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		size := int(v.Type().Size())
		v.SetUint(getUint(b, order, size))
		return size
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		size := int(v.Type().Size())
		// Sign-extend from the encoded width.
		shift := 64 - 8*size
		v.SetInt(int64(getUint(b, order, size)<<shift) >> shift)
		return size
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return reflect.Copy(v, reflect.ValueOf(b[:v.Len()]))
		}
		n := 0
		for i := 0; i < v.Len(); i++ {
			n += decode(b[n:], order, v.Index(i))
		}
		return n
	case reflect.Struct:
		n := 0
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				n += decode(b[n:], order, f)
			} else {
				n += sizeof(f.Type())
			}
		}
		return n
	default:
		panic("invalid type: " + v.Type().String())
	}
}
