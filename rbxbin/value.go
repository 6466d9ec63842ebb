// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package rbxbin

import (
	"encoding/binary"
	"math"

	"github.com/SnellerInc/rbxconv/scene"
)

// on-wire property type tags
const (
	tagString = 0x01
	tagBool   = 0x02
	tagInt    = 0x03
	tagFloat  = 0x04
	tagDouble = 0x05
)

// unknownTagSpan is the number of bytes consumed per
// value when a property chunk carries a type tag we do
// not recognize. Consuming a fixed span keeps the
// cursor moving so the rest of the file still decodes.
const unknownTagSpan = 4

// wireTag maps a value type to its on-wire tag;
// the second return is false for types that have no
// wire representation.
func wireTag(t scene.Type) (byte, bool) {
	switch t {
	case scene.TypeString:
		return tagString, true
	case scene.TypeBool:
		return tagBool, true
	case scene.TypeInt:
		return tagInt, true
	case scene.TypeFloat:
		return tagFloat, true
	case scene.TypeDouble:
		return tagDouble, true
	default:
		return 0, false
	}
}

// decodeValue decodes a single property value with the
// given type tag. Values within a property chunk are
// positionally dependent, so every branch must advance
// the reader by exactly the bytes it consumes.
// An unrecognized tag is not an error: it consumes
// unknownTagSpan bytes and yields (Null, false).
func decodeValue(tag byte, r *reader) (scene.Value, bool, error) {
	switch tag {
	case tagString:
		s, err := r.str()
		return scene.String(s), true, err
	case tagBool:
		b, err := r.u8()
		return scene.Bool(b == 1), true, err
	case tagInt:
		i, err := r.i32()
		return scene.Int(i), true, err
	case tagFloat:
		f, err := r.f32()
		return scene.Float(f), true, err
	case tagDouble:
		f, err := r.f64()
		return scene.Double(f), true, err
	default:
		err := r.skip(unknownTagSpan)
		return scene.Null{}, false, err
	}
}

// appendValue appends the wire encoding of v to dst.
// It is the inverse of decodeValue for every type that
// has a wire tag; Null values encode as the fixed
// placeholder span.
func appendValue(dst []byte, v scene.Value) []byte {
	switch v := v.(type) {
	case scene.String:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v)))
		return append(dst, v...)
	case scene.Bool:
		if v {
			return append(dst, 1)
		}
		return append(dst, 0)
	case scene.Int:
		return binary.LittleEndian.AppendUint32(dst, uint32(int32(v)))
	case scene.Float:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	case scene.Double:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(float64(v)))
	default:
		return append(dst, make([]byte, unknownTagSpan)...)
	}
}

// zeroValue returns the zero value for a property
// type, used when an instance is missing a property
// that the rest of its class carries.
func zeroValue(t scene.Type) scene.Value {
	switch t {
	case scene.TypeString:
		return scene.String("")
	case scene.TypeBool:
		return scene.Bool(false)
	case scene.TypeInt:
		return scene.Int(0)
	case scene.TypeFloat:
		return scene.Float(0)
	case scene.TypeDouble:
		return scene.Double(0)
	default:
		return scene.Null{}
	}
}
