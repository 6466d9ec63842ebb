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

package scene

import "strconv"

// Type enumerates property value types.
//
// The zero Type is TypeInvalid, which is the type of
// the Null placeholder stored for property entries
// whose on-wire type tag is not recognized.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeString
	TypeBool
	TypeInt
	TypeFloat
	TypeDouble
)

// String returns the type name as it appears as an
// element name in the XML dialect.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	default:
		return "invalid"
	}
}

// Value represents one typed property value.
//
// A Value should be one of
//   String, Bool, Int, Float, Double, Null
//
type Value interface {
	Type() Type
	// String returns the canonical text form of the
	// value used by the XML dialect.
	String() string
}

var (
	// all of these types must be values
	_ Value = String("")
	_ Value = Bool(false)
	_ Value = Int(0)
	_ Value = Float(0)
	_ Value = Double(0)
	_ Value = Null{}
)

// String is a text property value.
type String string

func (s String) Type() Type     { return TypeString }
func (s String) String() string { return string(s) }

// Bool is a boolean property value.
type Bool bool

func (b Bool) Type() Type { return TypeBool }

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Int is a signed 32-bit integer property value.
type Int int32

func (i Int) Type() Type     { return TypeInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a single-precision float property value.
type Float float32

func (f Float) Type() Type { return TypeFloat }

func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

// Double is a double-precision float property value.
type Double float64

func (d Double) Type() Type { return TypeDouble }

func (d Double) String() string {
	return strconv.FormatFloat(float64(d), 'g', -1, 64)
}

// Null is the placeholder stored for a property whose
// on-wire type tag was not recognized. It keeps the
// property's slot in decode order without asserting
// anything about its content.
type Null struct{}

func (Null) Type() Type     { return TypeInvalid }
func (Null) String() string { return "null" }
