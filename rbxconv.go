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

// Package rbxconv converts binary scene files into the
// XML dialect of the same schema.
//
// The conversion is a single synchronous pass over an
// in-memory buffer: decode the chunks into a
// scene.Model, resolve the parent/child graph, then
// emit XML. It performs no I/O of its own and holds no
// state across calls, so independent conversions may
// run concurrently.
package rbxconv

import (
	"github.com/SnellerInc/rbxconv/compr"
	"github.com/SnellerInc/rbxconv/rbxbin"
	"github.com/SnellerInc/rbxconv/rbxlx"
)

// A Converter converts binary scene files to XML.
// The zero value is ready to use.
type Converter struct {
	// Decompressor overrides chunk payload
	// decompression; see rbxbin.Decoder.
	Decompressor compr.Decompressor
}

// Convert converts one complete binary scene file into
// a complete XML document with a zero Converter.
//
// warnings lists the recoverable anomalies encountered
// (unknown chunks, unknown property types, dangling
// parent links); err is non-nil only for fatal
// conditions, in which case no partial document is
// returned.
func Convert(buf []byte) (doc []byte, warnings []string, err error) {
	var c Converter
	return c.Convert(buf)
}

// Convert converts one complete binary scene file into
// a complete XML document.
func (c *Converter) Convert(buf []byte) (doc []byte, warnings []string, err error) {
	d := rbxbin.Decoder{Decompressor: c.Decompressor}
	m, err := d.Decode(buf)
	if err != nil {
		return nil, nil, err
	}
	return rbxlx.Encode(m), m.Warnings, nil
}
