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

	"github.com/SnellerInc/rbxconv/compr"
	"github.com/SnellerInc/rbxconv/scene"
)

// An Encoder writes binary scene files.
// The zero value writes every chunk uncompressed.
type Encoder struct {
	// Compression, if non-nil, compresses every
	// non-empty chunk payload. Note that the zero
	// Decoder auto-detects zstd and lz4 payloads
	// only; files written with other algorithms need
	// a matching Decoder.Decompressor to read back.
	Compression compr.Compressor
}

// Encode encodes m with a zero Encoder.
func Encode(m *scene.Model) []byte {
	var e Encoder
	return e.Encode(m)
}

// Encode encodes the Model as a complete binary scene
// file: header, META, SSTR, one INST chunk per class,
// one PROP chunk per (class, property) pair, PRNT, and
// the terminal END chunk.
func (e *Encoder) Encode(m *scene.Model) []byte {
	ids := m.ClassIDs()
	dst := e.appendHeader(nil, m, len(ids))
	if len(m.Meta) > 0 {
		dst = e.appendChunk(dst, chunkMeta, encodeMeta(m))
	}
	if len(m.SharedStrings) > 0 {
		dst = e.appendChunk(dst, chunkSSTR, encodeSharedStrings(m))
	}
	for _, id := range ids {
		dst = e.appendChunk(dst, chunkInst, encodeInstances(m.Class(id)))
	}
	for _, id := range ids {
		c := m.Class(id)
		for _, p := range classProperties(m, c) {
			dst = e.appendChunk(dst, chunkProp, encodeProperties(m, c, p))
		}
	}
	if len(m.Instances) > 0 {
		dst = e.appendChunk(dst, chunkPrnt, encodeParents(m))
	}
	// sentinel: framing stops at the tag, so the END
	// chunk is the bare padded tag
	return append(dst, chunkEnd[0], chunkEnd[1], chunkEnd[2], 0)
}

func (e *Encoder) appendHeader(dst []byte, m *scene.Model, classes int) []byte {
	dst = append(dst, magic...)
	dst = append(dst, signature...)
	dst = binary.LittleEndian.AppendUint16(dst, m.Version)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(classes))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(m.Instances)))
	return append(dst, make([]byte, 8)...) // reserved
}

// appendChunk frames one chunk: 4-byte tag, compressed
// length, decompressed length, 4 reserved bytes, then
// the payload. A compressed length of zero marks a
// verbatim payload.
func (e *Encoder) appendChunk(dst []byte, tag string, payload []byte) []byte {
	for i := 0; i < 4; i++ {
		if i < len(tag) {
			dst = append(dst, tag[i])
		} else {
			dst = append(dst, 0)
		}
	}
	if e.Compression != nil && len(payload) > 0 {
		comp := e.Compression.Compress(payload, nil)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(comp)))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
		dst = append(dst, make([]byte, 4)...) // reserved
		return append(dst, comp...)
	}
	dst = binary.LittleEndian.AppendUint32(dst, 0)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	dst = append(dst, make([]byte, 4)...) // reserved
	return append(dst, payload...)
}

func appendString(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

func encodeMeta(m *scene.Model) []byte {
	dst := binary.LittleEndian.AppendUint32(nil, uint32(len(m.Meta)))
	for i := range m.Meta {
		dst = appendString(dst, m.Meta[i].Key)
		dst = appendString(dst, m.Meta[i].Value)
	}
	return dst
}

func encodeSharedStrings(m *scene.Model) []byte {
	dst := binary.LittleEndian.AppendUint32(nil, 0) // format version
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(m.SharedStrings)))
	for i := range m.SharedStrings {
		dst = append(dst, m.SharedStrings[i].Hash[:]...)
		dst = appendString(dst, m.SharedStrings[i].Value)
	}
	return dst
}

func encodeInstances(c *scene.Class) []byte {
	dst := binary.LittleEndian.AppendUint32(nil, c.ID)
	dst = appendString(dst, c.Name)
	dst = append(dst, 0) // object format 0
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(c.Refs)))
	for _, ref := range c.Refs {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(ref))
	}
	return dst
}

// classProp is one property column of a class: its
// name and the value type used for its wire tag.
type classProp struct {
	name string
	typ  scene.Type
}

// classProperties returns the property columns of a
// class in first-seen decode order across its
// instances. The column type comes from the first
// instance that defines the property with a
// representable type.
func classProperties(m *scene.Model, c *scene.Class) []classProp {
	var props []classProp
	index := make(map[string]int)
	for _, ref := range c.Refs {
		inst := m.Instance(ref)
		for _, name := range inst.PropNames() {
			v, _ := inst.Get(name)
			if i, ok := index[name]; ok {
				if props[i].typ == scene.TypeInvalid {
					props[i].typ = v.Type()
				}
				continue
			}
			index[name] = len(props)
			props = append(props, classProp{name: name, typ: v.Type()})
		}
	}
	// columns that only ever held Null placeholders
	// have no wire representation
	keep := props[:0]
	for i := range props {
		if props[i].typ != scene.TypeInvalid {
			keep = append(keep, props[i])
		}
	}
	return keep
}

func encodeProperties(m *scene.Model, c *scene.Class, p classProp) []byte {
	dst := binary.LittleEndian.AppendUint32(nil, c.ID)
	dst = appendString(dst, p.name)
	tag, _ := wireTag(p.typ)
	dst = append(dst, tag)
	for _, ref := range c.Refs {
		v, ok := m.Instance(ref).Get(p.name)
		if !ok || v.Type() != p.typ {
			v = zeroValue(p.typ)
		}
		dst = appendValue(dst, v)
	}
	return dst
}

func encodeParents(m *scene.Model) []byte {
	dst := []byte{0} // version
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(m.Instances)))
	for _, inst := range m.Instances {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(inst.Referent))
	}
	for _, inst := range m.Instances {
		parent := scene.NoParent
		if p := inst.Parent(); p != nil {
			parent = p.Referent
		}
		dst = binary.LittleEndian.AppendUint32(dst, uint32(parent))
	}
	return dst
}
