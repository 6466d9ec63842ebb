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

// Package rbxbin decodes and encodes the chunk-based
// binary scene file format.
//
// A file is a fixed 32-byte header followed by tagged,
// length-framed chunks and a terminal END chunk. The
// decode pass is single-threaded and purely in-memory:
// every chunk decoder writes into one scene.Model, and
// the finished Model is handed back with its
// parent/child graph resolved.
//
// Structural violations (bad magic, truncated data, a
// property chunk naming an undeclared class) abort the
// whole decode. Forward-compatibility conditions
// (unknown chunk tags, unknown property type tags,
// dangling parent links) are recorded on
// scene.Model.Warnings and never abort.
package rbxbin

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/SnellerInc/rbxconv/compr"
	"github.com/SnellerInc/rbxconv/scene"
)

var (
	// ErrMagic is returned when the input does not
	// begin with the format's magic bytes.
	ErrMagic = errors.New("rbxbin: not a binary scene file")
	// ErrCorrupt is returned (wrapped) for structural
	// violations: truncated buffers, impossible
	// lengths, or chunks that reference state the
	// file never declared.
	ErrCorrupt = errors.New("rbxbin: corrupt file")
	// ErrDecompress is returned (wrapped) when a
	// compressed chunk payload cannot be
	// decompressed. It is deliberately distinct from
	// ErrMagic and ErrCorrupt so that callers can
	// apply their own policy (abort, or retry with a
	// different compr.Decompressor).
	ErrDecompress = errors.New("rbxbin: cannot decompress chunk")
)

const headerSize = 32

// maxChunkSize caps the declared decompressed size of
// a single chunk so that a corrupt length field cannot
// force an enormous allocation.
const maxChunkSize = 1 << 30

var (
	magic     = []byte("<roblox!")
	signature = []byte{0x89, 0xff, 0x0d, 0x0a, 0x1a, 0x0a}
)

// chunk tags
const (
	chunkMeta = "META"
	chunkSSTR = "SSTR"
	chunkInst = "INST"
	chunkProp = "PROP"
	chunkPrnt = "PRNT"
	chunkEnd  = "END" // on-wire "END\x00"
)

// A Decoder decodes binary scene files.
// The zero value is ready to use.
type Decoder struct {
	// Decompressor, if non-nil, is used for every
	// compressed chunk payload. When nil, the
	// algorithm is detected per chunk from the
	// payload's leading bytes (see compr.Detect).
	Decompressor compr.Decompressor
}

// Decode decodes buf with a zero Decoder.
func Decode(buf []byte) (*scene.Model, error) {
	var d Decoder
	return d.Decode(buf)
}

// Decode decodes one complete binary scene file and
// returns the populated Model with its parent/child
// graph resolved. On error the Model is discarded:
// a partially-decoded file is never returned.
func (d *Decoder) Decode(buf []byte) (*scene.Model, error) {
	m := scene.NewModel()
	r := &reader{buf: buf}
	if err := d.header(m, r); err != nil {
		return nil, err
	}
	for {
		c, err := d.next(r)
		if err != nil {
			return nil, err
		}
		if c == nil {
			break
		}
		if err := d.decodeChunk(m, c); err != nil {
			return nil, fmt.Errorf("chunk %s at offset %d: %w", c.tag, c.off, err)
		}
	}
	if m.DeclaredInstances != uint32(len(m.Instances)) {
		m.Warnf("header declares %d instances, file contains %d",
			m.DeclaredInstances, len(m.Instances))
	}
	m.Resolve()
	return m, nil
}

// header validates the magic bytes and consumes the
// fixed 32-byte header region, recording its version
// and count fields on the Model.
func (d *Decoder) header(m *scene.Model, r *reader) error {
	if r.remaining() < headerSize {
		return fmt.Errorf("%w: %d-byte buffer is smaller than the %d-byte header",
			ErrCorrupt, r.remaining(), headerSize)
	}
	if !bytes.Equal(r.buf[:len(magic)], magic) {
		return ErrMagic
	}
	r.off = len(magic) + len(signature)
	var err error
	if m.Version, err = r.u16(); err != nil {
		return err
	}
	if m.DeclaredClasses, err = r.u32(); err != nil {
		return err
	}
	if m.DeclaredInstances, err = r.u32(); err != nil {
		return err
	}
	r.off = headerSize
	return nil
}

// chunk is one framed chunk: its trimmed tag, the file
// offset of its header, and its raw (decompressed)
// payload.
type chunk struct {
	tag     string
	off     int
	payload []byte
}

// next frames the next chunk, decompressing its
// payload if necessary. It returns (nil, nil) once the
// terminal sentinel is reached; nothing past the
// sentinel is read.
func (d *Decoder) next(r *reader) (*chunk, error) {
	off := r.off
	rawtag, err := r.take(4)
	if err != nil {
		return nil, err
	}
	tag := string(bytes.TrimRight(rawtag, "\x00"))
	if tag == chunkEnd {
		return nil, nil
	}
	clen, err := r.u32()
	if err != nil {
		return nil, err
	}
	dlen, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.skip(4); err != nil { // reserved
		return nil, err
	}
	if dlen > maxChunkSize {
		return nil, fmt.Errorf("%w: %s chunk at offset %d declares %d decompressed bytes",
			ErrCorrupt, tag, off, dlen)
	}
	if clen == 0 {
		payload, err := r.take(int(dlen))
		if err != nil {
			return nil, err
		}
		return &chunk{tag: tag, off: off, payload: payload}, nil
	}
	src, err := r.take(int(clen))
	if err != nil {
		return nil, err
	}
	dec := d.Decompressor
	if dec == nil {
		dec = compr.Detect(src)
	}
	payload := make([]byte, dlen)
	if err := dec.Decompress(src, payload); err != nil {
		return nil, fmt.Errorf("%w: %s chunk at offset %d (%s): %w",
			ErrDecompress, tag, off, dec.Name(), err)
	}
	return &chunk{tag: tag, off: off, payload: payload}, nil
}

// decodeChunk routes one chunk to its decoder.
// Unrecognized tags are skipped: the payload was
// already consumed by the framer, and skipping is the
// format's forward-compatibility mechanism.
func (d *Decoder) decodeChunk(m *scene.Model, c *chunk) error {
	r := &reader{buf: c.payload}
	switch c.tag {
	case chunkMeta:
		return decodeMeta(m, r)
	case chunkSSTR:
		return decodeSharedStrings(m, r)
	case chunkInst:
		return decodeInstances(m, r)
	case chunkProp:
		return decodeProperties(m, r)
	case chunkPrnt:
		return decodeParents(m, r)
	default:
		m.Warnf("skipping unknown chunk %q at offset %d", c.tag, c.off)
		return nil
	}
}

func decodeMeta(m *scene.Model, r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.str()
		if err != nil {
			return err
		}
		value, err := r.str()
		if err != nil {
			return err
		}
		m.AddMeta(key, value)
	}
	return nil
}

func decodeSharedStrings(m *scene.Model, r *reader) error {
	if _, err := r.u32(); err != nil { // format version, unused
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		raw, err := r.take(16)
		if err != nil {
			return err
		}
		var hash [16]byte
		copy(hash[:], raw)
		value, err := r.str()
		if err != nil {
			return err
		}
		if hash == ([16]byte{}) {
			// current tooling writes zeroed hashes;
			// re-key from content so the table stays
			// usable as a deduplication map
			sum := blake2b.Sum256([]byte(value))
			copy(hash[:], sum[:16])
		}
		m.SetSharedString(hash, value)
	}
	return nil
}

func decodeInstances(m *scene.Model, r *reader) error {
	id, err := r.u32()
	if err != nil {
		return err
	}
	name, err := r.str()
	if err != nil {
		return err
	}
	format, err := r.u8()
	if err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	c := m.DeclareClass(id, name)
	for i := uint32(0); i < n; i++ {
		ref, err := r.i32()
		if err != nil {
			return err
		}
		if format == 1 {
			// object format 1 carries one reserved
			// byte per referent record
			if err := r.skip(1); err != nil {
				return err
			}
		}
		m.AddInstance(ref, c)
	}
	return nil
}

func decodeProperties(m *scene.Model, r *reader) error {
	id, err := r.u32()
	if err != nil {
		return err
	}
	name, err := r.str()
	if err != nil {
		return err
	}
	tag, err := r.u8()
	if err != nil {
		return err
	}
	c := m.Class(id)
	if c == nil {
		// unlike an unknown chunk tag, an undeclared
		// class ID means the file is structurally
		// invalid: we cannot know how many values
		// follow
		return fmt.Errorf("%w: property %q references undeclared class id %d",
			ErrCorrupt, name, id)
	}
	warned := false
	for _, ref := range c.Refs {
		v, known, err := decodeValue(tag, r)
		if err != nil {
			return fmt.Errorf("property %q of class %q: %w", name, c.Name, err)
		}
		if !known && !warned {
			m.Warnf("property %q of class %q has unknown type tag %#02x",
				name, c.Name, tag)
			warned = true
		}
		m.Instance(ref).Set(name, v)
	}
	return nil
}

func decodeParents(m *scene.Model, r *reader) error {
	if _, err := r.u8(); err != nil { // version
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	// two parallel arrays of int32, children first;
	// reject impossible counts before allocating
	if int64(n)*8 > int64(r.remaining()) {
		return fmt.Errorf("%w: parent chunk declares %d links, only %d bytes remain",
			ErrCorrupt, n, r.remaining())
	}
	children := make([]int32, n)
	for i := range children {
		if children[i], err = r.i32(); err != nil {
			return err
		}
	}
	for i := range children {
		parent, err := r.i32()
		if err != nil {
			return err
		}
		m.AddLink(children[i], parent)
	}
	return nil
}
