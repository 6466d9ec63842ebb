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

// Package compr provides a unified interface wrapping
// the third-party compression libraries used for chunk
// payloads in the binary scene format.
//
// A compressed chunk always declares its decompressed
// size up front, so every Decompressor decodes into a
// caller-sized buffer and fails if the output does not
// fill that buffer exactly.
package compr

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnsupported is returned (wrapped) when a payload
// requires a compression algorithm that is not
// available. Callers should distinguish this condition
// from file corruption; see errors.Is.
var ErrUnsupported = errors.New("unsupported compression algorithm")

// Compressor compresses whole chunk payloads.
type Compressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Compress appends the compressed contents
	// of src to dst and returns the result.
	Compress(src, dst []byte) []byte
}

// Decompressor is the interface the chunk framer uses
// to decompress chunk payloads.
type Decompressor interface {
	// Name is the name of the compression algorithm.
	// See also Compressor.Name.
	Name() string
	// Decompress decompresses source data
	// into dst. It errors out if the decoded
	// data does not occupy all of dst exactly.
	//
	// It must be safe to make multiple
	// calls to Decompress simultaneously
	// from different goroutines.
	Decompress(src, dst []byte) error
}

var zstdDecoder *zstd.Decoder

func init() {
	// by default, concurrency is set to min(4, GOMAXPROCS);
	// we'd like it to *always* be GOMAXPROCS
	z, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = z
}

type zstdCompressor struct {
	enc *zstd.Encoder
}

func (z zstdCompressor) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

func (z zstdCompressor) Name() string { return "zstd" }

type zstdDecompressor struct{}

func (zstdDecompressor) Name() string { return "zstd" }

func (zstdDecompressor) Decompress(src, dst []byte) error {
	into := dst[:0:len(dst)]
	ret, err := zstdDecoder.DecodeAll(src, into)
	if err != nil {
		return err
	}
	if len(ret) != len(dst) {
		return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(ret))
	}
	// the decoder should not have had to
	// realloc the buffer
	if len(dst) > 0 && &ret[0] != &dst[0] {
		return fmt.Errorf("zstd decompress: output buffer realloc'd")
	}
	return nil
}

type lz4Compressor struct{}

func (lz4Compressor) Name() string { return "lz4" }

func (lz4Compressor) Compress(src, dst []byte) []byte {
	var c lz4.Compressor
	bound := lz4.CompressBlockBound(len(src))
	base := len(dst)
	dst = append(dst, make([]byte, bound)...)
	n, err := c.CompressBlock(src, dst[base:])
	if err != nil || n == 0 {
		// incompressible input: emit literal-only
		// sequences, which the block format can
		// always represent within the bound
		n = rawLZ4Block(src, dst[base:])
	}
	return dst[:base+n]
}

// rawLZ4Block encodes src into dst as lz4 literal-only
// sequences and returns the encoded length. dst must
// hold at least CompressBlockBound(len(src)) bytes.
func rawLZ4Block(src, dst []byte) int {
	n := 0
	lit := len(src)
	if lit < 15 {
		dst[n] = byte(lit << 4)
		n++
	} else {
		dst[n] = 15 << 4
		n++
		rest := lit - 15
		for rest >= 255 {
			dst[n] = 255
			n++
			rest -= 255
		}
		dst[n] = byte(rest)
		n++
	}
	n += copy(dst[n:], src)
	return n
}

type lz4Decompressor struct{}

func (lz4Decompressor) Name() string { return "lz4" }

func (lz4Decompressor) Decompress(src, dst []byte) error {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), n)
	}
	return nil
}

type s2Compressor struct{}

func (s2Compressor) Name() string { return "s2" }

func (s2Compressor) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

type s2Decompressor struct{}

func (s2Decompressor) Name() string { return "s2" }

func (s2Decompressor) Decompress(src, dst []byte) error {
	into := dst[:0:len(dst)]
	ret, err := s2.Decode(into, src)
	if err != nil {
		return err
	}
	if len(ret) != len(dst) {
		return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(ret))
	}
	if len(dst) > 0 && &ret[0] != &dst[0] {
		return fmt.Errorf("s2 decompress: output buffer realloc'd")
	}
	return nil
}

// Compression selects a compression algorithm by name.
// The returned Compressor will return the same value
// for Compressor.Name as the specified name.
// Unknown names yield nil.
func Compression(name string) Compressor {
	switch name {
	case "zstd-better":
		z, _ := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithEncoderConcurrency(1))
		return zstdCompressor{z}
	case "zstd":
		z, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return zstdCompressor{z}
	case "lz4":
		return lz4Compressor{}
	case "s2":
		return s2Compressor{}
	default:
		return nil
	}
}

// Decompression selects a decompression algorithm by name.
// Unknown names yield nil.
func Decompression(name string) Decompressor {
	switch name {
	case "zstd":
		return zstdDecompressor{}
	case "lz4":
		return lz4Decompressor{}
	case "s2":
		return s2Decompressor{}
	default:
		return nil
	}
}

// Detect picks a Decompressor for a compressed chunk
// payload by sniffing its leading bytes. Payloads
// written by current tooling are zstd frames; anything
// else is assumed to be an lz4 block, which has no
// distinguishing prefix of its own.
func Detect(src []byte) Decompressor {
	if len(src) >= 4 &&
		src[0] == 0x28 && src[1] == 0xb5 &&
		src[2] == 0x2f && src[3] == 0xfd {
		return zstdDecompressor{}
	}
	return lz4Decompressor{}
}
