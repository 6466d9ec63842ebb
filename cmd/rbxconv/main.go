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

// Command rbxconv converts a binary scene file into
// its XML form.
//
// Usage:
//
//	rbxconv [-o output] [-c config.yaml] [-q] input
//
// The output defaults to the input path with its
// extension replaced by ".rbxlx"; "-o -" writes to
// standard output. Recoverable anomalies found in the
// input are reported on standard error unless -q is
// given; they never fail the conversion.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/rbxconv"
	"github.com/SnellerInc/rbxconv/compr"
)

var (
	dashO = flag.String("o", "", "output path (\"-\" for stdout)")
	dashC = flag.String("c", "", "optional YAML config file")
	dashQ = flag.Bool("q", false, "suppress warnings")
)

type config struct {
	// Decompressor forces a chunk decompression
	// algorithm ("zstd", "lz4" or "s2") instead of
	// per-chunk detection.
	Decompressor string `json:"decompressor,omitempty"`
}

func exit(err error) {
	log.Fatalf("rbxconv: %s", err)
}

func main() {
	log.SetFlags(0)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rbxconv [-o output] [-c config.yaml] [-q] input")
		os.Exit(2)
	}
	infile := flag.Arg(0)

	var cfg config
	if *dashC != "" {
		buf, err := os.ReadFile(*dashC)
		if err != nil {
			exit(err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			exit(fmt.Errorf("config %s: %w", *dashC, err))
		}
	}
	var conv rbxconv.Converter
	if cfg.Decompressor != "" {
		conv.Decompressor = compr.Decompression(cfg.Decompressor)
		if conv.Decompressor == nil {
			exit(fmt.Errorf("unknown decompressor %q", cfg.Decompressor))
		}
	}

	buf, err := os.ReadFile(infile)
	if err != nil {
		exit(err)
	}
	doc, warnings, err := conv.Convert(buf)
	if err != nil {
		exit(err)
	}
	if !*dashQ {
		for i := range warnings {
			log.Printf("%s: warning: %s", infile, warnings[i])
		}
	}

	outfile := *dashO
	if outfile == "" {
		outfile = strings.TrimSuffix(infile, filepath.Ext(infile)) + ".rbxlx"
	}
	if outfile == "-" {
		if _, err := os.Stdout.Write(doc); err != nil {
			exit(err)
		}
		return
	}
	if err := atomicWrite(outfile, doc); err != nil {
		exit(err)
	}
}

// atomicWrite writes data through a uniquely-named
// temporary file in the destination directory so that
// a crash never leaves a half-written document behind.
func atomicWrite(path string, data []byte) error {
	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, "."+base+"."+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
