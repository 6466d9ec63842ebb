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
	"testing"

	"github.com/SnellerInc/rbxconv/compr"
	"github.com/SnellerInc/rbxconv/scene"
)

func testModel() *scene.Model {
	m := scene.NewModel()
	m.AddMeta("ExplicitAutoJoints", "true")
	var hash [16]byte
	hash[15] = 0x5a
	m.SetSharedString(hash, "shared payload")
	parts := m.DeclareClass(0, "Part")
	scripts := m.DeclareClass(1, "Script")
	for i := int32(1); i <= 3; i++ {
		in := m.AddInstance(i, parts)
		in.Set("Name", scene.String("part"))
		in.Set("Transparency", scene.Float(0.25))
		in.Set("Anchored", scene.Bool(i == 1))
	}
	s := m.AddInstance(4, scripts)
	s.Set("Name", scene.String("tick"))
	s.Set("Interval", scene.Double(1.0/3))
	s.Set("Runs", scene.Int(-7))
	m.AddLink(2, 1)
	m.AddLink(3, 1)
	m.AddLink(4, 3)
	m.Resolve()
	return m
}

func sameModel(t *testing.T, want, got *scene.Model) {
	t.Helper()
	if len(got.Meta) != len(want.Meta) {
		t.Fatalf("meta: %v != %v", got.Meta, want.Meta)
	}
	for i := range want.Meta {
		if got.Meta[i] != want.Meta[i] {
			t.Errorf("meta[%d]: %v != %v", i, got.Meta[i], want.Meta[i])
		}
	}
	if len(got.SharedStrings) != len(want.SharedStrings) {
		t.Fatalf("shared strings: %d != %d",
			len(got.SharedStrings), len(want.SharedStrings))
	}
	for i := range want.SharedStrings {
		if got.SharedStrings[i] != want.SharedStrings[i] {
			t.Errorf("shared[%d] mismatch", i)
		}
	}
	if len(got.Instances) != len(want.Instances) {
		t.Fatalf("instances: %d != %d", len(got.Instances), len(want.Instances))
	}
	for i := range want.Instances {
		wi, gi := want.Instances[i], got.Instances[i]
		if gi.Referent != wi.Referent || gi.ClassName != wi.ClassName {
			t.Fatalf("instance %d: (%d, %q) != (%d, %q)",
				i, gi.Referent, gi.ClassName, wi.Referent, wi.ClassName)
		}
		wn, gn := wi.PropNames(), gi.PropNames()
		if len(wn) != len(gn) {
			t.Fatalf("instance %d: props %v != %v", i, gn, wn)
		}
		for j := range wn {
			if wn[j] != gn[j] {
				t.Errorf("instance %d: prop order %v != %v", i, gn, wn)
				break
			}
			wv, _ := wi.Get(wn[j])
			gv, _ := gi.Get(wn[j])
			if wv != gv {
				t.Errorf("instance %d %q: %v != %v", i, wn[j], gv, wv)
			}
		}
		wp, gp := wi.Parent(), gi.Parent()
		switch {
		case (wp == nil) != (gp == nil):
			t.Errorf("instance %d: parent presence mismatch", i)
		case wp != nil && wp.Referent != gp.Referent:
			t.Errorf("instance %d: parent %d != %d", i, gp.Referent, wp.Referent)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	want := testModel()
	for _, name := range []string{"", "zstd", "lz4"} {
		var e Encoder
		if name != "" {
			e.Compression = compr.Compression(name)
		}
		got, err := Decode(e.Encode(want))
		if err != nil {
			t.Fatalf("%q: %s", name, err)
		}
		if len(got.Warnings) != 0 {
			t.Fatalf("%q: warnings %v", name, got.Warnings)
		}
		sameModel(t, want, got)
	}
}

func TestEncodeS2NeedsExplicitDecompressor(t *testing.T) {
	// s2 blocks carry no magic, so auto-detection
	// cannot find them; a matching Decompressor must
	// be supplied
	want := testModel()
	e := Encoder{Compression: compr.Compression("s2")}
	buf := e.Encode(want)
	d := Decoder{Decompressor: compr.Decompression("s2")}
	got, err := d.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	sameModel(t, want, got)
}

func TestEncodeEmptyModel(t *testing.T) {
	m, err := Decode(Encode(scene.NewModel()))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Instances) != 0 || len(m.Meta) != 0 || len(m.SharedStrings) != 0 {
		t.Fatal("empty model did not round trip empty")
	}
}

func TestEncodeSkipsNullColumns(t *testing.T) {
	m := scene.NewModel()
	c := m.DeclareClass(0, "Part")
	in := m.AddInstance(1, c)
	in.Set("Name", scene.String("a"))
	in.Set("Mystery", scene.Null{})
	got, err := Decode(Encode(m))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Instance(1).Get("Mystery"); ok {
		t.Fatal("null-only column should not be written")
	}
	if v, _ := got.Instance(1).Get("Name"); v.(scene.String) != "a" {
		t.Fatalf("Name = %v", v)
	}
}
