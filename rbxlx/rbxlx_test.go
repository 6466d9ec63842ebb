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

package rbxlx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/SnellerInc/rbxconv/scene"
)

func TestEncodeMinimal(t *testing.T) {
	m := scene.NewModel()
	c := m.DeclareClass(0, "Part")
	a := m.AddInstance(1, c)
	a.Set("Name", scene.String("A"))
	b := m.AddInstance(2, c)
	b.Set("Name", scene.String("B"))
	m.AddLink(2, 1)
	m.Resolve()

	out := string(Encode(m))
	if !strings.HasPrefix(out, "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n") {
		t.Fatalf("missing declaration:\n%s", out)
	}
	if !strings.Contains(out, "<roblox version=\"4\">") {
		t.Fatalf("missing root element:\n%s", out)
	}
	first := strings.Index(out, "<Item class=\"Part\" referent=\"1\"")
	second := strings.Index(out, "<Item class=\"Part\" referent=\"2\" parent=\"1\"")
	if first < 0 || second < 0 {
		t.Fatalf("missing items:\n%s", out)
	}
	if second < first {
		t.Fatal("items out of emission order")
	}
	if strings.Count(out, "<string name=\"Name\">A</string>") != 1 ||
		strings.Count(out, "<string name=\"Name\">B</string>") != 1 {
		t.Fatalf("bad properties:\n%s", out)
	}
}

func TestEncodeEscaping(t *testing.T) {
	m := scene.NewModel()
	m.AddMeta(`key<&>`, `"quoted" & 'single'`)
	c := m.DeclareClass(0, `Cl<ass>`)
	in := m.AddInstance(1, c)
	in.Set(`a<b`, scene.String(`x < y && z > "w"`))
	out := string(Encode(m))
	for _, raw := range []string{`key<`, `"quoted"`, `'single'`, `<ass>`, `a<b`, `< y &&`} {
		if strings.Contains(out, raw) {
			t.Fatalf("unescaped %q in output:\n%s", raw, out)
		}
	}
	// the document must stay well-formed
	dec := xml.NewDecoder(bytes.NewReader([]byte(out)))
	for {
		_, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("malformed output: %s\n%s", err, out)
		}
	}
}

func TestEncodeSharedStrings(t *testing.T) {
	m := scene.NewModel()
	var hash [16]byte
	hash[0], hash[15] = 0xde, 0xad
	m.SetSharedString(hash, "payload")
	out := string(Encode(m))
	want := "<SharedString hash=\"de0000000000000000000000000000ad\">payload</SharedString>"
	if !strings.Contains(out, want) {
		t.Fatalf("missing %s in:\n%s", want, out)
	}
	// block is omitted entirely when the table is empty
	out = string(Encode(scene.NewModel()))
	if strings.Contains(out, "SharedStrings") {
		t.Fatalf("empty table emitted:\n%s", out)
	}
}

func TestEncodeValueForms(t *testing.T) {
	m := scene.NewModel()
	c := m.DeclareClass(0, "Thing")
	in := m.AddInstance(1, c)
	in.Set("S", scene.String("text"))
	in.Set("B", scene.Bool(true))
	in.Set("I", scene.Int(-3))
	in.Set("F", scene.Float(0.5))
	in.Set("D", scene.Double(2.25))
	in.Set("U", scene.Null{}) // unknown-type placeholder: not emitted
	out := string(Encode(m))
	for _, want := range []string{
		"<string name=\"S\">text</string>",
		"<bool name=\"B\">true</bool>",
		"<int name=\"I\">-3</int>",
		"<float name=\"F\">0.5</float>",
		"<double name=\"D\">2.25</double>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s", want)
		}
	}
	if strings.Contains(out, "\"U\"") {
		t.Errorf("placeholder property emitted:\n%s", out)
	}
}

func TestEncodeEmptyItem(t *testing.T) {
	m := scene.NewModel()
	c := m.DeclareClass(0, "Folder")
	m.AddInstance(7, c)
	out := string(Encode(m))
	if !strings.Contains(out, "<Item class=\"Folder\" referent=\"7\"/>") {
		t.Fatalf("bad empty item:\n%s", out)
	}
}
