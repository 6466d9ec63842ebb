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

package rbxconv

import (
	"errors"
	"strings"
	"testing"

	"github.com/SnellerInc/rbxconv/rbxbin"
	"github.com/SnellerInc/rbxconv/scene"
)

// minimal end-to-end file: one class "Part" with two
// instances, a string property, and a parent link
func minimalScene() []byte {
	m := scene.NewModel()
	c := m.DeclareClass(0, "Part")
	m.AddInstance(1, c).Set("Name", scene.String("A"))
	m.AddInstance(2, c).Set("Name", scene.String("B"))
	m.AddLink(2, 1)
	m.Resolve()
	return rbxbin.Encode(m)
}

func TestConvert(t *testing.T) {
	doc, warnings, err := Convert(minimalScene())
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	out := string(doc)
	i1 := strings.Index(out, "referent=\"1\"")
	i2 := strings.Index(out, "referent=\"2\" parent=\"1\"")
	if i1 < 0 || i2 < 0 || i2 < i1 {
		t.Fatalf("bad item order or parentage:\n%s", out)
	}
	if !strings.Contains(out, "<string name=\"Name\">A</string>") ||
		!strings.Contains(out, "<string name=\"Name\">B</string>") {
		t.Fatalf("missing properties:\n%s", out)
	}
}

func TestConvertFatal(t *testing.T) {
	buf := minimalScene()
	buf[0] ^= 0xff
	doc, _, err := Convert(buf)
	if !errors.Is(err, rbxbin.ErrMagic) {
		t.Fatalf("got %v, want ErrMagic", err)
	}
	if doc != nil {
		t.Fatal("partial document returned alongside an error")
	}
}
