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

// Package rbxlx emits the XML dialect of the scene
// schema from a finalized scene.Model.
//
// Items are emitted flat, in the Model's original
// emission order, not in tree order: downstream
// tooling depends on the flat order matching the
// binary file. The logical tree survives through each
// item's parent attribute.
package rbxlx

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/SnellerInc/rbxconv/scene"
)

// schemaVersion is the version attribute stamped on
// the root element.
const schemaVersion = 4

// escaper is the single escaping routine every
// attribute value and text node passes through.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Encode emits m as a complete UTF-8 XML document.
// It only reads the Model; m must already be resolved.
func Encode(m *scene.Model) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<roblox version=\"")
	b.WriteString(strconv.Itoa(schemaVersion))
	b.WriteString("\">\n")
	for i := range m.Meta {
		b.WriteString("\t<Meta name=\"")
		escaper.WriteString(&b, m.Meta[i].Key)
		b.WriteString("\">")
		escaper.WriteString(&b, m.Meta[i].Value)
		b.WriteString("</Meta>\n")
	}
	if len(m.SharedStrings) > 0 {
		b.WriteString("\t<SharedStrings>\n")
		for i := range m.SharedStrings {
			b.WriteString("\t\t<SharedString hash=\"")
			b.WriteString(hex.EncodeToString(m.SharedStrings[i].Hash[:]))
			b.WriteString("\">")
			escaper.WriteString(&b, m.SharedStrings[i].Value)
			b.WriteString("</SharedString>\n")
		}
		b.WriteString("\t</SharedStrings>\n")
	}
	for _, inst := range m.Instances {
		writeItem(&b, inst)
	}
	b.WriteString("</roblox>\n")
	return b.Bytes()
}

func writeItem(b *bytes.Buffer, inst *scene.Instance) {
	b.WriteString("\t<Item class=\"")
	escaper.WriteString(b, inst.ClassName)
	b.WriteString("\" referent=\"")
	b.WriteString(referent(inst))
	b.WriteString("\"")
	if p := inst.Parent(); p != nil {
		b.WriteString(" parent=\"")
		b.WriteString(referent(p))
		b.WriteString("\"")
	}
	names := inst.PropNames()
	if len(names) == 0 {
		b.WriteString("/>\n")
		return
	}
	b.WriteString(">\n\t\t<Properties>\n")
	for _, name := range names {
		v, _ := inst.Get(name)
		if v.Type() == scene.TypeInvalid {
			// placeholder for an unknown on-wire
			// type: there is no element to name it
			continue
		}
		b.WriteString("\t\t\t<")
		b.WriteString(v.Type().String())
		b.WriteString(" name=\"")
		escaper.WriteString(b, name)
		b.WriteString("\">")
		escaper.WriteString(b, v.String())
		b.WriteString("</")
		b.WriteString(v.Type().String())
		b.WriteString(">\n")
	}
	b.WriteString("\t\t</Properties>\n\t</Item>\n")
}

func referent(inst *scene.Instance) string {
	return strconv.FormatInt(int64(inst.Referent), 10)
}
