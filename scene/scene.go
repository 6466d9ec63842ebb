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

// Package scene implements the in-memory object graph
// produced by decoding a binary scene file.
//
// A Model is the single mutable accumulator for one
// conversion: the chunk decoders in package rbxbin
// populate it during the decode pass, Model.Resolve
// wires up the parent/child graph, and the emitter in
// package rbxlx reads it back out. A Model is not safe
// for concurrent mutation, but independent Models may
// be used freely from different goroutines.
package scene

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// NoParent is the referent that marks an instance as a
// root in a parent-link record.
const NoParent int32 = -1

// MetaEntry is one (key, value) metadata pair. Keys
// are not required to be unique.
type MetaEntry struct {
	Key   string
	Value string
}

// SharedString is one entry in the deduplicated string
// table, keyed by a 16-byte content hash.
type SharedString struct {
	Hash  [16]byte
	Value string
}

// Class is one entry in the class registry: the class
// name associated with a numeric class ID, plus the
// referents declared under that ID in declaration
// order. Property chunks distribute their values
// across exactly these referents, in this order.
type Class struct {
	ID   uint32
	Name string
	Refs []int32
}

// Link is a raw (child, parent) pair collected from a
// parent-link chunk before resolution. Parent may be
// NoParent.
type Link struct {
	Child  int32
	Parent int32
}

// Model accumulates everything decoded from one file.
type Model struct {
	// Version is the format version from the file
	// header.
	Version uint16
	// DeclaredClasses and DeclaredInstances are the
	// counts from the file header. They are
	// informational; the decoded chunks are
	// authoritative.
	DeclaredClasses   uint32
	DeclaredInstances uint32

	// Meta holds metadata pairs in encounter order.
	Meta []MetaEntry
	// SharedStrings holds the shared string table in
	// first-insertion order.
	SharedStrings []SharedString
	// Instances holds every instance in original
	// emission order. Output order is significant
	// for downstream tooling, so this order is
	// preserved end to end.
	Instances []*Instance
	// Warnings records recoverable anomalies
	// encountered during decoding and resolution.
	// These never abort a conversion; fatal
	// conditions travel on the error channel
	// instead.
	Warnings []string

	shared  map[[16]byte]int
	refs    map[int32]*Instance
	classes map[uint32]*Class
	links   []Link
}

// NewModel returns an empty Model.
func NewModel() *Model {
	return &Model{
		shared:  make(map[[16]byte]int),
		refs:    make(map[int32]*Instance),
		classes: make(map[uint32]*Class),
	}
}

// AddMeta appends one metadata pair.
func (m *Model) AddMeta(key, value string) {
	m.Meta = append(m.Meta, MetaEntry{Key: key, Value: value})
}

// SetSharedString inserts a shared string keyed by its
// content hash. A colliding hash overwrites the
// earlier value in place (the hash is content-derived,
// so a collision means identical content), keeping the
// original table position.
func (m *Model) SetSharedString(hash [16]byte, value string) {
	if i, ok := m.shared[hash]; ok {
		m.SharedStrings[i].Value = value
		return
	}
	m.shared[hash] = len(m.SharedStrings)
	m.SharedStrings = append(m.SharedStrings, SharedString{Hash: hash, Value: value})
}

// DeclareClass returns the registry entry for the
// given class ID, creating it with the given name if
// it does not exist yet. The registry is append-only:
// re-declaring an existing ID returns the existing
// entry so that further referents extend its list.
func (m *Model) DeclareClass(id uint32, name string) *Class {
	if c, ok := m.classes[id]; ok {
		if c.Name != name {
			m.Warnf("class id %d redeclared as %q (was %q)", id, name, c.Name)
		}
		return c
	}
	c := &Class{ID: id, Name: name}
	m.classes[id] = c
	return c
}

// Class returns the registry entry for id, or nil if
// no instance chunk has declared it.
func (m *Model) Class(id uint32) *Class {
	return m.classes[id]
}

// ClassIDs returns all declared class IDs in ascending
// order.
func (m *Model) ClassIDs() []uint32 {
	ids := make([]uint32, 0, len(m.classes))
	for id := range m.classes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AddInstance creates an instance with the given
// referent under class c, appends it to the emission
// order, and records the referent in c's declaration
// list.
func (m *Model) AddInstance(ref int32, c *Class) *Instance {
	inst := &Instance{
		Referent:  ref,
		ClassName: c.Name,
	}
	if _, ok := m.refs[ref]; ok {
		m.Warnf("referent %d declared more than once", ref)
	}
	m.refs[ref] = inst
	m.Instances = append(m.Instances, inst)
	c.Refs = append(c.Refs, ref)
	return inst
}

// Instance returns the instance with the given
// referent, or nil.
func (m *Model) Instance(ref int32) *Instance {
	return m.refs[ref]
}

// AddLink records one raw (child, parent) pair for
// later resolution. No graph mutation happens here.
func (m *Model) AddLink(child, parent int32) {
	m.links = append(m.links, Link{Child: child, Parent: parent})
}

// Warnf appends a formatted entry to m.Warnings.
func (m *Model) Warnf(f string, args ...interface{}) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(f, args...))
}

// Resolve wires up the parent/child graph from the
// collected links. Pairs that reference a missing
// child or parent are dropped (the source format may
// reference instances outside the current export).
// When a child is linked more than once, the last link
// wins and the child is detached from its previous
// parent first, so it is owned by at most one parent.
func (m *Model) Resolve() {
	for i := range m.links {
		l := &m.links[i]
		if l.Parent == NoParent {
			continue
		}
		child := m.refs[l.Child]
		parent := m.refs[l.Parent]
		if child == nil || parent == nil {
			m.Warnf("dangling link %d -> %d", l.Child, l.Parent)
			continue
		}
		// the format does not guarantee acyclicity;
		// refuse to create an ancestry loop
		if child == parent || isAncestor(child, parent) {
			m.Warnf("link %d -> %d would create a cycle", l.Child, l.Parent)
			continue
		}
		if child.parent != nil {
			child.parent.detach(child)
		}
		child.parent = parent
		parent.Children = append(parent.Children, child)
	}
}

// isAncestor reports whether a is an ancestor of x.
func isAncestor(a, x *Instance) bool {
	for p := x.parent; p != nil; p = p.parent {
		if p == a {
			return true
		}
	}
	return false
}

// Instance is one scene node. Its referent is unique
// within the file and stable for the file's lifetime.
type Instance struct {
	Referent  int32
	ClassName string
	// Children holds the instances owned by this one,
	// in attachment order.
	Children []*Instance

	parent *Instance
	props  map[string]Value
	order  []string
}

// Parent returns the owning instance, or nil for a
// root. The back-reference is non-owning; Children is
// the authoritative ownership list.
func (in *Instance) Parent() *Instance {
	return in.parent
}

// Set stores a property value under name. A repeated
// name overwrites the prior value but keeps its
// original position in decode order.
func (in *Instance) Set(name string, v Value) {
	if in.props == nil {
		in.props = make(map[string]Value)
	}
	if _, ok := in.props[name]; !ok {
		in.order = append(in.order, name)
	}
	in.props[name] = v
}

// Get returns the property value stored under name.
func (in *Instance) Get(name string) (Value, bool) {
	v, ok := in.props[name]
	return v, ok
}

// PropNames returns the property names in decode
// order. The returned slice is shared; callers must
// not modify it.
func (in *Instance) PropNames() []string {
	return in.order
}

func (in *Instance) detach(child *Instance) {
	i := slices.Index(in.Children, child)
	if i >= 0 {
		in.Children = slices.Delete(in.Children, i, i+1)
	}
	child.parent = nil
}
