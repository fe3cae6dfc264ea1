// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ownermap provides an ordered map keyed by shared ownership.
//
// Keys are strong or weak handles from pkg/sharedref. Two handles are the
// same key when they share a control block, whatever address each of them
// observes, so handles aliasing different parts of one value collapse into
// a single entry.
package ownermap

import (
	"github.com/google/btree"

	"gvisor.dev/sharedref/pkg/sharedref"
)

// degree is the B-tree degree.
const degree = 16

// Key is a handle that can be stored in a Map. Both *sharedref.Ref[T] and
// *sharedref.Weak[T] are Keys.
type Key interface {
	sharedref.Owner
	Reset()
}

type entry[K Key, V any] struct {
	owner sharedref.OwnerKey
	key   K
	value V
}

func less[K Key, V any](a, b entry[K, V]) bool {
	return a.owner.Less(b.owner)
}

// Map is an ordered map from handles to values. It owns the key handles
// stored in it and resets them when their entries are removed.
//
// Map is not safe for concurrent use.
type Map[K Key, V any] struct {
	tree *btree.BTreeG[entry[K, V]]
}

// New returns an empty Map.
func New[K Key, V any]() *Map[K, V] {
	return &Map[K, V]{tree: btree.NewG(degree, less[K, V])}
}

// Set takes ownership of k and maps it to v. If an entry sharing k's
// control block exists, its value is replaced, the stored key is kept, and k
// is reset; the old value is returned with replaced set.
//
// Empty handles are a valid key, and all empty handles are equivalent.
func (m *Map[K, V]) Set(k K, v V) (old V, replaced bool) {
	e := entry[K, V]{owner: k.OwnerKey(), key: k, value: v}
	if prev, ok := m.tree.Get(e); ok {
		e.key = prev.key
		m.tree.ReplaceOrInsert(e)
		k.Reset()
		return prev.value, true
	}
	m.tree.ReplaceOrInsert(e)
	return old, false
}

// Get returns the value mapped to the entry sharing o's control block.
func (m *Map[K, V]) Get(o sharedref.Owner) (V, bool) {
	e, ok := m.tree.Get(entry[K, V]{owner: o.OwnerKey()})
	return e.value, ok
}

// Has returns true if an entry shares o's control block.
func (m *Map[K, V]) Has(o sharedref.Owner) bool {
	return m.tree.Has(entry[K, V]{owner: o.OwnerKey()})
}

// Delete removes the entry sharing o's control block, resets its stored key,
// and returns its value.
func (m *Map[K, V]) Delete(o sharedref.Owner) (V, bool) {
	e, ok := m.tree.Delete(entry[K, V]{owner: o.OwnerKey()})
	if !ok {
		return e.value, false
	}
	e.key.Reset()
	return e.value, true
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.tree.Len()
}

// Ascend calls fn for every entry in owner order until fn returns false.
// fn must not modify m.
func (m *Map[K, V]) Ascend(fn func(k K, v V) bool) {
	m.tree.Ascend(func(e entry[K, V]) bool {
		return fn(e.key, e.value)
	})
}

// Clear removes every entry and resets every stored key.
func (m *Map[K, V]) Clear() {
	m.tree.Ascend(func(e entry[K, V]) bool {
		e.key.Reset()
		return true
	})
	m.tree.Clear(false)
}
