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

package sharedref

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Ref is a strong handle: it shares ownership of a managed value.
//
// A nil *Ref and a Ref with no control block are both empty. All methods
// except the mutating ones accept a nil receiver.
type Ref[T any] struct {
	// ptr is the observed value. It may differ from the managed value for
	// aliasing handles.
	ptr T

	// cb is the shared control block, or nil if the handle is empty.
	cb *controlBlock
}

// Get returns the observed value, or the zero value if r is empty.
func (r *Ref[T]) Get() T {
	if r == nil {
		var zero T
		return zero
	}
	return r.ptr
}

// UseCount returns the number of strong handles sharing r's control block,
// or 0 if r is empty.
func (r *Ref[T]) UseCount() int64 {
	if r.Empty() {
		return 0
	}
	return r.cb.useCount()
}

// Unique returns true if r is the only strong handle to its value.
func (r *Ref[T]) Unique() bool {
	return r.UseCount() == 1
}

// Empty returns true if r shares no control block.
func (r *Ref[T]) Empty() bool {
	return r == nil || r.cb == nil
}

// Clone returns a new handle sharing ownership with r.
func (r *Ref[T]) Clone() *Ref[T] {
	if r.Empty() {
		return &Ref[T]{}
	}
	r.cb.incStrong()
	return &Ref[T]{ptr: r.ptr, cb: r.cb}
}

// Move returns a new handle that takes over r's ownership, leaving r empty.
// The strong count is unchanged.
func (r *Ref[T]) Move() *Ref[T] {
	if r == nil {
		return &Ref[T]{}
	}
	m := &Ref[T]{ptr: r.ptr, cb: r.cb}
	*r = Ref[T]{}
	return m
}

// Assign makes r share ownership with o, releasing whatever r held before.
func (r *Ref[T]) Assign(o *Ref[T]) {
	if o.Empty() {
		r.Reset()
		return
	}
	o.cb.incStrong()
	old := *r
	r.ptr, r.cb = o.ptr, o.cb
	old.release()
}

// MoveFrom transfers o's ownership to r, leaving o empty and releasing
// whatever r held before.
func (r *Ref[T]) MoveFrom(o *Ref[T]) {
	if r == o {
		return
	}
	old := *r
	if o == nil {
		*r = Ref[T]{}
	} else {
		*r = *o
		*o = Ref[T]{}
	}
	old.release()
}

// Swap exchanges the contents of r and o.
func (r *Ref[T]) Swap(o *Ref[T]) {
	*r, *o = *o, *r
}

// Reset releases r's ownership and leaves r empty. If r was the last strong
// handle, the value is released before Reset returns.
func (r *Ref[T]) Reset() {
	if r == nil {
		return
	}
	old := *r
	*r = Ref[T]{}
	old.release()
}

// ResetTo makes r the sole owner of p with the default release action,
// releasing whatever r held before.
func (r *Ref[T]) ResetTo(p T) {
	r.MoveFrom(New(p))
}

// ResetWithDeleter makes r the sole owner of p with release action d,
// releasing whatever r held before.
func (r *Ref[T]) ResetWithDeleter(p T, d Deleter[T]) {
	r.MoveFrom(NewWithDeleter(p, d))
}

// release drops the strong reference held by a handle value that is no
// longer reachable through any *Ref.
func (r Ref[T]) release() {
	if r.cb != nil {
		r.cb.decStrong()
	}
}

// OwnerKey implements Owner.OwnerKey.
func (r *Ref[T]) OwnerKey() OwnerKey {
	if r == nil {
		return OwnerKey{}
	}
	return OwnerKey{cb: r.cb}
}

// OwnerBefore returns true if r's control block orders before o's.
func (r *Ref[T]) OwnerBefore(o Owner) bool {
	return OwnerBefore(r, o)
}

// Address returns the address of the observed value, or 0 if it is nil or
// not a reference.
func (r *Ref[T]) Address() uintptr {
	return addressOf(r.Get())
}

// Hash returns a hash of the observed address. Handles that are Equal have
// equal hashes.
func (r *Ref[T]) Hash() uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(r.Address()))
	return xxhash.Sum64(buf[:])
}

// String implements fmt.Stringer. It renders the observed address.
func (r *Ref[T]) String() string {
	return fmt.Sprintf("%#x", r.Address())
}

// Equal returns true if a and b observe the same address.
func Equal[T, U any](a *Ref[T], b *Ref[U]) bool {
	return a.Address() == b.Address()
}

// Compare orders a and b by observed address. It returns -1, 0 or +1.
func Compare[T, U any](a *Ref[T], b *Ref[U]) int {
	x, y := a.Address(), b.Address()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
