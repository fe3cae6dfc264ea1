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
	"github.com/mohae/deepcopy"

	"gvisor.dev/sharedref/pkg/cleanup"
)

// New returns a handle that is the sole owner of p. When the last strong
// handle is released, p.Destroy is called if p implements Destructor.
//
// If the control block cannot be set up, p is released before the panic
// propagates.
func New[T any](p T) *Ref[T] {
	cu := cleanup.Make(func() { destroyValue(p) })
	defer cu.Clean()

	b := &ptrBlock[T]{ptr: p}
	b.init(b)
	cu.Release()

	activateSelf(&b.controlBlock, p)
	return &Ref[T]{ptr: p, cb: &b.controlBlock}
}

// NewWithDeleter returns a handle that is the sole owner of p, released by
// calling d.Delete(p). p may be the zero value, in which case the handle is
// still non-empty and d receives the zero value. A nil d selects the
// default release action.
//
// If the control block cannot be set up, d.Delete(p) is called before the
// panic propagates.
func NewWithDeleter[T any](p T, d Deleter[T]) *Ref[T] {
	if d == nil {
		return New(p)
	}
	cu := cleanup.Make(func() { d.Delete(p) })
	defer cu.Clean()

	b := &deleterBlock[T]{ptr: p, del: d}
	b.init(b)
	cu.Release()

	activateSelf(&b.controlBlock, p)
	return &Ref[T]{ptr: p, cb: &b.controlBlock}
}

// Make returns a handle to a copy of v stored together with its control
// block in a single allocation.
func Make[T any](v T) *Ref[*T] {
	return MakeFunc(func(p *T) { *p = v })
}

// MakeFunc allocates a zero T together with its control block, initializes
// it with init, and returns a handle to it. A nil init leaves the value
// zero.
//
// If init panics nothing is managed. If the control block cannot be set up
// after init returns, the value is released before the panic propagates.
func MakeFunc[T any](init func(p *T)) *Ref[*T] {
	b := &inplaceBlock[T]{}
	if init != nil {
		init(&b.obj)
	}

	cu := cleanup.Make(func() { destroyValue(&b.obj) })
	defer cu.Clean()
	b.init(b)
	cu.Release()

	activateSelf(&b.controlBlock, &b.obj)
	return &Ref[*T]{ptr: &b.obj, cb: &b.controlBlock}
}

// MakeClone is like Make, but stores a deep copy of *proto. Unexported
// fields are not copied and start out zero. A nil proto yields a zero value.
func MakeClone[T any](proto *T) *Ref[*T] {
	return MakeFunc(func(p *T) {
		if proto == nil {
			return
		}
		if c, ok := deepcopy.Copy(*proto).(T); ok {
			*p = c
		}
	})
}

// FromWeak returns a strong handle sharing w's control block. If w's value
// has been released, or w is empty, it returns ErrBadWeakRef and nothing
// changes.
func FromWeak[T any](w *Weak[T]) (*Ref[T], error) {
	r := w.Lock()
	if r.Empty() {
		badWeakRefs.Increment()
		return nil, ErrBadWeakRef
	}
	return r, nil
}

// Alias returns a handle that shares ownership with r but observes p,
// typically a part of r's value. Aliasing an empty handle yields an empty
// handle.
func Alias[T, U any](r *Ref[U], p T) *Ref[T] {
	if r.Empty() {
		return &Ref[T]{}
	}
	r.cb.incStrong()
	return &Ref[T]{ptr: p, cb: r.cb}
}
