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

// Package sharedref provides reference-counted shared ownership of a value.
//
// A Ref is a strong, owning handle: the value it observes stays alive while
// at least one Ref sharing its control block exists, and is released
// exactly once when the last one is reset. A Weak is a non-owning observer
// of the same control block; it never keeps the value alive, but can be
// promoted back to a Ref with Lock while the value still is.
//
// Handles are explicit: Go has no destructors, so every Ref and Weak must
// be released with Reset (or transferred with Move) when it is no longer
// needed. A forgotten handle is a leak and is reported by pkg/refs leak
// checking. Cycles of strong handles leak in the same way.
//
// All counter updates are atomic, so handles to the same value may be
// cloned, locked and reset from different goroutines. A single handle
// instance must not be mutated concurrently.
//
// The observed type T is normally a pointer, or an interface implemented by
// pointers: identity, hashing, ordering and printing all use the address
// the handle observes.
package sharedref

import (
	"errors"
)

// ErrBadWeakRef is returned when a Ref is constructed from a Weak whose
// value has already been released.
var ErrBadWeakRef = errors.New("bad weak reference: managed value has been released")

// Destructor is implemented by values that need work done when the last
// strong reference to them is dropped. It is the default release action of
// New and Make.
type Destructor interface {
	Destroy()
}

// Deleter is a custom release action. It replaces the default release
// action and receives the value passed to NewWithDeleter.
type Deleter[T any] interface {
	Delete(p T)
}

// DeleterFunc adapts an ordinary function to a Deleter.
type DeleterFunc[T any] func(p T)

// Delete calls f(p).
func (f DeleterFunc[T]) Delete(p T) {
	f(p)
}

// GetDeleter returns the custom deleter of the control block r shares, if
// it was created with NewWithDeleter and the deleter's dynamic type is D.
func GetDeleter[D any, T any](r *Ref[T]) (D, bool) {
	var zero D
	if r.Empty() {
		return zero, false
	}
	d, ok := r.cb.impl.deleter().(D)
	if !ok {
		return zero, false
	}
	return d, true
}
