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

import "reflect"

// SelfRef lets a value obtain handles to itself while it is managed. A type
// T opts in by embedding SelfRef[T]:
//
//	type Session struct {
//		sharedref.SelfRef[Session]
//		...
//	}
//
// The embedded reference is activated when a *T first comes under
// management through New, NewWithDeleter, Make, MakeFunc, MakeClone, ResetTo
// or ResetWithDeleter, and dropped when the value is released.
//
// A SelfRef must not be copied while active. Copies made by Make or
// MakeClone are recognized and rebound to the new value.
type SelfRef[T any] struct {
	weak Weak[*T]
}

// activator is implemented by *SelfRef[T], and by pointers to types that
// embed it.
type activator interface {
	activateSelf(cb *controlBlock, p any)
}

// activateSelf binds the embedded reference of p to cb, unless p is already
// managed.
func activateSelf[T any](cb *controlBlock, p T) {
	if isNil(any(p)) {
		return
	}
	if a, ok := any(p).(activator); ok {
		a.activateSelf(cb, p)
	}
}

func (s *SelfRef[T]) activateSelf(cb *controlBlock, p any) {
	tp := enclosing[T](s, p)
	if tp == nil {
		return
	}
	if s.weak.cb != nil && s.weak.ptr == tp && !s.weak.Expired() {
		// Already managed.
		return
	}
	// Anything else held here was copied along with the value and carries
	// no weak reference of its own.
	cb.incWeak()
	s.weak = Weak[*T]{ptr: tp, cb: cb}
	cb.self = s
}

// enclosing returns the *T within p that contains s. p is either a *T, or a
// pointer to a struct reaching T through embedded fields.
func enclosing[T any](s *SelfRef[T], p any) *T {
	if tp, ok := p.(*T); ok {
		return tp
	}
	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil
	}
	return findEmbedded[T](v.Elem(), reflect.TypeOf((*T)(nil)).Elem(), reflect.ValueOf(s).Pointer())
}

// findEmbedded searches the embedded fields of v, breadth first, for an
// addressable value of type want whose memory contains addr.
func findEmbedded[T any](v reflect.Value, want reflect.Type, addr uintptr) *T {
	queue := []reflect.Value{v}
	for len(queue) > 0 {
		v, queue = queue[0], queue[1:]
		if v.Kind() != reflect.Struct {
			continue
		}
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).Anonymous {
				continue
			}
			f := v.Field(i)
			if f.Kind() == reflect.Pointer {
				if f.IsNil() {
					continue
				}
				f = f.Elem()
			}
			if f.Type() == want && f.CanAddr() {
				start := f.Addr().Pointer()
				if addr >= start && addr < start+want.Size() {
					return (*T)(f.Addr().UnsafePointer())
				}
			}
			queue = append(queue, f)
		}
	}
	return nil
}

func (s *SelfRef[T]) deactivateSelf(cb *controlBlock) {
	if s.weak.cb == cb {
		s.weak.Reset()
	}
}

// SharedFromThis returns a new strong handle to the value embedding s. It
// returns ErrBadWeakRef if the value is not managed, or has been released.
func (s *SelfRef[T]) SharedFromThis() (*Ref[*T], error) {
	return FromWeak(&s.weak)
}

// WeakFromThis returns a new weak handle to the value embedding s. The
// handle is empty if the value is not managed.
func (s *SelfRef[T]) WeakFromThis() *Weak[*T] {
	return s.weak.Clone()
}
