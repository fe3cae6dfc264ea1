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
	"reflect"
)

// ptrBlock manages a value with the default release action.
type ptrBlock[T any] struct {
	controlBlock
	ptr T
}

func (b *ptrBlock[T]) destroy() {
	destroyValue(b.ptr)
}

func (b *ptrBlock[T]) clear() {
	var zero T
	b.ptr = zero
}

func (b *ptrBlock[T]) deleter() any {
	return nil
}

// deleterBlock manages a value with a custom release action.
type deleterBlock[T any] struct {
	controlBlock
	ptr T
	del Deleter[T]
}

func (b *deleterBlock[T]) destroy() {
	b.del.Delete(b.ptr)
}

func (b *deleterBlock[T]) clear() {
	var zero T
	b.ptr = zero
}

func (b *deleterBlock[T]) deleter() any {
	return b.del
}

// inplaceBlock stores the managed value itself, so value and bookkeeping
// share one allocation.
type inplaceBlock[T any] struct {
	controlBlock
	obj T
}

func (b *inplaceBlock[T]) destroy() {
	destroyValue(&b.obj)
}

func (b *inplaceBlock[T]) clear() {
	var zero T
	b.obj = zero
}

func (b *inplaceBlock[T]) deleter() any {
	return nil
}

// destroyValue is the default release action: it calls Destroy on values
// that implement Destructor.
func destroyValue(v any) {
	if isNil(v) {
		return
	}
	if d, ok := v.(Destructor); ok {
		d.Destroy()
	}
}

// isNil reports whether v is nil or holds a nil reference.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// addressOf returns the address v observes, or 0 for nil and for values
// that are not references.
func addressOf(v any) uintptr {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice:
		return rv.Pointer()
	}
	return 0
}
