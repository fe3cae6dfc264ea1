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
	"fmt"
	"reflect"
	"unsafe"
)

// CastKind selects how Cast converts the observed value.
type CastKind int

const (
	// Static asserts the observed value to the target type and panics if it
	// does not hold one. A nil value converts to the zero target.
	Static CastKind = iota

	// Dynamic asserts the observed value to the target type and yields an
	// empty handle if it does not hold one, or if the result is nil.
	Dynamic

	// Const converts the observed value with a Go conversion, such as
	// between a named pointer type and its underlying type. It panics if
	// the types are not convertible.
	Const

	// Reinterpret reinterprets the bits of the observed value as the target
	// type. It panics if the two types differ in size.
	Reinterpret
)

// String implements fmt.Stringer.
func (k CastKind) String() string {
	switch k {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	case Const:
		return "const"
	case Reinterpret:
		return "reinterpret"
	default:
		return fmt.Sprintf("CastKind(%d)", int(k))
	}
}

// Cast returns a handle sharing ownership with r that observes r's value
// converted to To according to kind. Casting an empty handle yields an
// empty handle.
func Cast[To, From any](r *Ref[From], kind CastKind) *Ref[To] {
	if r.Empty() {
		return &Ref[To]{}
	}
	var p To
	switch kind {
	case Static:
		p = staticConvert[To](r.ptr)
	case Dynamic:
		var ok bool
		if p, ok = any(r.ptr).(To); !ok || isNil(any(p)) {
			return &Ref[To]{}
		}
	case Const:
		p = valueConvert[To](r.ptr)
	case Reinterpret:
		p = reinterpretConvert[To](r.ptr)
	default:
		panic(fmt.Sprintf("unknown cast kind %v", kind))
	}
	return Alias(r, p)
}

// StaticCast is Cast with kind Static.
func StaticCast[To, From any](r *Ref[From]) *Ref[To] {
	return Cast[To](r, Static)
}

// DynamicCast is Cast with kind Dynamic.
func DynamicCast[To, From any](r *Ref[From]) *Ref[To] {
	return Cast[To](r, Dynamic)
}

// ConstCast is Cast with kind Const.
func ConstCast[To, From any](r *Ref[From]) *Ref[To] {
	return Cast[To](r, Const)
}

// ReinterpretCast is Cast with kind Reinterpret.
func ReinterpretCast[To, From any](r *Ref[From]) *Ref[To] {
	return Cast[To](r, Reinterpret)
}

func staticConvert[To, From any](from From) To {
	if to, ok := any(from).(To); ok {
		return to
	}
	if isNil(any(from)) {
		var zero To
		return zero
	}
	panic(fmt.Sprintf("static cast of %T to %v", from, reflect.TypeOf((*To)(nil)).Elem()))
}

func valueConvert[To, From any](from From) To {
	v := reflect.ValueOf(&from).Elem()
	t := reflect.TypeOf((*To)(nil)).Elem()
	if !v.CanConvert(t) {
		panic(fmt.Sprintf("const cast of %v to %v", v.Type(), t))
	}
	return v.Convert(t).Interface().(To)
}

func reinterpretConvert[To, From any](from From) To {
	var to To
	if unsafe.Sizeof(to) != unsafe.Sizeof(from) {
		panic(fmt.Sprintf("reinterpret cast of %v (%d bytes) to %v (%d bytes)", reflect.TypeOf((*From)(nil)).Elem(), unsafe.Sizeof(from), reflect.TypeOf((*To)(nil)).Elem(), unsafe.Sizeof(to)))
	}
	return *(*To)(unsafe.Pointer(&from))
}
