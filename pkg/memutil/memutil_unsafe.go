// Copyright 2018 The gVisor Authors.
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

// Package memutil provides utilities for working with memory that lives
// outside the Go heap.
package memutil

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// roundUp rounds size up to a multiple of the system page size.
func roundUp(size uintptr) uintptr {
	page := uintptr(unix.Getpagesize())
	return (size + page - 1) &^ (page - 1)
}

// MapSlice returns a private anonymous read/write mapping of at least size
// bytes. The returned slice has len and cap equal to the mapped size.
func MapSlice(size uintptr) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("cannot map zero bytes")
	}
	b, err := unix.Mmap(-1, 0, int(roundUp(size)), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap(%d): %w", size, err)
	}
	return b, nil
}

// UnmapSlice unmaps a mapping returned by MapSlice.
func UnmapSlice(slice []byte) error {
	if err := unix.Munmap(slice); err != nil {
		return fmt.Errorf("munmap(%#x, %d): %w", uintptr(unsafe.Pointer(unsafe.SliceData(slice))), cap(slice), err)
	}
	return nil
}

// MapValue allocates a zero value of T in its own anonymous mapping.
//
// The memory is invisible to the garbage collector, so T must not contain Go
// pointers. The value must be released with UnmapValue.
func MapValue[T any]() (*T, error) {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		size = 1
	}
	b, err := MapSlice(size)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

// UnmapValue releases a value returned by MapValue. p must not be used
// afterwards.
func UnmapValue[T any](p *T) error {
	if p == nil {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		size = 1
	}
	size = roundUp(size)
	return UnmapSlice(unsafe.Slice((*byte)(unsafe.Pointer(p)), size))
}
