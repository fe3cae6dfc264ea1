// Copyright 2020 The gVisor Authors.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file or at
// https://developers.google.com/open-source/licenses/bsd.

// Package sync provides synchronization primitives used throughout the
// module. Callers import it instead of the standard library package so that
// lock types can later be swapped for instrumented versions in one place.
package sync

import (
	"sync"
)

// Aliases of standard library types.
type (
	// Mutex is an alias of sync.Mutex.
	Mutex = sync.Mutex

	// Once is an alias of sync.Once.
	Once = sync.Once
)

// NoCopy may be embedded into structs which must not be copied after first
// use. It has no fields and costs nothing at runtime; `go vet` reports
// copies through the copylocks check.
//
// See https://golang.org/issues/8005#issuecomment-190753527.
type NoCopy struct{}

// Lock is a no-op used by the copylocks checker from `go vet`.
func (*NoCopy) Lock() {}

// Unlock is a no-op used by the copylocks checker from `go vet`.
func (*NoCopy) Unlock() {}
