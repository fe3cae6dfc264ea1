// Copyright 2022 The gVisor Authors.
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

// Package atomicbitops provides the atomic integer types that back the
// reference counters and metric cells of this module.
//
// All types embed sync.NoCopy: a counter that is copied after first use no
// longer counts anything, and `go vet` will say so.
package atomicbitops

import (
	"sync/atomic"

	"gvisor.dev/sharedref/pkg/sync"
)

// Int64 is an atomic int64.
//
// The default value is zero. Don't add fields to this struct; counters are
// embedded in every control block.
type Int64 struct {
	_     sync.NoCopy
	value atomic.Int64
}

// Load is analogous to atomic.LoadInt64.
//
//go:nosplit
func (i *Int64) Load() int64 {
	return i.value.Load()
}

// Store is analogous to atomic.StoreInt64.
//
//go:nosplit
func (i *Int64) Store(v int64) {
	i.value.Store(v)
}

// Add is analogous to atomic.AddInt64.
//
//go:nosplit
func (i *Int64) Add(v int64) int64 {
	return i.value.Add(v)
}

// CompareAndSwap is analogous to atomic.CompareAndSwapInt64.
//
//go:nosplit
func (i *Int64) CompareAndSwap(oldVal, newVal int64) bool {
	return i.value.CompareAndSwap(oldVal, newVal)
}

// IncrementIfPositive adds one to i unless i is zero or negative, and
// reports whether it did. The returned value is the count after the
// increment, or the observed non-positive count on failure.
func (i *Int64) IncrementIfPositive() (int64, bool) {
	for {
		v := i.value.Load()
		if v <= 0 {
			return v, false
		}
		if i.value.CompareAndSwap(v, v+1) {
			return v + 1, true
		}
	}
}

// Uint64 is an atomic uint64.
//
// The default value is zero.
type Uint64 struct {
	_     sync.NoCopy
	value atomic.Uint64
}

// Load is analogous to atomic.LoadUint64.
//
//go:nosplit
func (u *Uint64) Load() uint64 {
	return u.value.Load()
}

// Store is analogous to atomic.StoreUint64.
//
//go:nosplit
func (u *Uint64) Store(v uint64) {
	u.value.Store(v)
}

// Add is analogous to atomic.AddUint64.
//
//go:nosplit
func (u *Uint64) Add(v uint64) uint64 {
	return u.value.Add(v)
}
