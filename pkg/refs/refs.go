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

// Package refs provides the atomic reference count used by control blocks
// and a process-wide leak checker for reference-counted objects.
package refs

import (
	"fmt"

	"gvisor.dev/sharedref/pkg/atomicbitops"
)

// LeakMode configures the leak checker.
type LeakMode uint32

const (
	// NoLeakChecking indicates that no effort should be made to check for
	// leaks.
	NoLeakChecking LeakMode = iota

	// LeaksLogWarning indicates that a warning should be logged when leaks
	// are found.
	LeaksLogWarning

	// LeaksLogTraces indicates that a trace collected during allocation
	// should be logged when leaks are found, and that every reference
	// event is logged with its stack.
	LeaksLogTraces

	// LeaksPanic indidcates that a panic should be issued when leaks are
	// found.
	LeaksPanic
)

// Set implements flag.Value.
func (l *LeakMode) Set(v string) error {
	switch v {
	case "disabled":
		*l = NoLeakChecking
	case "log-names":
		*l = LeaksLogWarning
	case "log-traces":
		*l = LeaksLogTraces
	case "panic":
		*l = LeaksPanic
	default:
		return fmt.Errorf("invalid ref leak mode %q", v)
	}
	return nil
}

// Get implements flag.Value.
func (l *LeakMode) Get() any {
	return *l
}

// String implements flag.Value.
func (l LeakMode) String() string {
	switch l {
	case NoLeakChecking:
		return "disabled"
	case LeaksLogWarning:
		return "log-names"
	case LeaksLogTraces:
		return "log-traces"
	case LeaksPanic:
		return "panic"
	default:
		panic(fmt.Sprintf("invalid ref leak mode %d", l))
	}
}

// MarshalText implements encoding.TextMarshaler, so that the mode can be
// stored in configuration files by name.
func (l LeakMode) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LeakMode) UnmarshalText(b []byte) error {
	return l.Set(string(b))
}

// leakMode stores the current mode for the reference leak checker.
//
// Values must be one of the LeakMode values.
var leakMode atomicbitops.Uint64

// SetLeakMode configures the reference leak checker.
func SetLeakMode(mode LeakMode) {
	leakMode.Store(uint64(mode))
}

// GetLeakMode returns the current leak mode.
func GetLeakMode() LeakMode {
	return LeakMode(leakMode.Load())
}

// Count is an atomic strong reference count.
//
// A Count starts at one reference (see Init) and, once it drops to zero,
// never leaves zero again: TryIncRef refuses to resurrect it. This is what
// lets weak observers promote themselves without racing against
// destruction.
//
// Count does not log; callers that implement CheckedObject pass the new
// values returned here to LogIncRef and friends.
type Count struct {
	refCount atomicbitops.Int64
}

// Init initializes c with one reference.
func (c *Count) Init() {
	c.refCount.Store(1)
}

// ReadRefs returns the current number of references. The returned count is
// inherently racy and is unsafe to use without external synchronization.
func (c *Count) ReadRefs() int64 {
	return c.refCount.Load()
}

// IncRef adds a reference and returns the new count. The caller must
// already hold a reference.
func (c *Count) IncRef() int64 {
	v := c.refCount.Add(1)
	if v <= 1 {
		panic(fmt.Sprintf("Incrementing non-positive count %p", c))
	}
	return v
}

// TryIncRef adds a reference unless the count has already reached zero. If
// false is returned the referent has been (or is being) destroyed and no
// reference was taken.
//
// This is a compare-and-swap loop rather than a speculative add: a failed
// attempt must never be observable as a reference by a concurrent DecRef.
func (c *Count) TryIncRef() (int64, bool) {
	return c.refCount.IncrementIfPositive()
}

// DecRef drops a reference and returns the new count. The caller that
// observes zero is the one responsible for destruction.
func (c *Count) DecRef() int64 {
	v := c.refCount.Add(-1)
	if v < 0 {
		panic(fmt.Sprintf("Decrementing non-positive ref count %p", c))
	}
	return v
}
