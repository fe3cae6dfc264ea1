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
	"errors"
	"testing"

	"gvisor.dev/sharedref/pkg/refs"
)

type namer interface {
	Name() string
}

type session struct {
	SelfRef[session]
	name string
}

func (s *session) Name() string { return s.name }

func TestSharedFromThisUnmanaged(t *testing.T) {
	s := &session{name: "loose"}
	if r, err := s.SharedFromThis(); !errors.Is(err, ErrBadWeakRef) {
		t.Errorf("SharedFromThis() on unmanaged value = %v, %v, want %v", r, err, ErrBadWeakRef)
	}
	if w := s.WeakFromThis(); !w.Expired() {
		t.Errorf("WeakFromThis() on unmanaged value is not expired")
	}
}

func TestSharedFromThis(t *testing.T) {
	live := refs.LiveObjects()
	s := &session{name: "owned"}
	r := New(s)

	self, err := s.SharedFromThis()
	if err != nil {
		t.Fatalf("SharedFromThis: %v", err)
	}
	if self.Get() != s || !OwnerEqual(self, r) || r.UseCount() != 2 {
		t.Errorf("SharedFromThis: Get() = %p, UseCount() = %d, want %p, 2", self.Get(), r.UseCount(), s)
	}
	w := s.WeakFromThis()
	if w.Expired() || !OwnerEqual(w, r) {
		t.Errorf("WeakFromThis does not observe the managed value")
	}

	self.Reset()
	r.Reset()
	if !w.Expired() {
		t.Errorf("WeakFromThis handle outlived the value")
	}
	w.Reset()
	if _, err := s.SharedFromThis(); !errors.Is(err, ErrBadWeakRef) {
		t.Errorf("SharedFromThis() after release = %v, want %v", err, ErrBadWeakRef)
	}
	if got := refs.LiveObjects(); got != live {
		t.Errorf("embedded self reference kept the block registered: LiveObjects() = %d, want %d", got, live)
	}
}

func TestSharedFromThisInPlace(t *testing.T) {
	r := Make(session{name: "in place"})
	defer r.Reset()

	self, err := r.Get().SharedFromThis()
	if err != nil {
		t.Fatalf("SharedFromThis: %v", err)
	}
	defer self.Reset()
	if !OwnerEqual(self, r) || self.Get().Name() != "in place" {
		t.Errorf("SharedFromThis in place: %v does not share ownership with %v", self, r)
	}
}

func TestSharedFromThisThroughInterface(t *testing.T) {
	r := New[namer](&session{name: "iface"})
	defer r.Reset()

	self, err := r.Get().(*session).SharedFromThis()
	if err != nil {
		t.Fatalf("SharedFromThis: %v", err)
	}
	defer self.Reset()
	if !OwnerEqual(self, r) || !Equal(self, r) {
		t.Errorf("SharedFromThis through interface does not alias the owner")
	}
}

func TestSharedFromThisActivatesOnce(t *testing.T) {
	s := &session{}
	r := New(s)
	defer r.Reset()

	weak := r.cb.weak.Load()
	activateSelf(r.cb, s)
	if got := r.cb.weak.Load(); got != weak {
		t.Errorf("second activation changed the weak count from %d to %d", weak, got)
	}
}

func TestSharedFromThisCopy(t *testing.T) {
	r := Make(session{name: "original"})
	defer r.Reset()

	// The copy carries r's active self reference and must be rebound.
	c := Make(*r.Get())
	defer c.Reset()
	self, err := c.Get().SharedFromThis()
	if err != nil {
		t.Fatalf("SharedFromThis on copy: %v", err)
	}
	defer self.Reset()
	if !OwnerEqual(self, c) || OwnerEqual(self, r) {
		t.Errorf("copy's self reference points at the original's control block")
	}
	if got := r.UseCount(); got != 1 {
		t.Errorf("original UseCount() = %d, want 1", got)
	}

	cl := MakeClone(r.Get())
	defer cl.Reset()
	if cs, err := cl.Get().SharedFromThis(); err != nil || !OwnerEqual(cs, cl) {
		t.Errorf("SharedFromThis on deep copy = %v, %v", cs, err)
	} else {
		cs.Reset()
	}
}

func TestSharedFromThisResetTo(t *testing.T) {
	r := Make(session{name: "first"})
	defer r.Reset()
	s := &session{name: "second"}

	h := StaticCast[namer](r)
	h.ResetTo(s)
	defer h.Reset()
	self, err := s.SharedFromThis()
	if err != nil {
		t.Fatalf("SharedFromThis after ResetTo: %v", err)
	}
	defer self.Reset()
	if !OwnerEqual(self, h) {
		t.Errorf("ResetTo did not activate the self reference")
	}
}

type auditedSession struct {
	session
	audit []string
}

func TestSharedFromThisEmbedded(t *testing.T) {
	d := &auditedSession{session: session{name: "embedded"}}
	r := New(d)
	defer r.Reset()

	self, err := d.SharedFromThis()
	if err != nil {
		t.Fatalf("SharedFromThis through embedded session: %v", err)
	}
	defer self.Reset()
	if self.Get() != &d.session {
		t.Errorf("SharedFromThis observes %p, want the embedded session at %p", self.Get(), &d.session)
	}
	if !OwnerEqual(self, r) || r.UseCount() != 2 {
		t.Errorf("SharedFromThis through embedded session: UseCount() = %d, shares owner = %t", r.UseCount(), OwnerEqual(self, r))
	}

	m := Make(auditedSession{session: session{name: "in place"}})
	defer m.Reset()
	ms, err := m.Get().SharedFromThis()
	if err != nil {
		t.Fatalf("SharedFromThis through embedded session in place: %v", err)
	}
	defer ms.Reset()
	if !OwnerEqual(ms, m) || ms.Get().Name() != "in place" {
		t.Errorf("SharedFromThis in place does not share ownership with %v", m)
	}
}
