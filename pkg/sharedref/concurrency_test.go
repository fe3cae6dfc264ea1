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
	"testing"

	"golang.org/x/sync/errgroup"

	"gvisor.dev/sharedref/pkg/atomicbitops"
)

const (
	goroutines = 16
	iterations = 2000
)

func TestConcurrentCloneAndLock(t *testing.T) {
	w, destroyed := newWidget(1, 2)
	r := New(w)
	before := blocksReleased.Value()

	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < iterations; j++ {
				c := r.Clone()
				wk := NewWeak(c)
				l := wk.Lock()
				if l.Get() != w {
					t.Errorf("Lock() on a live value observed %p, want %p", l.Get(), w)
				}
				l.Reset()
				wk.Reset()
				c.Reset()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("errgroup: %v", err)
	}

	if got := r.UseCount(); got != 1 {
		t.Errorf("UseCount() after concurrent churn = %d, want 1", got)
	}
	if got := destroyed.Load(); got != 0 {
		t.Errorf("value destroyed %d times while owned", got)
	}
	r.Reset()
	if got := destroyed.Load(); got != 1 {
		t.Errorf("Destroy called %d times, want 1", got)
	}
	checkReleased(t, before, 1)
}

// relockAttempts bounds the promotions each goroutine makes after dropping
// its own strong handle.
const relockAttempts = 64

// TestLockRacesRelease promotes weak handles while the last strong handles
// are being dropped. A successful Lock must never observe a released value.
func TestLockRacesRelease(t *testing.T) {
	for round := 0; round < 50; round++ {
		w, destroyed := newWidget(1, 2)
		owner := New(w)
		var lockedAfterDestroy atomicbitops.Int64

		weaks := make([]*Weak[*widget], goroutines)
		strongs := make([]*Ref[*widget], goroutines)
		for i := range weaks {
			weaks[i] = NewWeak(owner)
			strongs[i] = owner.Clone()
		}
		owner.Reset()

		check := func(l *Ref[*widget]) bool {
			if l.Empty() {
				return false
			}
			if destroyed.Load() != 0 {
				lockedAfterDestroy.Add(1)
			}
			l.Reset()
			return true
		}
		var g errgroup.Group
		for i := 0; i < goroutines; i++ {
			wk, s := weaks[i], strongs[i]
			g.Go(func() error {
				// s is still held, so this promotion always succeeds.
				if !check(wk.Lock()) {
					t.Errorf("Lock() failed while a strong handle was held")
				}
				s.Reset()
				for j := 0; j < relockAttempts && check(wk.Lock()); j++ {
				}
				wk.Reset()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("errgroup: %v", err)
		}
		if got := destroyed.Load(); got != 1 {
			t.Fatalf("round %d: Destroy called %d times, want 1", round, got)
		}
		if got := lockedAfterDestroy.Load(); got != 0 {
			t.Fatalf("round %d: Lock succeeded %d times after destruction", round, got)
		}
	}
}
