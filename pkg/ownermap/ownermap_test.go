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

package ownermap

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/sharedref/pkg/refs"
	"gvisor.dev/sharedref/pkg/sharedref"
)

func TestMain(m *testing.M) {
	refs.SetLeakMode(refs.LeaksPanic)
	code := m.Run()
	refs.DoLeakCheck()
	os.Exit(code)
}

type pair struct {
	A, B int
}

func TestAliasesShareAnEntry(t *testing.T) {
	r := sharedref.Make(pair{A: 21, B: 30})
	defer r.Reset()
	p := r.Get()

	m := New[*sharedref.Ref[*int], string]()
	defer m.Clear()

	if _, replaced := m.Set(sharedref.Alias(r, &p.A), "a"); replaced {
		t.Errorf("first Set reported a replacement")
	}
	old, replaced := m.Set(sharedref.Alias(r, &p.B), "b")
	if !replaced || old != "a" {
		t.Errorf("Set through second alias = %q, %t, want a, true", old, replaced)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	// The map holds one key; the replacing key was reset.
	if got := r.UseCount(); got != 2 {
		t.Errorf("UseCount() = %d, want 2", got)
	}
	if v, ok := m.Get(r); !ok || v != "b" {
		t.Errorf("Get(owner) = %q, %t, want b, true", v, ok)
	}

	var keys []int
	m.Ascend(func(k *sharedref.Ref[*int], v string) bool {
		keys = append(keys, *k.Get())
		return true
	})
	if diff := cmp.Diff([]int{21}, keys); diff != "" {
		t.Errorf("stored key mismatch (-want +got):\n%s", diff)
	}
}

func TestWeakAndStrongKeys(t *testing.T) {
	a := sharedref.Make(pair{A: 1})
	defer a.Reset()
	b := sharedref.Make(pair{A: 2})
	defer b.Reset()

	m := New[Key, int]()
	defer m.Clear()
	m.Set(sharedref.NewWeak(a), 1)
	m.Set(b.Clone(), 2)
	if _, replaced := m.Set(a.Clone(), 10); !replaced {
		t.Errorf("Set with a strong key did not find the weak key sharing its block")
	}

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	for _, tc := range []struct {
		owner sharedref.Owner
		want  int
	}{
		{owner: a, want: 10},
		{owner: sharedref.NewWeak(b), want: 2},
	} {
		got, ok := m.Get(tc.owner)
		if !ok || got != tc.want {
			t.Errorf("Get = %d, %t, want %d, true", got, ok, tc.want)
		}
		if w, ok := tc.owner.(*sharedref.Weak[*pair]); ok {
			w.Reset()
		}
	}

	if v, ok := m.Delete(b); !ok || v != 2 {
		t.Errorf("Delete(b) = %d, %t, want 2, true", v, ok)
	}
	if got := b.UseCount(); got != 1 {
		t.Errorf("Delete did not release the stored key: UseCount() = %d, want 1", got)
	}
	if m.Has(b) {
		t.Errorf("Has(b) after Delete")
	}
	if _, ok := m.Delete(b); ok {
		t.Errorf("second Delete(b) succeeded")
	}
}

func TestExpiredWeakKeyStaysDistinct(t *testing.T) {
	m := New[*sharedref.Weak[*int], string]()
	defer m.Clear()

	r := sharedref.Make(1)
	m.Set(sharedref.NewWeak(r), "gone")
	r.Reset()

	// The block stays alive while the map holds a weak key to it, so a new
	// value never collides with it.
	n := sharedref.Make(2)
	defer n.Reset()
	if m.Has(n) {
		t.Errorf("new value collides with an expired key")
	}
	m.Set(sharedref.NewWeak(n), "live")

	var expired []string
	m.Ascend(func(k *sharedref.Weak[*int], v string) bool {
		if k.Expired() {
			expired = append(expired, v)
		}
		return true
	})
	if diff := cmp.Diff([]string{"gone"}, expired); diff != "" {
		t.Errorf("expired keys mismatch (-want +got):\n%s", diff)
	}
}
