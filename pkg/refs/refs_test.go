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

package refs

import (
	"fmt"
	"strings"
	"testing"
)

type testObject struct {
	name     string
	disabled bool
}

func (o *testObject) RefType() string         { return "testObject" }
func (o *testObject) LeakMessage() string     { return fmt.Sprintf("[testObject %s] leaked", o.name) }
func (o *testObject) LogRefs() bool           { return false }
func (o *testObject) LeakCheckDisabled() bool { return o.disabled }

func withLeakMode(t *testing.T, mode LeakMode) {
	t.Helper()
	old := GetLeakMode()
	SetLeakMode(mode)
	t.Cleanup(func() { SetLeakMode(old) })
}

func TestCount(t *testing.T) {
	var c Count
	c.Init()
	if got := c.IncRef(); got != 2 {
		t.Fatalf("IncRef() = %d, want 2", got)
	}
	if got := c.DecRef(); got != 1 {
		t.Fatalf("DecRef() = %d, want 1", got)
	}
	if got, ok := c.TryIncRef(); !ok || got != 2 {
		t.Fatalf("TryIncRef() = (%d, %t), want (2, true)", got, ok)
	}
	c.DecRef()
	if got := c.DecRef(); got != 0 {
		t.Fatalf("last DecRef() = %d, want 0", got)
	}
	if got, ok := c.TryIncRef(); ok {
		t.Fatalf("TryIncRef() on a dead count = (%d, true), want failure", got)
	}
	if got := c.ReadRefs(); got != 0 {
		t.Errorf("ReadRefs() after failed TryIncRef = %d, want 0", got)
	}
}

func TestCountMisuse(t *testing.T) {
	for _, tc := range []struct {
		name string
		op   func(c *Count)
	}{
		{name: "IncRef on zero", op: func(c *Count) { c.IncRef() }},
		{name: "DecRef below zero", op: func(c *Count) { c.DecRef() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s did not panic", tc.name)
				}
			}()
			var c Count
			tc.op(&c)
		})
	}
}

func TestLeakModeFlag(t *testing.T) {
	for _, name := range []string{"disabled", "log-names", "log-traces", "panic"} {
		var m LeakMode
		if err := m.Set(name); err != nil {
			t.Fatalf("Set(%q): %v", name, err)
		}
		if got := m.String(); got != name {
			t.Errorf("String() = %q after Set(%q)", got, name)
		}
	}
	var m LeakMode
	if err := m.UnmarshalText([]byte("bogus")); err == nil {
		t.Errorf("UnmarshalText(bogus) succeeded, want error")
	}
}

func TestRegisterDisabled(t *testing.T) {
	withLeakMode(t, NoLeakChecking)
	before := LiveObjects()
	Register(&testObject{name: "ignored"})
	if got := LiveObjects(); got != before {
		t.Errorf("LiveObjects() = %d after Register with leak checking disabled, want %d", got, before)
	}
}

func TestLeakCheck(t *testing.T) {
	withLeakMode(t, LeaksLogWarning)
	leaked := &testObject{name: "leaked"}
	released := &testObject{name: "released"}
	quiet := &testObject{name: "quiet", disabled: true}
	Register(leaked)
	Register(released)
	Register(quiet)
	defer Unregister(leaked)
	defer Unregister(quiet)

	Unregister(released)
	if got := DoRepeatedLeakCheck(); got != 1 {
		t.Errorf("DoRepeatedLeakCheck() = %d, want 1", got)
	}
}

func TestLeakCheckPanics(t *testing.T) {
	withLeakMode(t, LeaksPanic)
	obj := &testObject{name: "cycle"}
	Register(obj)
	defer Unregister(obj)

	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.Contains(msg, "[testObject cycle] leaked") {
			t.Errorf("panic = %v, want a leak report naming the object", r)
		}
	}()
	DoRepeatedLeakCheck()
}

func TestDoubleRegisterPanics(t *testing.T) {
	withLeakMode(t, LeaksLogWarning)
	obj := &testObject{name: "twice"}
	Register(obj)
	defer Unregister(obj)
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("second Register did not panic")
		}
	}()
	Register(obj)
}

func TestFormatStack(t *testing.T) {
	s := FormatStack(RecordStack())
	if !strings.Contains(s, "testing.tRunner") {
		t.Errorf("FormatStack(RecordStack()) = %q, want it to include the test runner frame", s)
	}
}
