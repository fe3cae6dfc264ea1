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

package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"gvisor.dev/sharedref/pkg/log"
	"gvisor.dev/sharedref/pkg/memutil"
	"gvisor.dev/sharedref/pkg/ownermap"
	"gvisor.dev/sharedref/pkg/refs"
	"gvisor.dev/sharedref/pkg/sharedref"
	"gvisor.dev/sharedref/refcheck/cmd/util"
)

// Scenarios implements subcommands.Command for the "scenarios" command.
type Scenarios struct {
	keepGoing bool
}

// Name implements subcommands.Command.Name.
func (*Scenarios) Name() string {
	return "scenarios"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Scenarios) Synopsis() string {
	return "run the reference counting scenarios and check their properties"
}

// Usage implements subcommands.Command.Usage.
func (*Scenarios) Usage() string {
	return `scenarios [-keep-going] - runs every scenario and exits non-zero if a property is violated.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Scenarios) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&s.keepGoing, "keep-going", false, "run the remaining scenarios after a failure.")
}

// Execute implements subcommands.Command.Execute.
func (s *Scenarios) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	failed := 0
	for _, sc := range scenarios() {
		if err := sc.run(); err != nil {
			util.Errorf("FAIL %s: %v", sc.name, err)
			failed++
			if !s.keepGoing {
				return subcommands.ExitFailure
			}
			continue
		}
		util.Infof("PASS %s", sc.name)
	}
	if n := refs.DoRepeatedLeakCheck(); n > 0 {
		util.Errorf("FAIL leak check: %d control blocks still registered", n)
		failed++
	}
	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type scenario struct {
	name string
	run  func() error
}

func scenarios() []scenario {
	return []scenario{
		{name: "make", run: checkMake},
		{name: "copy", run: checkCopy},
		{name: "weak expires", run: checkWeakExpires},
		{name: "bad weak ref", run: checkBadWeakRef},
		{name: "aliasing", run: checkAliasing},
		{name: "custom deleter", run: checkCustomDeleter},
		{name: "self reference", run: checkSelfReference},
		{name: "casts", run: checkCasts},
		{name: "owner map", run: checkOwnerMap},
	}
}

func checkMake() error {
	r := sharedref.Make(21)
	defer r.Reset()
	if got := r.UseCount(); got != 1 {
		return fmt.Errorf("use count %d, want 1", got)
	}
	if got := *r.Get(); got != 21 {
		return fmt.Errorf("value %d, want 21", got)
	}
	return nil
}

func checkCopy() error {
	a := sharedref.Make(21)
	defer a.Reset()
	b := a.Clone()
	if a.UseCount() != 2 || b.UseCount() != 2 {
		b.Reset()
		return fmt.Errorf("use counts %d, %d after copy, want 2, 2", a.UseCount(), b.UseCount())
	}
	b.Reset()
	if got := a.UseCount(); got != 1 {
		return fmt.Errorf("use count %d after dropping the copy, want 1", got)
	}
	return nil
}

func checkWeakExpires() error {
	r := sharedref.Make(30)
	w := sharedref.NewWeak(r)
	defer w.Reset()
	r.Reset()
	if !w.Expired() {
		return errors.New("weak handle not expired after the last strong handle was dropped")
	}
	if l := w.Lock(); !l.Empty() {
		l.Reset()
		return errors.New("lock of an expired weak handle returned a value")
	}
	return nil
}

func checkBadWeakRef() error {
	r := sharedref.Make(30)
	w := sharedref.NewWeak(r)
	defer w.Reset()
	r.Reset()
	s, err := sharedref.FromWeak(w)
	if !errors.Is(err, sharedref.ErrBadWeakRef) {
		s.Reset()
		return fmt.Errorf("construction from expired weak handle returned %v, want %v", err, sharedref.ErrBadWeakRef)
	}
	return nil
}

type pair struct {
	A, B int
}

func checkAliasing() error {
	r := sharedref.Make(pair{A: 21, B: 30})
	p := r.Get()
	a := sharedref.Alias(r, &p.A)
	defer a.Reset()
	b := sharedref.Alias(r, &p.B)
	defer b.Reset()
	r.Reset()

	if a.UseCount() != 2 || b.UseCount() != 2 {
		return fmt.Errorf("use counts %d, %d, want 2, 2", a.UseCount(), b.UseCount())
	}
	if !sharedref.OwnerEqual(a, b) || sharedref.OwnerBefore(a, b) || sharedref.OwnerBefore(b, a) {
		return errors.New("aliases are not equivalent under owner ordering")
	}
	if sharedref.Equal(a, b) {
		return errors.New("aliases of different fields compare equal by address")
	}
	return nil
}

// mappedBlock lives in an anonymous mapping.
type mappedBlock struct {
	Magic uint64
}

func checkCustomDeleter() error {
	p, err := memutil.MapValue[mappedBlock]()
	if err != nil {
		return err
	}
	p.Magic = 0x5ca1ab1e

	var calls int
	var unmapErr error
	r := sharedref.NewWithDeleter(p, sharedref.DeleterFunc[*mappedBlock](func(m *mappedBlock) {
		calls++
		unmapErr = memutil.UnmapValue(m)
	}))
	c := r.Clone()
	r.Reset()
	if calls != 0 {
		c.Reset()
		return errors.New("custom deleter ran while a strong handle was alive")
	}
	c.Reset()
	if calls != 1 {
		return fmt.Errorf("custom deleter ran %d times, want 1", calls)
	}
	return unmapErr
}

type session struct {
	sharedref.SelfRef[session]
	id int
}

func checkSelfReference() error {
	s := &session{id: 1}
	if _, err := s.SharedFromThis(); !errors.Is(err, sharedref.ErrBadWeakRef) {
		return fmt.Errorf("self reference of an unmanaged value returned %v", err)
	}

	r := sharedref.New(s)
	self, err := s.SharedFromThis()
	if err != nil {
		r.Reset()
		return fmt.Errorf("self reference of a managed value: %w", err)
	}
	ok := sharedref.OwnerEqual(r, self) && r.UseCount() == 2
	self.Reset()
	r.Reset()
	if !ok {
		return errors.New("self reference does not share ownership")
	}
	if _, err := s.SharedFromThis(); !errors.Is(err, sharedref.ErrBadWeakRef) {
		return fmt.Errorf("self reference of a released value returned %v", err)
	}
	return nil
}

type shape interface {
	Sides() int
}

type triangle struct{}

func (*triangle) Sides() int { return 3 }

type hexagon struct{}

func (*hexagon) Sides() int { return 6 }

func checkCasts() error {
	r := sharedref.New[shape](&triangle{})
	defer r.Reset()

	t := sharedref.DynamicCast[*triangle](r)
	defer t.Reset()
	if t.Empty() || r.UseCount() != 2 {
		return errors.New("dynamic cast to the right type failed")
	}
	if h := sharedref.DynamicCast[*hexagon](r); !h.Empty() {
		h.Reset()
		return errors.New("dynamic cast to the wrong type succeeded")
	}
	up := sharedref.StaticCast[shape](t)
	defer up.Reset()
	if up.Get().Sides() != 3 || !sharedref.Equal(up, r) {
		return errors.New("static cast does not observe the same value")
	}
	return nil
}

func checkOwnerMap() error {
	r := sharedref.Make(pair{A: 1, B: 2})
	defer r.Reset()
	p := r.Get()

	m := ownermap.New[ownermap.Key, string]()
	defer m.Clear()
	m.Set(sharedref.Alias(r, &p.A), "a")
	m.Set(sharedref.NewWeak(r), "weak")
	if _, replaced := m.Set(sharedref.Alias(r, &p.B), "b"); !replaced {
		return errors.New("aliases of one value did not collapse into one key")
	}
	if m.Len() != 1 {
		return fmt.Errorf("owner map has %d entries, want 1", m.Len())
	}
	log.Debugf("owner map holds %d entry for %v", m.Len(), r)
	return nil
}
