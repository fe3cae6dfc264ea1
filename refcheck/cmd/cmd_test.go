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
	"os"
	"testing"
	"time"

	"github.com/google/subcommands"

	"gvisor.dev/sharedref/pkg/refs"
	"gvisor.dev/sharedref/refcheck/config"
)

func TestMain(m *testing.M) {
	refs.SetLeakMode(refs.LeaksPanic)
	code := m.Run()
	refs.DoLeakCheck()
	os.Exit(code)
}

func TestScenarios(t *testing.T) {
	for _, sc := range scenarios() {
		t.Run(sc.name, func(t *testing.T) {
			if err := sc.run(); err != nil {
				t.Errorf("%s: %v", sc.name, err)
			}
		})
	}
}

func TestScenariosCommand(t *testing.T) {
	s := &Scenarios{}
	f := flag.NewFlagSet("scenarios", flag.ContinueOnError)
	s.SetFlags(f)
	if err := f.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := s.Execute(context.Background(), f); got != subcommands.ExitSuccess {
		t.Errorf("Execute() = %v, want %v", got, subcommands.ExitSuccess)
	}
}

func TestRunStress(t *testing.T) {
	const goroutines, iterations = 4, 500
	res, err := runStress(context.Background(), goroutines, iterations, time.Second)
	if err != nil {
		t.Fatalf("runStress: %v", err)
	}
	if res.cycles != goroutines*iterations || res.promotions != goroutines*iterations {
		t.Errorf("runStress = %+v, want %d cycles and promotions", res, goroutines*iterations)
	}
}

func TestRunStressCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runStress(ctx, 2, 10, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("runStress with cancelled context = %v, want %v", err, context.Canceled)
	}
}

func TestStressCommand(t *testing.T) {
	s := &Stress{}
	f := flag.NewFlagSet("stress", flag.ContinueOnError)
	s.SetFlags(f)
	if err := f.Parse([]string{"-goroutines=2", "-iterations=100"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	conf := &config.Config{LogFormat: "text", LogRate: time.Second}
	if got := s.Execute(context.Background(), f, conf); got != subcommands.ExitSuccess {
		t.Errorf("Execute() = %v, want %v", got, subcommands.ExitSuccess)
	}
}
