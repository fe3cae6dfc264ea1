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
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"gvisor.dev/sharedref/pkg/atomicbitops"
	"gvisor.dev/sharedref/pkg/log"
	"gvisor.dev/sharedref/pkg/metric"
	"gvisor.dev/sharedref/pkg/refs"
	"gvisor.dev/sharedref/pkg/sharedref"
	"gvisor.dev/sharedref/refcheck/cmd/util"
	"gvisor.dev/sharedref/refcheck/config"
)

// Stress implements subcommands.Command for the "stress" command.
type Stress struct {
	goroutines     int
	iterations     int
	metrics        bool
	exporterPrefix string
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string {
	return "stress"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string {
	return "clone, lock and release one value from many goroutines"
}

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string {
	return `stress [-goroutines N] [-iterations N] [-metrics] - hammers one shared value concurrently and checks it is released exactly once.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.goroutines, "goroutines", 8, "number of concurrent goroutines.")
	f.IntVar(&s.iterations, "iterations", 100000, "clone/lock/release cycles per goroutine.")
	f.BoolVar(&s.metrics, "metrics", false, "print library metrics in Prometheus format when done.")
	f.StringVar(&s.exporterPrefix, "exporter-prefix", "", "prefix for all metric names, following Prometheus exporter convention.")
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 || s.goroutines <= 0 || s.iterations < 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	res, err := runStress(ctx, s.goroutines, s.iterations, conf.LogRate)
	if err != nil {
		util.Errorf("stress: %v", err)
		return subcommands.ExitFailure
	}
	util.Infof("%d goroutines completed %d cycles in %v, %d promotions", s.goroutines, res.cycles, res.elapsed, res.promotions)

	if n := refs.DoRepeatedLeakCheck(); n > 0 {
		util.Errorf("stress: %d control blocks leaked", n)
		return subcommands.ExitFailure
	}
	if s.metrics {
		written, err := metric.WritePrometheus(os.Stdout, metric.ExportOptions{
			ExporterPrefix: s.exporterPrefix,
			CommentHeader:  fmt.Sprintf("refcheck stress: %d goroutines x %d iterations", s.goroutines, s.iterations),
		})
		if err != nil {
			util.Fatalf("Cannot write metrics to stdout: %v", err)
		}
		log.Infof("Wrote %d bytes of Prometheus metric data to stdout", written)
	}
	return subcommands.ExitSuccess
}

// payload is the value shared by the stress goroutines.
type payload struct {
	destroyed atomicbitops.Int64
}

func (p *payload) Destroy() {
	p.destroyed.Add(1)
}

type stressResult struct {
	cycles     int64
	promotions int64
	elapsed    time.Duration
}

// runStress shares one payload between n goroutines that each clone it,
// observe it weakly, promote the observer and release everything iters
// times. Each goroutine owns one strong handle that it drops when done, so
// the payload is released by whichever goroutine finishes last.
func runStress(ctx context.Context, n, iters int, logRate time.Duration) (stressResult, error) {
	var (
		res        stressResult
		cycles     atomicbitops.Int64
		promotions atomicbitops.Int64
	)
	progress := log.BurstRateLimitedLogger(log.Log(), logRate, 1)
	start := time.Now()

	p := &payload{}
	owner := sharedref.New(p)
	handles := make([]*sharedref.Ref[*payload], n)
	for i := range handles {
		handles[i] = owner.Clone()
	}
	observer := sharedref.NewWeak(owner)
	defer observer.Reset()
	owner.Reset()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		mine := handles[i]
		g.Go(func() error {
			defer mine.Reset()
			for j := 0; j < iters; j++ {
				if j%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				c := mine.Clone()
				w := sharedref.NewWeak(c)
				l := w.Lock()
				if l.Empty() {
					c.Reset()
					w.Reset()
					return fmt.Errorf("lock failed while %d strong handles were alive", mine.UseCount())
				}
				promotions.Add(1)
				if got := p.destroyed.Load(); got != 0 {
					l.Reset()
					c.Reset()
					w.Reset()
					return fmt.Errorf("observed payload destroyed %d times while owned", got)
				}
				l.Reset()
				w.Reset()
				c.Reset()
				if v := cycles.Add(1); v%100000 == 0 {
					progress.Infof("stress: %d cycles done", v)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	res.cycles = cycles.Load()
	res.promotions = promotions.Load()
	res.elapsed = time.Since(start)
	if !observer.Expired() {
		return res, fmt.Errorf("payload still alive after every owner was released: use count %d", observer.UseCount())
	}
	if got := p.destroyed.Load(); got != 1 {
		return res, fmt.Errorf("payload destroyed %d times, want 1", got)
	}
	return res, nil
}
