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

// Package metric provides primitives for collecting metrics.
//
// Metrics are registered once, usually from package-level variable
// initializers, and are read back as a Snapshot or in the Prometheus text
// exposition format.
package metric

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"gvisor.dev/sharedref/pkg/atomicbitops"
	"gvisor.dev/sharedref/pkg/sync"
)

var (
	// ErrNameInUse indicates that another metric is already defined for
	// the given name.
	ErrNameInUse = errors.New("metric name already in use")

	// ErrInvalidName indicates that the metric name cannot be exported.
	ErrInvalidName = errors.New("metric name is not a valid Prometheus metric name")
)

// validName matches names accepted by the Prometheus exposition format.
var validName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// Uint64Metric encapsulates a uint64 that represents some kind of metric to be
// monitored.
type Uint64Metric struct {
	metadata Metadata
	value    atomicbitops.Uint64
}

// Metadata describes a registered metric.
type Metadata struct {
	// Name is the exported metric name.
	Name string

	// Description is a human-readable explanation of the metric.
	Description string

	// Cumulative is true for counters that only ever increase; false for
	// gauges.
	Cumulative bool
}

// Value is the observation of one metric at snapshot time.
type Value struct {
	Metadata
	Value uint64
}

type customUint64Metric struct {
	metadata Metadata
	value    func() uint64
}

// metricSet holds registered metrics.
type metricSet struct {
	mu     sync.Mutex
	uint64 map[string]*Uint64Metric
	custom map[string]customUint64Metric
}

func makeMetricSet() *metricSet {
	return &metricSet{
		uint64: make(map[string]*Uint64Metric),
		custom: make(map[string]customUint64Metric),
	}
}

// allMetrics are the registered metrics.
var allMetrics = makeMetricSet()

func (s *metricSet) checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := s.uint64[name]; ok {
		return fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	if _, ok := s.custom[name]; ok {
		return fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	return nil
}

// NewUint64Metric creates and registers a new metric with the given name.
func NewUint64Metric(name string, cumulative bool, description string) (*Uint64Metric, error) {
	allMetrics.mu.Lock()
	defer allMetrics.mu.Unlock()
	if err := allMetrics.checkName(name); err != nil {
		return nil, err
	}
	m := &Uint64Metric{
		metadata: Metadata{
			Name:        name,
			Description: description,
			Cumulative:  cumulative,
		},
	}
	allMetrics.uint64[name] = m
	return m, nil
}

// MustCreateNewUint64Metric calls NewUint64Metric and panics if it returns an
// error.
func MustCreateNewUint64Metric(name string, cumulative bool, description string) *Uint64Metric {
	m, err := NewUint64Metric(name, cumulative, description)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %v", name, err))
	}
	return m
}

// RegisterCustomUint64Metric registers a metric whose value is computed by
// value at snapshot time. value must be safe to call concurrently.
func RegisterCustomUint64Metric(name string, cumulative bool, description string, value func() uint64) error {
	allMetrics.mu.Lock()
	defer allMetrics.mu.Unlock()
	if err := allMetrics.checkName(name); err != nil {
		return err
	}
	allMetrics.custom[name] = customUint64Metric{
		metadata: Metadata{
			Name:        name,
			Description: description,
			Cumulative:  cumulative,
		},
		value: value,
	}
	return nil
}

// MustRegisterCustomUint64Metric calls RegisterCustomUint64Metric and panics
// if it returns an error.
func MustRegisterCustomUint64Metric(name string, cumulative bool, description string, value func() uint64) {
	if err := RegisterCustomUint64Metric(name, cumulative, description, value); err != nil {
		panic(fmt.Sprintf("Unable to register metric %q: %v", name, err))
	}
}

// Value returns the current value of the metric.
func (m *Uint64Metric) Value() uint64 {
	return m.value.Load()
}

// Increment increments the metric by 1.
func (m *Uint64Metric) Increment() {
	m.value.Add(1)
}

// IncrementBy increments the metric by v.
func (m *Uint64Metric) IncrementBy(v uint64) {
	m.value.Add(v)
}

// Name returns the registered name of the metric.
func (m *Uint64Metric) Name() string {
	return m.metadata.Name
}

// Snapshot returns the current value of every registered metric, sorted by
// name.
func Snapshot() []Value {
	allMetrics.mu.Lock()
	defer allMetrics.mu.Unlock()
	vals := make([]Value, 0, len(allMetrics.uint64)+len(allMetrics.custom))
	for _, m := range allMetrics.uint64 {
		vals = append(vals, Value{Metadata: m.metadata, Value: m.Value()})
	}
	for _, m := range allMetrics.custom {
		vals = append(vals, Value{Metadata: m.metadata, Value: m.value()})
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].Name < vals[j].Name })
	return vals
}
