// Copyright 2023 The gVisor Authors.
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

package metric

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ExportOptions configures WritePrometheus.
type ExportOptions struct {
	// ExporterPrefix is prepended to every metric name.
	ExporterPrefix string

	// CommentHeader is an optional comment written before the metrics.
	CommentHeader string
}

// writeHeaderTo writes the metric comment header to the given writer.
func writeHeaderTo(w io.Writer, m Metadata, options ExportOptions) error {
	if m.Description != "" {
		// Prometheus metric description escape rules: Only backslashes and line breaks need escaping.
		if _, err := fmt.Fprintf(w, "# HELP %s%s %s\n", options.ExporterPrefix, m.Name, strings.ReplaceAll(strings.ReplaceAll(m.Description, "\\", "\\\\"), "\n", "\\n")); err != nil {
			return err
		}
	}
	metricType := "gauge"
	if m.Cumulative {
		metricType = "counter"
	}
	_, err := fmt.Fprintf(w, "# TYPE %s%s %s\n", options.ExporterPrefix, m.Name, metricType)
	return err
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += n
	return n, err
}

// WritePrometheus writes a snapshot of all registered metrics to w in the
// Prometheus text exposition format, and returns the number of bytes
// written.
func WritePrometheus(w io.Writer, options ExportOptions) (int, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	if options.CommentHeader != "" {
		for _, line := range strings.Split(options.CommentHeader, "\n") {
			if _, err := fmt.Fprintf(bw, "# %s\n", line); err != nil {
				return cw.n, err
			}
		}
	}
	for _, v := range Snapshot() {
		if err := writeHeaderTo(bw, v.Metadata, options); err != nil {
			return cw.n, err
		}
		if _, err := fmt.Fprintf(bw, "%s%s %d\n", options.ExporterPrefix, v.Name, v.Value); err != nil {
			return cw.n, err
		}
	}
	err := bw.Flush()
	return cw.n, err
}
