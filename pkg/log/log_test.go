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

package log

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := &Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	want := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

type recordingEmitter struct {
	levels []Level
	msgs   []string
}

func (r *recordingEmitter) Emit(_ int, level Level, _ time.Time, format string, v ...any) {
	r.levels = append(r.levels, level)
	r.msgs = append(r.msgs, fmt.Sprintf(format, v...))
}

func TestBasicLoggerLevels(t *testing.T) {
	rec := &recordingEmitter{}
	l := &BasicLogger{Level: Info, Emitter: rec}
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Warningf("shown %d", 3)
	l.SetLevel(Debug)
	l.Debugf("shown %d", 4)

	if diff := cmp.Diff([]string{"shown 2", "shown 3", "shown 4"}, rec.msgs); diff != "" {
		t.Errorf("unexpected messages (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Level{Info, Warning, Debug}, rec.levels); diff != "" {
		t.Errorf("unexpected levels (-want +got):\n%s", diff)
	}
}

func TestGoogleEmitterFormat(t *testing.T) {
	var buf bytes.Buffer
	e := GoogleEmitter{&Writer{Next: &buf}}
	ts := time.Date(2026, time.March, 4, 5, 6, 7, 8000, time.UTC)
	e.Emit(0, Warning, ts, "refs %d", 3)

	got := buf.String()
	if !strings.HasPrefix(got, "W0304 05:06:07.000008 ") {
		t.Errorf("header = %q, want prefix %q", got, "W0304 05:06:07.000008 ")
	}
	if !strings.Contains(got, "log_test.go:") {
		t.Errorf("line %q does not name the calling file", got)
	}
	if !strings.HasSuffix(got, "] refs 3\n") {
		t.Errorf("line %q does not end with the message", got)
	}

	buf.Reset()
	e.Emit(0, Debug, ts, "100%% released")
	if got := buf.String(); !strings.HasPrefix(got, "D0304") || !strings.HasSuffix(got, "] 100% released\n") {
		t.Errorf("debug line = %q, want level D and message %q", got, "100% released")
	}
}

func TestCallerUnknown(t *testing.T) {
	if got := caller(1 << 20); got != "???:0" {
		t.Errorf("caller beyond the stack = %q, want %q", got, "???:0")
	}
	if got := caller(-1); !strings.HasPrefix(got, "log_test.go:") {
		t.Errorf("caller(-1) = %q, want this test's file", got)
	}
}

func TestMultiEmitter(t *testing.T) {
	a, b := &recordingEmitter{}, &recordingEmitter{}
	m := MultiEmitter{a, b}
	m.Emit(0, Info, time.Now(), "x=%d", 1)
	for i, r := range []*recordingEmitter{a, b} {
		if diff := cmp.Diff([]string{"x=1"}, r.msgs); diff != "" {
			t.Errorf("emitter %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestLogrusEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Debug, Emitter: NewLogrusEmitter(&buf)}
	l.Warningf("leaked %d blocks", 2)
	l.Debugf("released block")

	out := buf.String()
	for _, want := range []string{"level=warning", `msg="leaked 2 blocks"`, "level=debug", `msg="released block"`, `caller="log_test.go:`} {
		if !strings.Contains(out, want) {
			t.Errorf("logrus output %q does not contain %q", out, want)
		}
	}
}
