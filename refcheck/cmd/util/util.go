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

// Package util groups a bunch of common helper functions used by commands.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gvisor.dev/sharedref/pkg/log"
)

// ErrorLogger is where error messages should be written to, in addition to
// the debug log. It is nil when no log file was requested.
var ErrorLogger io.Writer

// Infof writes message to log and stdout.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
	// Custom writer adds format to the end of the message.
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

type jsonError struct {
	Msg   string    `json:"msg"`
	Level string    `json:"level"`
	Time  time.Time `json:"time"`
}

// Errorf logs error to the debug log and ErrorLogger.
func Errorf(format string, args ...any) {
	log.Warningf(format, args...)
	if ErrorLogger != nil {
		// Mimic the logrus JSON format so tools can parse the error file.
		e := jsonError{
			Msg:   fmt.Sprintf(format, args...),
			Level: "error",
			Time:  time.Now(),
		}
		if b, err := json.Marshal(&e); err == nil {
			_, _ = ErrorLogger.Write(append(b, '\n'))
		}
	}
}

// Fatalf logs the same message as Errorf, also writes it to stderr, and
// exits with status 128.
func Fatalf(format string, args ...any) {
	Errorf("FATAL ERROR: "+format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(128)
}
