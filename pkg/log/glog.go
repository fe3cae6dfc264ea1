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
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// glogTime is the month, day and microsecond clock of a glog header.
const glogTime = "0102 15:04:05.000000"

var pid = os.Getpid()

// caller returns the file:line of the frame depth levels above the function
// calling caller, or "???:0" if it is unknown.
func caller(depth int) string {
	_, file, line, ok := runtime.Caller(depth + 2)
	if !ok {
		return "???:0"
	}
	if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
		file = file[slash+1:]
	}
	return file + ":" + strconv.Itoa(line)
}

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog:
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// Emit emits the message, google-style.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	var l byte
	switch level {
	case Debug:
		l = 'D'
	case Info:
		l = 'I'
	default:
		l = 'W'
	}
	// The header is escaped, the caller's format follows unchanged.
	header := fmt.Sprintf("%c%s %7d %s] ", l, timestamp.Format(glogTime), pid, caller(depth))
	g.Emitter.Emit(1+depth, level, timestamp, strings.ReplaceAll(header, "%", "%%")+format+"\n", args...)
}
