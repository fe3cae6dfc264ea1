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

// Package cli is the main entrypoint for refcheck.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"

	"gvisor.dev/sharedref/pkg/log"
	"gvisor.dev/sharedref/pkg/refs"
	"gvisor.dev/sharedref/refcheck/cmd"
	"gvisor.dev/sharedref/refcheck/cmd/util"
	"gvisor.dev/sharedref/refcheck/config"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	var logFile io.Writer = os.Stderr
	if conf.LogFilename != "" {
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
		util.ErrorLogger = f
	}

	// Sets the reference leak check mode, log level and log target.
	if err := conf.Apply(logFile); err != nil {
		util.Fatalf("%v", err)
	}

	const delimString = `*************** refcheck ***************`
	log.Infof(delimString)
	log.Infof("%s, %s, %d CPUs, %s, PID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	// Check for leaks before os.Exit().
	refs.DoLeakCheck()
	if subcmdCode != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", subcmdCode)
	}
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// refcheck.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Scenarios), "")
	cb(new(cmd.Stress), "")
}
