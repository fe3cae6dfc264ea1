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

package config

import (
	"flag"
	"fmt"
	"reflect"
	"time"

	"gvisor.dev/sharedref/pkg/refs"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML (.toml) or YAML (.yaml, .yml) file with default settings. Flags set on the command line take precedence.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default), json, json-k8s, or logrus.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.Var(leakModePtr(refs.NoLeakChecking), "ref-leak-mode", "sets reference leak check mode: disabled (default), log-names, log-traces, panic.")
	flagSet.Duration("log-rate", time.Second, "minimum interval between progress messages of long running commands.")
}

func leakModePtr(v refs.LeakMode) *refs.LeakMode {
	return &v
}

// flagValue returns the typed value held by fl.
func flagValue(fl *flag.Flag) any {
	return fl.Value.(flag.Getter).Get()
}

// NewFromFlags creates a new Config with values coming from command line
// flags, the file named by --config, and defaults, in that order of
// precedence.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	flagSet.VisitAll(func(fl *flag.Flag) {
		conf.setFromFlag(fl)
	})

	if conf.ConfigFile != "" {
		if err := conf.loadFile(conf.ConfigFile); err != nil {
			return nil, err
		}
		// Flags given explicitly win over the file.
		flagSet.Visit(func(fl *flag.Flag) {
			conf.setFromFlag(fl)
		})
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setFromFlag copies the value of fl to the field tagged with its name, if
// any.
func (c *Config) setFromFlag(fl *flag.Flag) {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		if name, ok := st.Field(i).Tag.Lookup("flag"); ok && name == fl.Name {
			obj.Field(i).Set(reflect.ValueOf(flagValue(fl)))
			return
		}
	}
}

// ToFlags returns a slice of flags that correspond to the given Config.
// Settings equal to their default are omitted.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		val := getVal(obj.Field(i))

		flag := flagSet.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == flag.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", flag.Name, val))
	}
	return rv
}
