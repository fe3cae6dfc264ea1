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

// Package config provides basic infrastructure to set configuration settings
// for refcheck. Settings come from command line flags and, optionally, from
// a TOML or YAML file named by --config.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gvisor.dev/sharedref/pkg/log"
	"gvisor.dev/sharedref/pkg/refs"
)

// Config holds configuration that is not part of a single command.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name, plus toml and yaml keys if the
//     setting may come from a file.
//  3. Register the flag in flags.go.
type Config struct {
	// ConfigFile is the path of a TOML (.toml) or YAML (.yaml, .yml) file
	// with default settings. Flags set on the command line take precedence.
	ConfigFile string `flag:"config" toml:"-" yaml:"-"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log" toml:"log" yaml:"log"`

	// LogFormat is the log format: text, json, json-k8s or logrus.
	LogFormat string `flag:"log-format" toml:"log-format" yaml:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug" yaml:"debug"`

	// ReferenceLeak sets reference leak check mode.
	ReferenceLeak refs.LeakMode `flag:"ref-leak-mode" toml:"ref-leak-mode" yaml:"ref-leak-mode"`

	// LogRate is the minimum interval between progress messages of long
	// running commands.
	LogRate time.Duration `flag:"log-rate" toml:"log-rate" yaml:"log-rate"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json", "json-k8s", "logrus":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json', 'json-k8s' or 'logrus'", c.LogFormat)
	}
	if c.LogRate < 0 {
		return fmt.Errorf("log-rate must be positive, got %v", c.LogRate)
	}
	return nil
}

// loadFile overwrites the settings present in the file at path. Settings
// absent from the file are left untouched.
func (c *Config) loadFile(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("decoding %q: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown keys in %q: %v", path, undecoded)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && err != io.EOF {
			return fmt.Errorf("decoding %q: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q for %q, want .toml, .yaml or .yml", ext, path)
	}
	return nil
}

// Apply installs the configured leak mode, log level and log target. Logs
// are written to w in the configured format.
func (c *Config) Apply(w io.Writer) error {
	emitter, err := NewEmitter(c.LogFormat, w)
	if err != nil {
		return err
	}
	refs.SetLeakMode(c.ReferenceLeak)
	log.SetTarget(emitter)
	if c.Debug {
		log.SetLevel(log.Debug)
	} else {
		log.SetLevel(log.Info)
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.ToFlags() {
		log.Infof("\t%s", f)
	}
	log.Infof("\tref-leak-mode: %s", c.ReferenceLeak)
}

// NewEmitter returns an emitter writing to w in the named format.
func NewEmitter(format string, w io.Writer) (log.Emitter, error) {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: w}}, nil
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: w}}, nil
	case "json-k8s":
		return log.K8sJSONEmitter{Writer: &log.Writer{Next: w}}, nil
	case "logrus":
		return log.NewLogrusEmitter(w), nil
	}
	return nil, fmt.Errorf("invalid log format %q, must be 'text', 'json', 'json-k8s' or 'logrus'", format)
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return fmt.Sprint(field.Bool())
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
