// Copyright 2025 go-highway Authors
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

// Package config loads derivation settings from YAML files, DOCTORSYN_*
// environment variables and command-line flags, in increasing order of
// precedence.
//
// A job file looks like:
//
//	workers: 4
//	log_level: info
//	tolerance: 1e-10
//	jobs:
//	  - function: sin
//	    lo: -10
//	    hi: 10
//	    max_degree: 12
//	  - function: ln
//	    lo: 0.01
//	    hi: 100
//	    mode: relative
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajroetker/doctorsyn"
	"github.com/ajroetker/doctorsyn/fit"
	"github.com/ajroetker/doctorsyn/internal/logging"
	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/target"
)

// EnvPrefix prefixes every environment override, as in DOCTORSYN_TOLERANCE.
const EnvPrefix = "DOCTORSYN"

// Job is one derivation request. Zero fields inherit from the top level of
// the configuration.
type Job struct {
	Function    string    `mapstructure:"function" json:"function"`
	Lo          float64   `mapstructure:"lo" json:"lo"`
	Hi          float64   `mapstructure:"hi" json:"hi"`
	Tolerance   float64   `mapstructure:"tolerance" json:"tolerance"`
	Mode        string    `mapstructure:"mode" json:"mode"`
	MinDegree   int       `mapstructure:"min_degree" json:"min_degree"`
	MaxDegree   int       `mapstructure:"max_degree" json:"max_degree"`
	Refine      bool      `mapstructure:"refine" json:"refine"`
	Rule        string    `mapstructure:"rule" json:"rule"`
	PolePadding int       `mapstructure:"pole_padding" json:"pole_padding"`
	Anchors     []float64 `mapstructure:"anchors" json:"anchors,omitempty"`
	NoAnchors   bool      `mapstructure:"no_anchors" json:"no_anchors"`
}

// Config is the loaded configuration.
type Config struct {
	Workers  int    `mapstructure:"workers"`
	LogLevel string `mapstructure:"log_level"`
	Format   string `mapstructure:"format"`

	Job  `mapstructure:",squash"`
	Jobs []Job `mapstructure:"jobs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workers", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("format", "text")
	v.SetDefault("function", "")
	v.SetDefault("lo", 0.0)
	v.SetDefault("hi", 0.0)
	v.SetDefault("tolerance", doctorsyn.DefaultTolerance)
	v.SetDefault("mode", fit.Absolute.String())
	v.SetDefault("min_degree", 0)
	v.SetDefault("max_degree", doctorsyn.DefaultMaxDegree)
	v.SetDefault("refine", false)
	v.SetDefault("rule", reduce.RuleAuto.String())
	v.SetDefault("pole_padding", 0)
	v.SetDefault("anchors", []float64{})
	v.SetDefault("no_anchors", false)
}

// Load reads path when it is not empty, applies environment overrides and,
// when flags is not nil, the flags the caller set. Flag names match the
// configuration keys.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the global settings and every listed job. The top-level
// job is checked by Build, since commands like list do not need one.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if err := logging.Check(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: format must be text or json, got %q", c.Format)
	}
	for i, j := range c.Batch() {
		if err := j.Validate(); err != nil {
			return fmt.Errorf("config: jobs[%d]: %w", i, err)
		}
	}
	return nil
}

// Batch returns the listed jobs with zero fields filled from the top level.
func (c *Config) Batch() []Job {
	out := make([]Job, len(c.Jobs))
	for i, j := range c.Jobs {
		out[i] = j.inherit(c.Job)
	}
	return out
}

func (j Job) inherit(base Job) Job {
	if j.Tolerance == 0 {
		j.Tolerance = base.Tolerance
	}
	if j.Mode == "" {
		j.Mode = base.Mode
	}
	if j.MinDegree == 0 {
		j.MinDegree = base.MinDegree
	}
	if j.MaxDegree == 0 {
		j.MaxDegree = base.MaxDegree
	}
	if j.Rule == "" {
		j.Rule = base.Rule
	}
	if j.PolePadding == 0 {
		j.PolePadding = base.PolePadding
	}
	j.Refine = j.Refine || base.Refine
	j.NoAnchors = j.NoAnchors || base.NoAnchors
	return j
}

// Validate checks a job without deriving it.
func (j Job) Validate() error {
	_, _, err := j.parse()
	return err
}

func (j Job) parse() (*target.Function, doctorsyn.Options, error) {
	var opts doctorsyn.Options
	fn, err := target.Lookup(j.Function)
	if err != nil {
		return nil, opts, err
	}
	switch {
	case math.IsNaN(j.Lo) || math.IsNaN(j.Hi) || !(j.Lo < j.Hi):
		return nil, opts, fmt.Errorf("%s: region [%g, %g] is empty", j.Function, j.Lo, j.Hi)
	case !(j.Tolerance > 0):
		return nil, opts, fmt.Errorf("%s: tolerance must be positive, got %g", j.Function, j.Tolerance)
	case j.MaxDegree < 1 || j.MinDegree < 0 || j.MinDegree > j.MaxDegree:
		return nil, opts, fmt.Errorf("%s: degree bounds [%d, %d] are empty", j.Function, j.MinDegree, j.MaxDegree)
	case j.PolePadding < 0:
		return nil, opts, fmt.Errorf("%s: pole_padding must not be negative", j.Function)
	}
	mode, err := fit.ParseMode(j.Mode)
	if err != nil {
		return nil, opts, err
	}
	rule, err := reduce.ParseRule(j.Rule)
	if err != nil {
		return nil, opts, err
	}
	opts = doctorsyn.Options{
		Tolerance:   j.Tolerance,
		Mode:        mode,
		MinDegree:   j.MinDegree,
		MaxDegree:   j.MaxDegree,
		Refine:      j.Refine,
		Rule:        rule,
		PolePadding: j.PolePadding,
		Anchors:     j.Anchors,
		NoAnchors:   j.NoAnchors,
	}
	return fn, opts, nil
}

// Build turns the job into a derivation.
func (j Job) Build() (doctorsyn.Job, error) {
	fn, opts, err := j.parse()
	if err != nil {
		return doctorsyn.Job{}, err
	}
	return doctorsyn.Job{Function: fn, ROI: target.Closed(j.Lo, j.Hi), Options: opts}, nil
}
