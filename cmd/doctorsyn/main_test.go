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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/doctorsyn"
	"github.com/ajroetker/doctorsyn/target"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

var sinFlags = []string{"--function=sin", "--lo=-1", "--hi=1", "--tolerance=1e-7", "--max_degree=12", "--log_level=none"}

func TestList(t *testing.T) {
	out, err := run(t, "list", "--log_level=none")
	require.NoError(t, err)
	for _, name := range target.Names() {
		require.Contains(t, out, name)
	}

	out, err = run(t, "list", "--format=json", "--log_level=none")
	require.NoError(t, err)
	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, len(target.Names()))
}

func TestDerive(t *testing.T) {
	out, err := run(t, append([]string{"derive", "--format=json", "--check=1000"}, sinFlags...)...)
	require.NoError(t, err)
	var rep struct {
		doctorsyn.Report
		Check *doctorsyn.Check `json:"check"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, "sin", rep.Function)
	require.LessOrEqual(t, rep.MaxAbsError, 1e-7)
	require.NotNil(t, rep.Check)
	require.Zero(t, rep.Check.Mismatches)
	require.Equal(t, 1001, rep.Check.Points)

	out, err = run(t, append([]string{"derive"}, sinFlags...)...)
	require.NoError(t, err)
	require.Contains(t, out, "function   sin on [-1, 1]")
	require.Contains(t, out, "program")
}

func TestEval(t *testing.T) {
	out, err := run(t, append([]string{"eval", "--format=json"}, append(sinFlags, "0", "0.5")...)...)
	require.NoError(t, err)
	var points []evalPoint
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	require.Len(t, points, 2)
	require.Equal(t, 0.0, points[0].Value)
	require.InDelta(t, points[1].Want, points[1].Value, 1e-7)

	_, err = run(t, append([]string{"eval"}, append(sinFlags, "half")...)...)
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	out, err := run(t, append([]string{"render", "--package=trig"}, sinFlags...)...)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "// Code generated by doctorsyn. DO NOT EDIT."))
	require.Contains(t, out, "package trig")
	require.Contains(t, out, "func Sin(x float64) float64")
	require.Contains(t, out, "func SinSlice(")

	path := filepath.Join(t.TempDir(), "sin.go")
	_, err = run(t, append([]string{"render", "--name=FastSin", "--no_slice", "--output=" + path}, sinFlags...)...)
	require.NoError(t, err)
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(src), "func FastSin(x float64) float64")
	require.NotContains(t, string(src), "FastSinSlice")
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
log_level: none
tolerance: 1.0e-7
max_degree: 16
jobs:
  - function: sin
    lo: -1
    hi: 1
  - function: exp
    lo: -2
    hi: 2
    mode: relative
`), 0o644))

	gen := filepath.Join(dir, "gen")
	out, err := run(t, "batch", "--config="+cfg, "--format=json", "--render_dir="+gen)
	require.NoError(t, err)
	var reports []doctorsyn.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	require.Equal(t, "exp", reports[1].Function)
	for _, name := range []string{"sin.go", "exp.go"} {
		_, err := os.Stat(filepath.Join(gen, name))
		require.NoError(t, err)
	}

	_, err = run(t, "batch")
	require.ErrorContains(t, err, "--config")
}

func TestErrors(t *testing.T) {
	_, err := run(t, "derive", "--function=nope", "--lo=0", "--hi=1", "--log_level=none")
	require.Error(t, err)
	_, err = run(t, "derive", "--function=qnorm", "--lo=0", "--hi=1", "--log_level=none")
	require.Error(t, err)
	_, err = run(t, "list", "--format=yaml")
	require.ErrorContains(t, err, "format")
}
