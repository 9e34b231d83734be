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

package doctorsyn

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/doctorsyn/fit"
	"github.com/ajroetker/doctorsyn/internal/logging"
	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

func TestDeriveSin(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "debug")
	require.NoError(t, err)

	ev, err := Derive(target.Sin(), target.Closed(-10, 10), Options{Tolerance: 1e-7, MaxDegree: 12, Logger: logger})
	require.NoError(t, err)
	defer ev.Close()

	assert.Equal(t, reduce.RuleQuadrant, ev.Domain.Rule)
	assert.LessOrEqual(t, ev.Poly.Degree(), 12)
	assert.LessOrEqual(t, ev.Poly.MaxAbsError, 1e-7)
	assert.Equal(t, target.SymmetryOdd, ev.Poly.Parity)

	assert.Equal(t, 1.0, ev.Eval(math.Pi/2))
	assert.Equal(t, 0.0, ev.Eval(0))
	assert.Equal(t, -1.0, ev.Eval(-math.Pi/2))

	c := ev.Check(Grid(-10, 10, 4000))
	assert.Equal(t, 4001, c.Points)
	assert.Zero(t, c.Mismatches)
	assert.LessOrEqual(t, c.MaxAbsError, 2e-7)

	for _, stage := range []string{"analyze", "reduce", "pole", "fit", "emit"} {
		assert.Contains(t, buf.String(), "stage="+stage)
	}

	r := ev.Report()
	assert.Equal(t, "sin", r.Function)
	assert.Equal(t, "quadrant-select", r.Rule)
	assert.Equal(t, ev.Poly.Coeffs, r.Coeffs)
	assert.Positive(t, r.Nodes)
}

func TestDeriveDeterministic(t *testing.T) {
	opts := Options{Tolerance: 1e-11, Mode: fit.Relative, MaxDegree: 24, Refine: true}
	a, err := Derive(target.Exp(), target.Closed(-30, 30), opts)
	require.NoError(t, err)
	b, err := Derive(target.Exp(), target.Closed(-30, 30), opts)
	require.NoError(t, err)
	require.Equal(t, len(a.Poly.Coeffs), len(b.Poly.Coeffs))
	for i := range a.Poly.Coeffs {
		assert.Equal(t, math.Float64bits(a.Poly.Coeffs[i]), math.Float64bits(b.Poly.Coeffs[i]), "coefficient %d", i)
	}
	assert.Equal(t, 1.0, a.Eval(0))

	c := a.Check(Grid(-30, 30, 3000))
	assert.Zero(t, c.Mismatches)
	assert.LessOrEqual(t, c.MaxRelError, 1e-10)
}

func TestDeriveTan(t *testing.T) {
	ev, err := Derive(target.Tan(), target.Closed(-1.4, 1.4), Options{Tolerance: 1e-9, Mode: fit.Relative, MaxDegree: 24})
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Pole.Poles.Degree())
	assert.Equal(t, 0.0, ev.Pole.Poles.Eval(math.Pi/2))
	assert.Equal(t, 0.0, ev.Eval(0))

	c := ev.Check(Grid(-1.4, 1.4, 2000))
	assert.Zero(t, c.Mismatches)
	assert.LessOrEqual(t, c.MaxRelError, 1e-8)
}

func TestDeriveQnorm(t *testing.T) {
	t.Run("central", func(t *testing.T) {
		ev, err := Derive(target.Qnorm(), target.Closed(0.1, 0.9), Options{Tolerance: 1e-6, MaxDegree: 32})
		require.NoError(t, err)
		assert.Equal(t, reduce.RuleSignFlip, ev.Domain.Rule)
		assert.Equal(t, 0.0, ev.Eval(0.5))
		c := ev.Check(Grid(0.1, 0.9, 1000))
		assert.LessOrEqual(t, c.MaxAbsError, 2e-6)
		assert.InDelta(t, -ev.Eval(0.3), ev.Eval(0.7), 1e-12)
	})
	t.Run("tails", func(t *testing.T) {
		_, err := Derive(target.Qnorm(), target.Closed(0.01, 0.99), Options{Tolerance: 1e-6})
		assert.True(t, errors.Is(err, synerr.ErrNoBranchFreeReduction), "got %v", err)
	})
	t.Run("endpoints", func(t *testing.T) {
		_, err := Derive(target.Qnorm(), target.Closed(0, 1), Options{Tolerance: 1e-6})
		assert.True(t, errors.Is(err, synerr.ErrUnknownSingularity), "got %v", err)
	})
}

func TestDeriveErrors(t *testing.T) {
	_, err := Derive(nil, target.Closed(0, 1), Options{})
	assert.True(t, errors.Is(err, synerr.ErrInvalidInput))

	_, err = Derive(target.BlackBox("mystery", math.Sin), target.Closed(0, 1), Options{})
	assert.True(t, errors.Is(err, synerr.ErrUnknownSingularity))

	_, err = Derive(target.Sin(), target.Closed(-1, 1), Options{Anchors: []float64{2}})
	assert.True(t, errors.Is(err, synerr.ErrInvalidInput))

	_, err = Derive(target.Sin(), target.Closed(-1, 1), Options{Tolerance: 1e-15, MaxDegree: 3})
	var se *synerr.Error
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, synerr.KindToleranceUnreachable, se.Kind)
	assert.Equal(t, 3, se.Degree)
	assert.Greater(t, se.MaxError, 1e-15)
}

func TestDeriveAnchors(t *testing.T) {
	ev, err := Derive(target.Cos(), target.Closed(-3, 3), Options{Tolerance: 1e-9, MaxDegree: 20, Anchors: []float64{0}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Eval(0))
	assert.Equal(t, []float64{0}, ev.Poly.Anchors)

	ev, err = Derive(target.Cos(), target.Closed(-3, 3), Options{Tolerance: 1e-9, MaxDegree: 20, NoAnchors: true})
	require.NoError(t, err)
	assert.Empty(t, ev.Poly.Anchors)
}

func TestEvalSlice(t *testing.T) {
	ev, err := Derive(target.Dnorm(), target.Closed(-2, 2), Options{Tolerance: 1e-9, MaxDegree: 24, Lanes: 4, Workers: 3})
	require.NoError(t, err)
	defer ev.Close()
	assert.Equal(t, 4, ev.Lanes())

	for _, n := range []int{0, 7, parallelMin + 123} {
		xs := Grid(-2, 2, max(n-1, 0))[:n]
		out := make([]float64, n)
		ev.EvalSlice(xs, out)
		for i, x := range xs {
			if out[i] != ev.Eval(x) {
				t.Fatalf("n=%d: EvalSlice[%d] = %v, want %v", n, i, out[i], ev.Eval(x))
			}
		}
	}

	ev.Close()
	xs := Grid(-2, 2, parallelMin)
	out := make([]float64, len(xs))
	ev.EvalSlice(xs, out)
	assert.Equal(t, ev.Eval(xs[17]), out[17])
}

func TestDeriveAll(t *testing.T) {
	jobs := []Job{
		{Function: target.Sin(), ROI: target.Closed(-5, 5), Options: Options{Tolerance: 1e-7, MaxDegree: 12}},
		{Function: target.Exp(), ROI: target.Closed(-5, 5), Options: Options{Tolerance: 1e-9, Mode: fit.Relative, MaxDegree: 20}},
		{Function: target.Dnorm(), ROI: target.Closed(-2, 2), Options: Options{Tolerance: 1e-8, MaxDegree: 24}},
	}
	evs, err := DeriveAll(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	for i, ev := range evs {
		assert.Equal(t, jobs[i].Function.Name, ev.Function.Name)
	}

	bad := append(jobs[:1:1], Job{Function: target.BlackBox("mystery", math.Sin), ROI: target.Closed(0, 1)})
	_, err = DeriveAll(context.Background(), bad, 2)
	assert.True(t, errors.Is(err, synerr.ErrUnknownSingularity), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DeriveAll(ctx, jobs, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGrid(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Grid(0, 1, 2))
	assert.Equal(t, []float64{3}, Grid(3, 4, 0))
}

func BenchmarkEvalSlice(b *testing.B) {
	ev, err := Derive(target.Exp(), target.Closed(-10, 10), Options{Tolerance: 1e-12, Mode: fit.Relative, MaxDegree: 24})
	if err != nil {
		b.Fatal(err)
	}
	defer ev.Close()
	xs := Grid(-10, 10, 1<<16-1)
	out := make([]float64, len(xs))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ev.EvalSlice(xs, out)
	}
}
