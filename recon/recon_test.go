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

package recon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/doctorsyn/analyze"
	"github.com/ajroetker/doctorsyn/fit"
	"github.com/ajroetker/doctorsyn/pole"
	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/target"
)

func stages(t *testing.T, fn *target.Function, lo, hi float64) (*reduce.Domain, *pole.Polynomial, *pole.Residual) {
	t.Helper()
	a, err := analyze.Analyze(fn, target.Closed(lo, hi))
	require.NoError(t, err)
	d, err := reduce.Reduce(a, reduce.Options{})
	require.NoError(t, err)
	p, g, err := pole.Eliminate(fn, d, pole.Options{})
	require.NoError(t, err)
	return d, p, g
}

func TestRuleQuadrantSign(t *testing.T) {
	d, p, _ := stages(t, target.Sin(), -10, 10)
	assert.Equal(t, -0.5, Rule(d, reduce.Side{K: 1}, 0.5))
	assert.Equal(t, 0.5, Rule(d, reduce.Side{K: 2}, 0.5))
	assert.Equal(t, -0.5, Rule(d, reduce.Side{K: -1}, 0.5))
	assert.Equal(t, 0.25, Reconstruct(d, p, 0.1, reduce.Side{}, 0.25))
}

func TestRuleExponent(t *testing.T) {
	d, _, _ := stages(t, target.Exp(), -10, 10)
	assert.Equal(t, 12.0, Rule(d, reduce.Side{K: 3}, 1.5))
	assert.Equal(t, 0.375, Rule(d, reduce.Side{K: -2}, 1.5))

	d, p, _ := stages(t, target.Ln(), 0.5, 8)
	assert.InDelta(t, 2*math.Ln2+0.1, Rule(d, reduce.Side{K: 2}, 0.1), 1e-15)
	assert.Equal(t, 0.1, Rule(d, reduce.Side{}, 0.1))
	assert.Equal(t, 0.0, Reconstruct(d, p, 0, reduce.Side{}, 1))
}

func TestRuleSignFlip(t *testing.T) {
	d, _, _ := stages(t, target.Qnorm(), 0.1, 0.9)
	assert.Equal(t, -0.5, Rule(d, reduce.Side{D: -0.3}, 0.5))
	assert.Equal(t, 0.5, Rule(d, reduce.Side{D: 0.3}, 0.5))

	d, _, _ = stages(t, target.Pnorm(), -3, 3)
	assert.InDelta(t, 0.2, Rule(d, reduce.Side{D: -1}, 0.3), 1e-16)
	assert.InDelta(t, 0.8, Rule(d, reduce.Side{D: 1}, 0.3), 1e-16)

	d, _, _ = stages(t, target.Dnorm(), -3, 3)
	assert.Equal(t, 0.3, Rule(d, reduce.Side{D: -1}, 0.3))
}

func roundTrip(t *testing.T, fn *target.Function, lo, hi, tol float64, mode fit.Mode) {
	t.Helper()
	d, p, g := stages(t, fn, lo, hi)
	pr := &fit.Problem{
		Name:     fn.Name,
		Lo:       d.Lo,
		Hi:       d.Hi,
		Parity:   g.Parity,
		Residual: g.Eval,
		Target:   func(r float64) float64 { return fn.Eval(d.Canonical(r)) },
		Finish:   Canonical(d, p),
		Exclude:  p.Guarded,
	}
	poly, err := fit.Fit(pr, fit.Options{Tolerance: tol, Mode: mode, MaxDegree: 24})
	require.NoError(t, err)

	const n = 2000
	for i := 0; i <= n; i++ {
		x := lo + (hi-lo)*float64(i)/n
		got := Evaluate(d, p, poly, x)
		want := fn.Eval(x)
		if mode == fit.Relative {
			assert.InDelta(t, 0, (got-want)/want, 100*tol, "x=%g", x)
		} else {
			assert.InDelta(t, want, got, 100*tol, "x=%g", x)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Run("sin", func(t *testing.T) { roundTrip(t, target.Sin(), -20, 20, 1e-10, fit.Absolute) })
	t.Run("exp", func(t *testing.T) { roundTrip(t, target.Exp(), -30, 30, 1e-11, fit.Relative) })
	t.Run("ln", func(t *testing.T) { roundTrip(t, target.Ln(), 0.01, 100, 1e-10, fit.Absolute) })
	t.Run("dnorm", func(t *testing.T) { roundTrip(t, target.Dnorm(), -2, 2, 1e-9, fit.Absolute) })
}
