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

package pole

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/doctorsyn/analyze"
	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

func eliminate(t *testing.T, fn *target.Function, lo, hi float64, ropts reduce.Options, opts Options) (*Polynomial, *Residual, error) {
	t.Helper()
	a, err := analyze.Analyze(fn, target.Closed(lo, hi))
	require.NoError(t, err)
	d, err := reduce.Reduce(a, ropts)
	require.NoError(t, err)
	return Eliminate(fn, d, opts)
}

func TestTanPole(t *testing.T) {
	p, g, err := eliminate(t, target.Tan(), -1.5, 1.5, reduce.Options{}, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, p.Poles.Degree())
	assert.Equal(t, 0.0, p.Poles.Eval(math.Pi/2))
	assert.Equal(t, 0.0, p.Poles.Eval(-math.Pi/2))
	assert.Equal(t, target.SymmetryEven, p.Poles.Parity())
	assert.Equal(t, target.SymmetryOdd, g.Parity)

	require.Len(t, p.Poles.Coeffs, 3)
	assert.Equal(t, 1.0, p.Poles.Coeffs[0])
	assert.Equal(t, 0.0, p.Poles.Coeffs[1])
	assert.InDelta(t, -math.Pi*math.Pi/4, p.Poles.Coeffs[2], 1e-15)

	for _, r := range []float64{0, 0.5, 1.2, math.Pi/2 - 1e-3, math.Pi / 2} {
		v := g.Eval(r)
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "r=%g", r)
	}
	assert.InDelta(t, -math.Pi, g.Eval(math.Pi/2), 1e-6)
	assert.InDelta(t, 0, g.Eval(0), 1e-300)

	x := new(big.Float).SetPrec(precision).SetFloat64(0.75)
	gp, _ := g.EvalPrecise(x).Float64()
	assert.InDelta(t, g.Eval(0.75), gp, 1e-14)

	assert.True(t, p.Guarded(math.Pi/2))
	assert.False(t, p.Guarded(1))
}

func TestTanPadding(t *testing.T) {
	p, _, err := eliminate(t, target.Tan(), -1, 1, reduce.Options{}, Options{Padding: 1})
	require.NoError(t, err)
	require.Equal(t, 4, p.Poles.Degree())
	assert.InDelta(t, 3*math.Pi/2, math.Abs(p.Poles.Roots[3]), 1e-14)
	assert.Equal(t, target.SymmetryEven, p.Poles.Parity())
}

func TestCotPoleAtZero(t *testing.T) {
	p, g, err := eliminate(t, target.Cot(), 0.1, 3, reduce.Options{}, Options{})
	require.NoError(t, err)
	require.Equal(t, []float64{0}, p.Poles.Roots)
	assert.Equal(t, target.SymmetryEven, g.Parity)
	assert.InDelta(t, 1, g.Eval(0), 1e-9)
}

func TestNoPoles(t *testing.T) {
	p, g, err := eliminate(t, target.Sin(), -math.Pi, math.Pi, reduce.Options{}, Options{})
	require.NoError(t, err)
	assert.True(t, p.Identity())
	assert.Equal(t, 1.0, p.Poles.Eval(0.3))
	assert.Equal(t, 0.25, p.Apply(0.3, 0.25))
	assert.Equal(t, math.Sin(0.3), g.Eval(0.3))
}

func TestLnZero(t *testing.T) {
	p, g, err := eliminate(t, target.Ln(), 0.5, 4, reduce.Options{}, Options{})
	require.NoError(t, err)
	assert.True(t, p.Poles.Degree() == 0)
	require.Equal(t, []float64{0}, p.Zeros.Roots)
	assert.Equal(t, target.SymmetryNone, g.Parity)
	assert.InDelta(t, 1, g.Eval(0), 1e-8)
	assert.InDelta(t, math.Log1p(0.25)/0.25, g.Eval(0.25), 1e-15)
	assert.Equal(t, 0.0, p.Apply(0, 1.0))
}

func TestClusteredPolesAreUnstable(t *testing.T) {
	var sing []target.Singularity
	for i := 0; i < 6; i++ {
		sing = append(sing, target.Singularity{At: 1 + 0.001*float64(i), Kind: target.Pole})
	}
	fn := &target.Function{
		Name: "cluster",
		Eval: func(x float64) float64 {
			p := 1.0
			for _, s := range sing {
				p *= x - s.At
			}
			return 1 / p
		},
		Domain:             target.Reals,
		Singularities:      sing,
		SingularitiesKnown: true,
	}
	_, _, err := eliminate(t, fn, 0, 2, reduce.Options{}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, synerr.ErrNumericInstability), "got %v", err)
}

func TestNegativePadding(t *testing.T) {
	_, _, err := eliminate(t, target.Tan(), -1, 1, reduce.Options{}, Options{Padding: -1})
	assert.True(t, errors.Is(err, synerr.ErrInvalidInput))
}

func TestFactorPairsByMagnitude(t *testing.T) {
	f := newFactor([]float64{3, -1, 2, 1})
	assert.Equal(t, []float64{-1, 1, 2, 3}, f.Roots)
	for _, r := range f.Roots {
		assert.Equal(t, 0.0, f.Eval(r))
	}
	v, _ := f.EvalExpanded(0.5)
	assert.InDelta(t, f.Eval(0.5), v, 1e-14)
}
