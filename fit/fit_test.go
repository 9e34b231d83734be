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

package fit

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

func identityFinish(_, p float64) float64 { return p }

func sinProblem() *Problem {
	h := math.Pi / 2
	return &Problem{
		Name:     "sin",
		Lo:       -h,
		Hi:       h,
		Parity:   target.SymmetryOdd,
		Residual: math.Sin,
		Target:   math.Sin,
		Finish:   identityFinish,
	}
}

func expProblem() *Problem {
	h := math.Ln2 / 2
	return &Problem{
		Name:            "exp",
		Lo:              -h,
		Hi:              h,
		Residual:        math.Exp,
		ResidualPrecise: target.PreciseExp,
		Target:          math.Exp,
		Finish:          identityFinish,
	}
}

func TestFitSin(t *testing.T) {
	p, err := Fit(sinProblem(), Options{Tolerance: 1e-7, Mode: Absolute, MaxDegree: 12})
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Degree(), 12)
	assert.Equal(t, 1, p.Degree()%2)
	assert.LessOrEqual(t, p.MaxAbsError, 1e-7)
	assert.Equal(t, 0.0, p.Eval(0))
	for i := 1; i < len(p.Coeffs); i += 2 {
		assert.Equal(t, 0.0, p.Coeffs[i], "even power slot %d", i)
	}
	assert.InDelta(t, 1, p.Coeffs[len(p.Coeffs)-2], 1e-6)
	assert.Equal(t, -p.Eval(0.3), p.Eval(-0.3))
}

func TestFitDeterministic(t *testing.T) {
	opts := Options{Tolerance: 1e-12, Mode: Relative, MaxDegree: 16, Refine: true}
	a, err := Fit(expProblem(), opts)
	require.NoError(t, err)
	b, err := Fit(expProblem(), opts)
	require.NoError(t, err)
	assert.Equal(t, a.Coeffs, b.Coeffs)
	assert.Equal(t, a.MaxRelError, b.MaxRelError)
}

func TestFitExpRelative(t *testing.T) {
	p, err := Fit(expProblem(), Options{Tolerance: 1e-10, Mode: Relative, MaxDegree: 12})
	require.NoError(t, err)
	assert.LessOrEqual(t, p.MaxRelError, 1e-10)
	assert.Equal(t, target.SymmetryNone, p.Parity)
	assert.InDelta(t, 1, p.Coeffs[len(p.Coeffs)-1], 1e-9)
}

func TestBestErrorMonotoneInCeiling(t *testing.T) {
	prev := math.Inf(1)
	for ceiling := 1; ceiling <= 11; ceiling += 2 {
		_, err := Fit(sinProblem(), Options{Tolerance: 1e-30, MaxDegree: ceiling})
		require.Error(t, err)
		var se *synerr.Error
		require.True(t, errors.As(err, &se))
		assert.Equal(t, synerr.KindToleranceUnreachable, se.Kind)
		assert.LessOrEqual(t, se.Degree, ceiling)
		assert.LessOrEqual(t, se.MaxError, prev, "ceiling %d", ceiling)
		prev = se.MaxError
	}
}

func TestRefineNeverWorse(t *testing.T) {
	bestOf := func(refine bool) float64 {
		_, err := Fit(expProblem(), Options{Tolerance: 1e-30, Mode: Relative, MinDegree: 5, MaxDegree: 5, Refine: refine})
		var se *synerr.Error
		require.True(t, errors.As(err, &se))
		return se.MaxError
	}
	plain, refined := bestOf(false), bestOf(true)
	assert.LessOrEqual(t, refined, plain)
}

func TestAnchorSnapping(t *testing.T) {
	pr := sinProblem()
	h := math.Pi / 2
	pr.Anchors = []Anchor{
		{X: 0, R: 0, Want: 0, Finish: func(p float64) float64 { return p }},
		{X: h, R: h, Want: 1, Finish: func(p float64) float64 { return p }},
	}
	p, err := Fit(pr, Options{Tolerance: 1e-7, MaxDegree: 12})
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Eval(h))
	assert.Equal(t, 0.0, p.Eval(0))
	assert.Equal(t, []float64{0, h}, p.Anchors)
}

func TestAnchorUnreachable(t *testing.T) {
	pr := sinProblem()
	pr.Anchors = []Anchor{{R: 0, Want: 1, Finish: func(p float64) float64 { return p }}}
	_, err := Fit(pr, Options{Tolerance: 1e-7, MaxDegree: 12})
	require.Error(t, err)
	assert.True(t, errors.Is(err, synerr.ErrNumericInstability), "got %v", err)
}

func TestRoundoffInstability(t *testing.T) {
	h := math.Pi / 2
	pr := &Problem{
		Name:     "cos",
		Lo:       -h,
		Hi:       h,
		Parity:   target.SymmetryEven,
		Residual: math.Cos,
		Target:   math.Cos,
		Finish:   identityFinish,
	}
	_, err := Fit(pr, Options{Tolerance: 1e-12, Mode: Relative, MaxDegree: 20})
	require.Error(t, err)
	assert.True(t, errors.Is(err, synerr.ErrNumericInstability), "got %v", err)
}

func TestFitValidation(t *testing.T) {
	tests := []struct {
		name string
		pr   *Problem
		opts Options
	}{
		{"zero tolerance", sinProblem(), Options{MaxDegree: 5}},
		{"empty degrees", sinProblem(), Options{Tolerance: 1, MinDegree: 6, MaxDegree: 5}},
		{"asymmetric parity", func() *Problem { p := sinProblem(); p.Lo = -1; return p }(), Options{Tolerance: 1, MaxDegree: 5}},
		{"incomplete", &Problem{Lo: 0, Hi: 1}, Options{Tolerance: 1, MaxDegree: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.pr, tt.opts)
			assert.True(t, errors.Is(err, synerr.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestPolynomialScheme(t *testing.T) {
	odd := &Polynomial{Coeffs: fromTerms([]float64{1, -1.0 / 6}, target.SymmetryOdd), Parity: target.SymmetryOdd}
	assert.Equal(t, []float64{-1.0 / 6, 0, 1, 0}, odd.Coeffs)
	assert.Equal(t, []float64{-1.0 / 6, 1}, odd.Terms())
	assert.Equal(t, 3, odd.Degree())
	x := 0.5
	assert.Equal(t, float64(math.FMA(-1.0/6, x*x, 1)*x), odd.Eval(x))

	even := &Polynomial{Coeffs: fromTerms([]float64{1, -0.5}, target.SymmetryEven), Parity: target.SymmetryEven}
	assert.Equal(t, []float64{-0.5, 0, 1}, even.Coeffs)
	assert.Equal(t, even.Eval(0.25), even.Eval(-0.25))

	plain := &Polynomial{Coeffs: []float64{2, 3, 4}}
	assert.Equal(t, math.FMA(math.FMA(2, 1.5, 3), 1.5, 4), plain.Eval(1.5))
}

func TestSolveLinear(t *testing.T) {
	f := func(x float64) *big.Float { return bigFloat(x) }
	a := [][]*big.Float{
		{f(0), f(2), f(1)},
		{f(1), f(1), f(1)},
		{f(2), f(0), f(3)},
	}
	b := []*big.Float{f(7), f(6), f(11)}
	x, err := solveLinear(a, b)
	require.NoError(t, err)
	want := []float64{1, 2, 3}
	for i, xi := range x {
		v, _ := xi.Float64()
		assert.InDelta(t, want[i], v, 1e-60)
	}

	_, err = solveLinear([][]*big.Float{{f(1), f(2)}, {f(2), f(4)}}, []*big.Float{f(1), f(2)})
	assert.ErrorIs(t, err, errSingular)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("relative")
	require.NoError(t, err)
	assert.Equal(t, Relative, m)
	_, err = ParseMode("ulp")
	assert.Error(t, err)
}
