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

	"github.com/ajroetker/doctorsyn/target"
)

var errSingular = errors.New("fit: singular system")

// remez refines cand toward the weighted minimax polynomial with the same
// number of terms. It is best effort: it returns nil when the exchange
// breaks down or never improves on cand.
func remez(pr *Problem, s *sampler, cand *Polynomial, opts Options) *Polynomial {
	n := len(cand.Terms())
	pts := remezPoints(pr, s)
	if len(pts) < 2*(n+1) {
		return nil
	}

	ref := initialReference(s, pts, n+1)
	if len(ref) != n+1 {
		return nil
	}
	best := cand
	bestErr := s.metric(cand)
	for iter := 0; iter < opts.RemezIterations; iter++ {
		low, err := solveReference(pr, s, ref, n)
		if err != nil {
			break
		}
		next := &Polynomial{Coeffs: fromTerms(low, pr.Parity), Parity: pr.Parity, Refined: true}
		s.measure(next)
		e := s.metric(next)
		if !(e < bestErr) {
			break
		}
		best, bestErr = next, e

		errs := weightedErrors(s, pts, next)
		ext := alternatingExtrema(pts, errs, n+1)
		if ext == nil {
			break
		}
		ref = ext
		lo, hi := math.Inf(1), 0.0
		for _, i := range ref {
			a := math.Abs(errs[indexOf(pts, i)])
			lo, hi = math.Min(lo, a), math.Max(hi, a)
		}
		if hi == 0 || (hi-lo)/hi < 1e-3 {
			break
		}
	}
	if best == cand {
		return nil
	}
	return best
}

// remezPoints selects the grid points the exchange works on: those with a
// finite positive weight, restricted to r >= 0 under parity.
func remezPoints(pr *Problem, s *sampler) []int {
	parity := pr.Parity == target.SymmetryEven || pr.Parity == target.SymmetryOdd
	var pts []int
	for i, r := range s.r {
		if parity && r < 0 {
			continue
		}
		if pr.Parity == target.SymmetryOdd && r == 0 {
			continue
		}
		w := s.weight(i)
		if !(w > 0) || math.IsInf(w, 0) || s.slope[i] == 0 {
			continue
		}
		pts = append(pts, i)
	}
	return pts
}

// initialReference picks the points closest to the Chebyshev extrema of the
// working interval.
func initialReference(s *sampler, pts []int, m int) []int {
	lo, hi := s.r[pts[0]], s.r[pts[len(pts)-1]]
	ref := make([]int, 0, m)
	j := 0
	for k := m - 1; k >= 0; k-- {
		x := (lo+hi)/2 + (hi-lo)/2*math.Cos(float64(k)*math.Pi/float64(m-1))
		for j < len(pts)-1 && math.Abs(s.r[pts[j+1]]-x) <= math.Abs(s.r[pts[j]]-x) {
			j++
		}
		if len(ref) > 0 && ref[len(ref)-1] == pts[j] {
			if j+1 >= len(pts) {
				return ref
			}
			j++
		}
		ref = append(ref, pts[j])
	}
	return ref
}

func indexOf(pts []int, i int) int {
	for k, p := range pts {
		if p == i {
			return k
		}
	}
	return -1
}

// residualAt recovers the residual value at grid point i from the target:
// Finish is affine, so g = (t - Finish(r, 0)) / slope.
func residualAt(s *sampler, i int) float64 {
	return (s.t[i] - s.base[i]) / s.slope[i]
}

func weightedErrors(s *sampler, pts []int, p *Polynomial) []float64 {
	errs := make([]float64, len(pts))
	for k, i := range pts {
		errs[k] = (p.Eval(s.r[i]) - residualAt(s, i)) * s.weight(i)
	}
	return errs
}

// alternatingExtrema returns m grid indices where the weighted error has
// alternating sign and locally maximal magnitude, or nil.
func alternatingExtrema(pts []int, errs []float64, m int) []int {
	type ext struct {
		at  int
		val float64
	}
	var list []ext
	for k, e := range errs {
		if e == 0 || math.IsNaN(e) {
			continue
		}
		if len(list) > 0 && math.Signbit(list[len(list)-1].val) == math.Signbit(e) {
			if math.Abs(e) > math.Abs(list[len(list)-1].val) {
				list[len(list)-1] = ext{pts[k], e}
			}
			continue
		}
		list = append(list, ext{pts[k], e})
	}
	for len(list) > m {
		if math.Abs(list[0].val) < math.Abs(list[len(list)-1].val) {
			list = list[1:]
		} else {
			list = list[:len(list)-1]
		}
	}
	if len(list) < m {
		return nil
	}
	out := make([]int, m)
	for k, e := range list {
		out[k] = e.at
	}
	return out
}

// solveReference solves sum_j a_j φ_j(x_i) + (-1)^i E / w_i = g_i over the
// reference points and returns a_0..a_{n-1}.
func solveReference(pr *Problem, s *sampler, ref []int, n int) ([]float64, error) {
	m := n + 1
	a := make([][]*big.Float, m)
	b := make([]*big.Float, m)
	for row, i := range ref {
		r := bigFloat(s.r[i])
		a[row] = make([]*big.Float, m)
		pw := bigFloat(1)
		for k := 0; k < power(0, pr.Parity); k++ {
			pw.Mul(pw, r)
		}
		step := new(big.Float).SetPrec(Precision).Set(r)
		if pr.Parity == target.SymmetryEven || pr.Parity == target.SymmetryOdd {
			step.Mul(step, r)
		}
		for j := 0; j < n; j++ {
			a[row][j] = new(big.Float).SetPrec(Precision).Set(pw)
			pw.Mul(pw, step)
		}
		e := bigFloat(1 / s.weight(i))
		if row%2 == 1 {
			e.Neg(e)
		}
		a[row][n] = e
		b[row] = bigFloat(residualAt(s, i))
	}
	x, err := solveLinear(a, b)
	if err != nil {
		return nil, err
	}
	low := make([]float64, n)
	for j := range low {
		low[j], _ = x[j].Float64()
		if math.IsInf(low[j], 0) || math.IsNaN(low[j]) {
			return nil, errSingular
		}
	}
	return low, nil
}

// solveLinear solves a·x = b by Gaussian elimination with partial pivoting.
// a and b are overwritten.
func solveLinear(a [][]*big.Float, b []*big.Float) ([]*big.Float, error) {
	n := len(b)
	t := new(big.Float).SetPrec(Precision)
	abs := func(x *big.Float) *big.Float { return new(big.Float).Abs(x) }
	for col := 0; col < n; col++ {
		piv := col
		for row := col + 1; row < n; row++ {
			if abs(a[row][col]).Cmp(abs(a[piv][col])) > 0 {
				piv = row
			}
		}
		if a[piv][col].Sign() == 0 {
			return nil, errSingular
		}
		a[col], a[piv] = a[piv], a[col]
		b[col], b[piv] = b[piv], b[col]
		for row := col + 1; row < n; row++ {
			f := new(big.Float).SetPrec(Precision).Quo(a[row][col], a[col][col])
			for k := col; k < n; k++ {
				t.Mul(f, a[col][k])
				a[row][k].Sub(a[row][k], t)
			}
			t.Mul(f, b[col])
			b[row].Sub(b[row], t)
		}
	}
	x := make([]*big.Float, n)
	for row := n - 1; row >= 0; row-- {
		acc := new(big.Float).SetPrec(Precision).Set(b[row])
		for k := row + 1; k < n; k++ {
			t.Mul(a[row][k], x[k])
			acc.Sub(acc, t)
		}
		x[row] = acc.Quo(acc, a[row][row])
	}
	return x, nil
}
