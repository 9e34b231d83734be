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
	"math"
	"math/big"

	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

// fitVariable returns the interval of the interpolation variable: r itself,
// or s = r*r for even and odd residuals.
func fitVariable(pr *Problem) (lo, hi float64) {
	if pr.Parity == target.SymmetryEven || pr.Parity == target.SymmetryOdd {
		h := math.Max(math.Abs(pr.Lo), math.Abs(pr.Hi))
		return 0, h * h
	}
	return pr.Lo, pr.Hi
}

// chebyshevNodes returns the n first-kind Chebyshev nodes on [lo, hi].
func chebyshevNodes(n int, lo, hi float64) []float64 {
	mid, half := (lo+hi)/2, (hi-lo)/2
	nodes := make([]float64, n)
	for i := range nodes {
		nodes[i] = mid + half*math.Cos(float64(2*i+1)*math.Pi/float64(2*n))
	}
	return nodes
}

func bigFloat(x float64) *big.Float {
	return new(big.Float).SetPrec(Precision).SetFloat64(x)
}

// sample returns the value of the interpolated function at node z of the
// fit variable, in extended precision when the problem supports it.
func sample(pr *Problem, z float64) (*big.Float, bool) {
	odd := pr.Parity == target.SymmetryOdd
	even := pr.Parity == target.SymmetryEven
	if pr.ResidualPrecise != nil {
		r := bigFloat(z)
		if odd || even {
			r.Sqrt(r)
		}
		y := pr.ResidualPrecise(r)
		if y == nil || y.IsInf() {
			return nil, false
		}
		y = new(big.Float).SetPrec(Precision).Set(y)
		if odd {
			y.Quo(y, r)
		}
		return y, true
	}
	r := z
	if odd || even {
		r = math.Sqrt(z)
	}
	v := pr.Residual(r)
	if odd {
		v /= r
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, false
	}
	return bigFloat(v), true
}

// newton interpolates the residual with n terms and returns the rounded
// coefficients.
func newton(pr *Problem, n int) (*Polynomial, error) {
	lo, hi := fitVariable(pr)
	nodes := chebyshevNodes(n, lo, hi)

	z := make([]*big.Float, n)
	c := make([]*big.Float, n)
	for i, zi := range nodes {
		y, ok := sample(pr, zi)
		if !ok {
			return nil, synerr.New(synerr.KindNumericInstability, stage, pr.Name,
				"residual is not finite at node %g", zi).WithDomain(pr.Lo, pr.Hi)
		}
		z[i] = bigFloat(zi)
		c[i] = y
	}

	// Divided differences in place: c[i] = f[z_0, ..., z_i].
	num := new(big.Float).SetPrec(Precision)
	den := new(big.Float).SetPrec(Precision)
	for j := 1; j < n; j++ {
		for i := n - 1; i >= j; i-- {
			num.Sub(c[i], c[i-1])
			den.Sub(z[i], z[i-j])
			c[i] = new(big.Float).SetPrec(Precision).Quo(num, den)
		}
	}

	mono := newtonToMonomial(c, z)
	low := make([]float64, n)
	for j, m := range mono {
		low[j], _ = m.Float64()
		if math.IsInf(low[j], 0) {
			return nil, synerr.New(synerr.KindNumericInstability, stage, pr.Name,
				"coefficient %d overflows float64", j).WithDomain(pr.Lo, pr.Hi)
		}
	}
	return &Polynomial{Coeffs: fromTerms(low, pr.Parity), Parity: pr.Parity}, nil
}

// newtonToMonomial expands c_0 + (z-z_0)(c_1 + (z-z_1)(c_2 + ...)) into
// low-to-high monomial coefficients.
func newtonToMonomial(c, z []*big.Float) []*big.Float {
	n := len(c)
	poly := []*big.Float{new(big.Float).SetPrec(Precision).Set(c[n-1])}
	t := new(big.Float).SetPrec(Precision)
	for j := n - 2; j >= 0; j-- {
		// poly = poly*(z - z_j) + c_j
		next := make([]*big.Float, len(poly)+1)
		for i := range next {
			next[i] = new(big.Float).SetPrec(Precision)
		}
		for i, p := range poly {
			next[i+1].Add(next[i+1], p)
			t.Mul(p, z[j])
			next[i].Sub(next[i], t)
		}
		next[0].Add(next[0], c[j])
		poly = next
	}
	return poly
}
