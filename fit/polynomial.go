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
	"fmt"
	"math"
	"strings"

	"github.com/ajroetker/doctorsyn/target"
)

// Polynomial is a fitted approximation in the reduced variable.
//
// Coeffs are high-to-low over every power up to the degree; slots the parity
// excludes hold exact zeros. Even and odd polynomials are evaluated in
// s = r*r so the parity holds bit for bit: an odd polynomial returns exactly
// zero at r = 0.
type Polynomial struct {
	Coeffs []float64
	Parity target.Symmetry

	// MaxAbsError and MaxRelError are the sampled errors of the finished
	// output over the reduced interval.
	MaxAbsError float64
	MaxRelError float64

	// Refined is set when minimax refinement replaced the interpolant.
	Refined bool

	// Anchors are the reduced points snapped to exact values.
	Anchors []float64
}

// Degree returns the polynomial degree.
func (p *Polynomial) Degree() int {
	return len(p.Coeffs) - 1
}

// Terms returns the coefficients the evaluation scheme uses, high-to-low:
// all of them for no parity, or the ones of the surviving powers, as a
// polynomial in s = r*r.
func (p *Polynomial) Terms() []float64 {
	return terms(p.Coeffs, p.Parity)
}

func terms(coeffs []float64, parity target.Symmetry) []float64 {
	if parity != target.SymmetryEven && parity != target.SymmetryOdd {
		return coeffs
	}
	out := make([]float64, 0, len(coeffs)/2+1)
	for i := 0; i < len(coeffs); i += 2 {
		out = append(out, coeffs[i])
	}
	return out
}

// Eval evaluates p at r with fused multiply-adds, in the exact operation
// order the emitted evaluator uses.
func (p *Polynomial) Eval(r float64) float64 {
	return eval(p.Coeffs, p.Parity, r)
}

func eval(coeffs []float64, parity target.Symmetry, r float64) float64 {
	switch parity {
	case target.SymmetryEven:
		return horner(terms(coeffs, parity), float64(r*r))
	case target.SymmetryOdd:
		q := horner(terms(coeffs, parity), float64(r*r))
		return float64(q * r)
	default:
		return horner(coeffs, r)
	}
}

func horner(c []float64, x float64) float64 {
	if len(c) == 0 {
		return 0
	}
	acc := c[0]
	for _, ci := range c[1:] {
		acc = math.FMA(acc, x, ci)
	}
	return acc
}

// magnitude evaluates the scheme with |c| and |r|, bounding the size of the
// intermediate terms.
func magnitude(coeffs []float64, parity target.Symmetry, r float64) float64 {
	abs := make([]float64, len(coeffs))
	for i, c := range coeffs {
		abs[i] = math.Abs(c)
	}
	return eval(abs, parity, math.Abs(r))
}

// String prints the coefficients high-to-low.
func (p *Polynomial) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "degree %d (%s):", p.Degree(), p.Parity)
	for _, c := range p.Coeffs {
		fmt.Fprintf(&b, " %v", c)
	}
	return b.String()
}

// degreeFor maps the number of fitted terms to the degree under parity.
func degreeFor(n int, parity target.Symmetry) int {
	switch parity {
	case target.SymmetryEven:
		return 2 * (n - 1)
	case target.SymmetryOdd:
		return 2*n - 1
	default:
		return n - 1
	}
}

// power returns the power of r that term j multiplies.
func power(j int, parity target.Symmetry) int {
	switch parity {
	case target.SymmetryEven:
		return 2 * j
	case target.SymmetryOdd:
		return 2*j + 1
	default:
		return j
	}
}

// fromTerms expands low-to-high terms into full high-to-low coefficients.
func fromTerms(low []float64, parity target.Symmetry) []float64 {
	deg := degreeFor(len(low), parity)
	out := make([]float64, deg+1)
	for j, t := range low {
		out[deg-power(j, parity)] = t
	}
	return out
}
