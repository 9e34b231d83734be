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
	"math"
	"math/big"

	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/target"
)

// nudge is the relative offset used to evaluate the residual at an
// eliminated root, where it is the average of its two neighbours.
const nudge = 0x1p-30

// Residual is the function left after elimination, in reduced coordinates on
// the canonical copy: g(r) = (f(x(r)) - offset)·P(r)/Z(r).
type Residual struct {
	Function *target.Function
	Domain   *reduce.Domain
	Poly     *Polynomial

	// Parity is the parity of g: the reduced parity times that of P and Z.
	Parity target.Symmetry
}

func newResidual(fn *target.Function, dom *reduce.Domain, p *Polynomial) *Residual {
	par := dom.Parity
	for _, f := range []Factor{p.Poles, p.Zeros} {
		if f.Degree() == 0 {
			continue
		}
		par = combine(par, f.Parity())
	}
	return &Residual{Function: fn, Domain: dom, Poly: p, Parity: par}
}

// combine multiplies parities.
func combine(a, b target.Symmetry) target.Symmetry {
	switch {
	case a == target.SymmetryNone || b == target.SymmetryNone:
		return target.SymmetryNone
	case a == b:
		return target.SymmetryEven
	default:
		return target.SymmetryOdd
	}
}

// HasPrecise reports whether EvalPrecise is available.
func (g *Residual) HasPrecise() bool {
	return g.Function.Precise != nil
}

// Interval returns the reduced interval.
func (g *Residual) Interval() (lo, hi float64) {
	return g.Domain.Lo, g.Domain.Hi
}

// Eval evaluates g in float64.
func (g *Residual) Eval(r float64) float64 {
	if g.atRoot(r) {
		h := nudge * math.Max(1, math.Abs(r))
		return 0.5 * (g.raw(r-h) + g.raw(r+h))
	}
	return g.raw(r)
}

func (g *Residual) atRoot(r float64) bool {
	return (g.Poly.Poles.Degree() > 0 && g.Poly.Poles.Eval(r) == 0) ||
		(g.Poly.Zeros.Degree() > 0 && g.Poly.Zeros.Eval(r) == 0)
}

func (g *Residual) raw(r float64) float64 {
	y := g.Function.Eval(g.Domain.Canonical(r)) - g.Domain.Offset
	if g.Poly.Poles.Degree() > 0 {
		y *= g.Poly.Poles.Eval(r)
	}
	if g.Poly.Zeros.Degree() > 0 {
		y /= g.Poly.Zeros.Eval(r)
	}
	return y
}

// EvalPrecise evaluates g in extended precision, or returns nil when the
// function has no precise oracle.
func (g *Residual) EvalPrecise(r *big.Float) *big.Float {
	if !g.HasPrecise() {
		return nil
	}
	if g.preciseAtRoot(r) {
		h := new(big.Float).SetPrec(r.Prec()).Abs(r)
		if h.Cmp(big.NewFloat(1)) < 0 {
			h.SetInt64(1)
		}
		h.Mul(h, big.NewFloat(nudge))
		a := g.rawPrecise(new(big.Float).SetPrec(r.Prec()).Sub(r, h))
		b := g.rawPrecise(new(big.Float).SetPrec(r.Prec()).Add(r, h))
		a.Add(a, b)
		return a.Quo(a, big.NewFloat(2))
	}
	return g.rawPrecise(r)
}

func (g *Residual) preciseAtRoot(r *big.Float) bool {
	return (g.Poly.Poles.Degree() > 0 && g.Poly.Poles.EvalPrecise(r).Sign() == 0) ||
		(g.Poly.Zeros.Degree() > 0 && g.Poly.Zeros.EvalPrecise(r).Sign() == 0)
}

func (g *Residual) rawPrecise(r *big.Float) *big.Float {
	y := g.Function.Precise(g.Domain.CanonicalPrecise(r))
	if g.Domain.Offset != 0 {
		y.Sub(y, new(big.Float).SetFloat64(g.Domain.Offset))
	}
	if g.Poly.Poles.Degree() > 0 {
		y.Mul(y, g.Poly.Poles.EvalPrecise(r))
	}
	if g.Poly.Zeros.Degree() > 0 {
		y.Quo(y, g.Poly.Zeros.EvalPrecise(r))
	}
	return y
}
