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

// Package pole removes poles and zeros from the reduced function.
//
// Poles inside or next to the reduced interval are multiplied out, so the
// residual g(r) = f(r)·P(r) stays finite and reconstruction divides by P.
// Zeros are divided out, g(r) = f(r)/Z(r), and multiplied back, which keeps
// relative accuracy near them.
package pole

import (
	"math"
	"math/big"
	"sort"

	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

const stage = "pole"

const precision = 192

// Factor is a product of linear factors (x - root). Roots are ordered by
// magnitude and multiplied in adjacent pairs, which keeps intermediate
// products balanced; evaluation at a root is exactly zero.
type Factor struct {
	Roots []float64

	// Coeffs is the expanded product, high-to-low, computed in extended
	// precision and rounded.
	Coeffs []float64
}

// Degree returns the number of roots.
func (f Factor) Degree() int {
	return len(f.Roots)
}

// Eval evaluates the product form at x. An empty factor is 1.
func (f Factor) Eval(x float64) float64 {
	if len(f.Roots) == 0 {
		return 1
	}
	var p float64
	for i := 0; i < len(f.Roots); i += 2 {
		t := x - f.Roots[i]
		if i+1 < len(f.Roots) {
			t = float64(t * (x - f.Roots[i+1]))
		}
		if i == 0 {
			p = t
		} else {
			p = float64(p * t)
		}
	}
	return p
}

// EvalPrecise evaluates the product in extended precision.
func (f Factor) EvalPrecise(x *big.Float) *big.Float {
	p := new(big.Float).SetPrec(x.Prec()).SetInt64(1)
	t := new(big.Float).SetPrec(x.Prec())
	for _, r := range f.Roots {
		t.Sub(x, new(big.Float).SetFloat64(r))
		p.Mul(p, t)
	}
	return p
}

// EvalExpanded evaluates the expanded coefficients with Horner's rule and
// also returns the sum of the magnitudes of the terms.
func (f Factor) EvalExpanded(x float64) (p, magnitude float64) {
	ax := math.Abs(x)
	for _, c := range f.Coeffs {
		p = math.FMA(p, x, c)
		magnitude = math.FMA(magnitude, ax, math.Abs(c))
	}
	return p, magnitude
}

// Parity reports whether the factor is even or odd, or neither.
func (f Factor) Parity() target.Symmetry {
	n := len(f.Roots)
	neg := make([]float64, n)
	for i, r := range f.Roots {
		neg[i] = -r
	}
	a := append([]float64(nil), f.Roots...)
	sort.Float64s(a)
	sort.Float64s(neg)
	for i := range a {
		if a[i] != neg[i] {
			return target.SymmetryNone
		}
	}
	if n%2 == 0 {
		return target.SymmetryEven
	}
	return target.SymmetryOdd
}

func newFactor(roots []float64) Factor {
	sort.SliceStable(roots, func(i, j int) bool {
		ai, aj := math.Abs(roots[i]), math.Abs(roots[j])
		if ai != aj {
			return ai < aj
		}
		return roots[i] < roots[j]
	})
	return Factor{Roots: roots, Coeffs: expand(roots)}
}

// expand multiplies out the roots in extended precision and returns the
// coefficients high-to-low.
func expand(roots []float64) []float64 {
	// c[i] is the coefficient of x^i.
	c := []*big.Float{new(big.Float).SetPrec(precision).SetInt64(1)}
	t := new(big.Float).SetPrec(precision)
	for _, r := range roots {
		br := new(big.Float).SetPrec(precision).SetFloat64(r)
		next := make([]*big.Float, len(c)+1)
		for i := range next {
			next[i] = new(big.Float).SetPrec(precision)
		}
		for i, ci := range c {
			next[i+1].Add(next[i+1], ci)
			t.Mul(ci, br)
			next[i].Sub(next[i], t)
		}
		c = next
	}
	out := make([]float64, len(c))
	for i, ci := range c {
		out[len(c)-1-i], _ = ci.Float64()
	}
	return out
}

// Polynomial is the eliminated pole polynomial P and zero polynomial Z.
type Polynomial struct {
	Poles Factor
	Zeros Factor

	// GuardWidth is the half-width of the band around each pole root that
	// error measurement skips; within it the rounded root dominates.
	GuardWidth float64

	// LostBits is the worst precision loss of the expanded coefficients
	// relative to the product form across the interval.
	LostBits float64
}

// Identity reports whether nothing was eliminated.
func (p *Polynomial) Identity() bool {
	return p.Poles.Degree() == 0 && p.Zeros.Degree() == 0
}

// Apply reverses elimination: v/P(r) for poles, then ·Z(r) for zeros.
func (p *Polynomial) Apply(r, v float64) float64 {
	if p.Poles.Degree() > 0 {
		v = v / p.Poles.Eval(r)
	}
	if p.Zeros.Degree() > 0 {
		v = float64(v * p.Zeros.Eval(r))
	}
	return v
}

// Slope returns d Apply / dv at r.
func (p *Polynomial) Slope(r float64) float64 {
	return p.Apply(r, 1)
}

// Guarded reports whether r lies in the guard band of a pole.
func (p *Polynomial) Guarded(r float64) bool {
	for _, a := range p.Poles.Roots {
		if math.Abs(r-a) <= p.GuardWidth {
			return true
		}
	}
	return false
}

// Options tunes Eliminate.
type Options struct {
	// Padding adds this many of the nearest poles outside the interval.
	Padding int

	// Adjacent is the relative distance within which an outside pole counts
	// as adjacent to the interval. Zero means 1e-6.
	Adjacent float64

	// Guard is the relative half-width of the measurement guard band around
	// poles. Zero means 1e-6.
	Guard float64

	// MaxLostBits bounds the cancellation of the expanded form. Zero means 40.
	MaxLostBits float64
}

func (o Options) withDefaults() Options {
	if o.Adjacent == 0 {
		o.Adjacent = 1e-6
	}
	if o.Guard == 0 {
		o.Guard = 1e-6
	}
	if o.MaxLostBits == 0 {
		o.MaxLostBits = 40
	}
	return o
}

// Eliminate selects the poles and zeros to remove for fn on dom and returns
// the polynomial together with the residual function.
func Eliminate(fn *target.Function, dom *reduce.Domain, opts Options) (*Polynomial, *Residual, error) {
	opts = opts.withDefaults()
	if opts.Padding < 0 {
		return nil, nil, synerr.New(synerr.KindInvalidInput, stage, fn.Name, "negative pole padding %d", opts.Padding)
	}
	scale := math.Max(1, dom.Width())
	adj := opts.Adjacent * scale

	poles := selectRoots(fn, dom, target.Pole, adj, opts.Padding)
	zeros := selectRoots(fn, dom, target.Zero, adj, 0)

	p := &Polynomial{
		Poles:      newFactor(poles),
		Zeros:      newFactor(zeros),
		GuardWidth: opts.Guard * scale,
	}

	for _, f := range []Factor{p.Poles, p.Zeros} {
		bits := lostBits(f, dom, p)
		p.LostBits = math.Max(p.LostBits, bits)
		if bits > opts.MaxLostBits {
			return nil, nil, synerr.New(synerr.KindNumericInstability, stage, fn.Name,
				"expanded degree-%d factor loses %.1f bits against product form, limit %.0f",
				f.Degree(), bits, opts.MaxLostBits).WithDomain(dom.Lo, dom.Hi)
		}
	}

	g := newResidual(fn, dom, p)
	return p, g, nil
}

// selectRoots collects the singular points of the given kind in local
// coordinates: all inside or adjacent to [Lo, Hi], plus the padding nearest
// ones outside.
func selectRoots(fn *target.Function, dom *reduce.Domain, kind target.SingularityKind, adj float64, padding int) []float64 {
	lo, hi := dom.Lo, dom.Hi
	if dom.Rule == reduce.RuleSignFlip {
		lo = -hi
	}
	reach := float64(padding+1) * math.Max(dom.Width(), fn.Period)
	wlo, whi := lo-reach-adj, hi+reach+adj

	var inside, outside []float64
	for _, s := range fn.Singularities {
		if s.Kind != kind {
			continue
		}
		for _, x := range members(s, dom, wlo, whi) {
			r := dom.Local(x)
			for i, m := 0, s.Multiplicity(); i < m; i++ {
				if r >= lo-adj && r <= hi+adj {
					inside = append(inside, r)
				} else {
					outside = append(outside, r)
				}
			}
		}
	}
	dist := func(r float64) float64 {
		return math.Max(lo-r, r-hi)
	}
	sort.SliceStable(outside, func(i, j int) bool {
		di, dj := dist(outside[i]), dist(outside[j])
		if di != dj {
			return di < dj
		}
		return outside[i] < outside[j]
	})
	n := min(padding, len(outside))
	for n > 0 && n < len(outside) && dist(outside[n]) == dist(outside[n-1]) {
		n++
	}
	return append(inside, outside[:n]...)
}

// members expands s over the local window [wlo, whi], returning original
// coordinates.
func members(s target.Singularity, dom *reduce.Domain, wlo, whi float64) []float64 {
	a, b := dom.Canonical(wlo), dom.Canonical(whi)
	if a > b {
		a, b = b, a
	}
	return s.Members(a, b)
}

const lostBitsSamples = 1024

// lostBits measures how much the expanded coefficients cancel relative to
// the product form over the interval, outside the guard bands.
func lostBits(f Factor, dom *reduce.Domain, p *Polynomial) float64 {
	if f.Degree() < 2 {
		return 0
	}
	worst := 1.0
	h := dom.Width() / lostBitsSamples
	for i := 0; i <= lostBitsSamples; i++ {
		r := dom.Lo + float64(i)*h
		if near(f, r, p.GuardWidth) {
			continue
		}
		prod := math.Abs(f.Eval(r))
		_, mag := f.EvalExpanded(r)
		if prod == 0 {
			continue
		}
		worst = math.Max(worst, mag/prod)
	}
	return math.Log2(worst)
}

func near(f Factor, r, width float64) bool {
	for _, a := range f.Roots {
		if math.Abs(r-a) <= width {
			return true
		}
	}
	return false
}
