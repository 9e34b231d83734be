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

// Package recon inverts the reduction: it maps the polynomial output on the
// reduced interval back to the function value at the original argument.
package recon

import (
	"math"

	"github.com/ajroetker/doctorsyn/fit"
	"github.com/ajroetker/doctorsyn/pole"
	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/target"
)

const signMask = 1 << 63

// Reconstruct returns f(x) given p = p(r) for the r and side that
// Forward produced for x.
func Reconstruct(d *reduce.Domain, poly *pole.Polynomial, r float64, side reduce.Side, p float64) float64 {
	return Rule(d, side, poly.Apply(r, p))
}

// Rule undoes the reduction rule alone.
func Rule(d *reduce.Domain, side reduce.Side, v float64) float64 {
	switch d.Rule {
	case reduce.RuleSignFlip:
		if d.Parity == target.SymmetryOdd {
			v = math.Float64frombits(math.Float64bits(v) ^ math.Float64bits(side.D)&signMask)
		}
		if d.Offset != 0 {
			v = d.Offset + v
		}
		return v
	case reduce.RuleQuadrant:
		if d.Alternate {
			v = math.Float64frombits(math.Float64bits(v) ^ uint64(side.K&1)<<63)
		}
		return v
	case reduce.RuleExponent:
		if d.Log {
			e := float64(side.K)
			return math.FMA(e, d.ScaleHi, math.FMA(e, d.ScaleLo, v))
		}
		scale := math.Float64frombits(uint64(side.K+1023) << 52)
		return float64(v * scale)
	default:
		return v
	}
}

// Finisher returns Reconstruct as a function of p at a fixed point.
func Finisher(d *reduce.Domain, poly *pole.Polynomial, r float64, side reduce.Side) func(p float64) float64 {
	return func(p float64) float64 {
		return Reconstruct(d, poly, r, side, p)
	}
}

// Canonical is Reconstruct on the canonical copy of the reduced interval,
// the form the fitter measures against.
func Canonical(d *reduce.Domain, poly *pole.Polynomial) func(r, p float64) float64 {
	return func(r, p float64) float64 {
		return Reconstruct(d, poly, r, reduce.Side{}, p)
	}
}

// Evaluate runs the whole scalar reference path: reduce x, evaluate the
// polynomial and reconstruct.
func Evaluate(d *reduce.Domain, poly *pole.Polynomial, p *fit.Polynomial, x float64) float64 {
	r, side := d.Forward(x)
	return Reconstruct(d, poly, r, side, p.Eval(r))
}
