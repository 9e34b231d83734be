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

// Package emit lowers a derived approximation to a branch-free ir.Program.
//
// The program performs the same floating-point operations, in the same
// order, as reduce.Domain.Forward, pole.Polynomial.Apply, fit.Polynomial.Eval
// and recon.Rule, so interpreting it reproduces the reference path bit for
// bit.
package emit

import (
	"math"

	"github.com/ajroetker/doctorsyn/fit"
	"github.com/ajroetker/doctorsyn/ir"
	"github.com/ajroetker/doctorsyn/pole"
	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

const stage = "emit"

// side holds the values the reduction removed from x.
type side struct {
	dx *ir.Node // sign-flip: x - c
	k  *ir.Node // quadrant or exponent multiple, int64
}

// Emit builds, prunes, analyzes and verifies the evaluator program.
func Emit(name string, d *reduce.Domain, poly *pole.Polynomial, p *fit.Polynomial) (*ir.Program, error) {
	if d == nil || p == nil || len(p.Coeffs) == 0 {
		return nil, synerr.New(synerr.KindInvalidInput, stage, name, "missing domain or polynomial")
	}
	if poly == nil {
		poly = &pole.Polynomial{}
	}

	prog := ir.NewProgram(name)
	prog.SetStage(ir.StageReduce)
	r, sd := forward(prog, d)

	prog.SetStage(ir.StagePoly)
	v := polynomial(prog, p, r)

	prog.SetStage(ir.StagePole)
	v = apply(prog, poly, r, v)

	prog.SetStage(ir.StageReconstruct)
	prog.Return(reconstruct(prog, d, sd, v))

	ir.EliminateDead(prog)
	ir.Analyze(prog)
	if err := ir.Verify(prog); err != nil {
		return nil, synerr.New(synerr.KindInvalidInput, stage, name, "invalid evaluator").Wrap(err)
	}
	return prog, nil
}

func forward(prog *ir.Program, d *reduce.Domain) (*ir.Node, side) {
	x := prog.Input
	switch d.Rule {
	case reduce.RuleSignFlip:
		dx := x
		if d.Center != 0 {
			dx = prog.Sub(x, prog.Const(d.Center))
		}
		return prog.Abs(dx), side{dx: dx}
	case reduce.RuleQuadrant:
		return multiple(prog, x, d.InvStep, d.StepHi, d.StepLo)
	case reduce.RuleExponent:
		if d.Log {
			return splitLog(prog, x)
		}
		return multiple(prog, x, d.InvScale, d.ScaleHi, d.ScaleLo)
	default:
		return x, side{}
	}
}

// multiple removes k = RoundToEven(x*inv) copies of hi + lo.
func multiple(prog *ir.Program, x *ir.Node, inv, hi, lo float64) (*ir.Node, side) {
	k := prog.RoundToEven(prog.Mul(x, prog.Const(inv)))
	nk := prog.Neg(k)
	r := prog.MulAdd(nk, prog.Const(hi), x)
	r = prog.MulAdd(nk, prog.Const(lo), r)
	return r, side{k: prog.ConvertToInt(k)}
}

// splitLog extracts x = 2^e*m with m in (√½, √2] and returns m - 1.
func splitLog(prog *ir.Program, x *ir.Node) (*ir.Node, side) {
	bits := prog.BitsFromFloat(x)
	e := prog.SubI(prog.ShiftRight(bits, 52), prog.ConstInt(1023))
	m := prog.BitsToFloat(prog.OrI(prog.AndI(bits, prog.ConstInt(1<<52-1)), prog.ConstInt(0x3ff<<52)))
	mask := prog.Greater(m, prog.Const(math.Sqrt2))
	m = prog.IfThenElse(mask, prog.Mul(m, prog.Const(0.5)), m)
	e = prog.IfThenElse(mask, prog.AddI(e, prog.ConstInt(1)), e)
	return prog.Sub(m, prog.Const(1)), side{k: e}
}

func polynomial(prog *ir.Program, p *fit.Polynomial, r *ir.Node) *ir.Node {
	switch p.Parity {
	case target.SymmetryEven:
		return horner(prog, p.Terms(), prog.Mul(r, r))
	case target.SymmetryOdd:
		q := horner(prog, p.Terms(), prog.Mul(r, r))
		return prog.Mul(q, r)
	default:
		return horner(prog, p.Coeffs, r)
	}
}

func horner(prog *ir.Program, c []float64, x *ir.Node) *ir.Node {
	if len(c) == 0 {
		return prog.Const(0)
	}
	acc := prog.Const(c[0])
	for _, ci := range c[1:] {
		acc = prog.MulAdd(acc, x, prog.Const(ci))
	}
	return acc
}

func apply(prog *ir.Program, poly *pole.Polynomial, r, v *ir.Node) *ir.Node {
	if poly.Poles.Degree() > 0 {
		v = prog.Div(v, product(prog, poly.Poles, r))
	}
	if poly.Zeros.Degree() > 0 {
		v = prog.Mul(v, product(prog, poly.Zeros, r))
	}
	return v
}

// product evaluates the factor as a product of root pairs.
func product(prog *ir.Program, f pole.Factor, x *ir.Node) *ir.Node {
	var p *ir.Node
	for i := 0; i < len(f.Roots); i += 2 {
		t := prog.Sub(x, prog.Const(f.Roots[i]))
		if i+1 < len(f.Roots) {
			t = prog.Mul(t, prog.Sub(x, prog.Const(f.Roots[i+1])))
		}
		if p == nil {
			p = t
		} else {
			p = prog.Mul(p, t)
		}
	}
	return p
}

func reconstruct(prog *ir.Program, d *reduce.Domain, sd side, v *ir.Node) *ir.Node {
	switch d.Rule {
	case reduce.RuleSignFlip:
		if d.Parity == target.SymmetryOdd {
			sign := prog.AndI(prog.BitsFromFloat(sd.dx), prog.ConstInt(math.MinInt64))
			v = prog.BitsToFloat(prog.XorI(prog.BitsFromFloat(v), sign))
		}
		if d.Offset != 0 {
			v = prog.Add(prog.Const(d.Offset), v)
		}
		return v
	case reduce.RuleQuadrant:
		if d.Alternate {
			sign := prog.ShiftLeft(prog.AndI(sd.k, prog.ConstInt(1)), 63)
			v = prog.BitsToFloat(prog.XorI(prog.BitsFromFloat(v), sign))
		}
		return v
	case reduce.RuleExponent:
		if d.Log {
			e := prog.ConvertToFloat(sd.k)
			return prog.MulAdd(e, prog.Const(d.ScaleHi), prog.MulAdd(e, prog.Const(d.ScaleLo), v))
		}
		scale := prog.BitsToFloat(prog.ShiftLeft(prog.AddI(sd.k, prog.ConstInt(1023)), 52))
		return prog.Mul(v, scale)
	default:
		return v
	}
}
