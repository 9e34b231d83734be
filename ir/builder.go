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

package ir

import "fmt"

// SetStage tags the nodes built from now on.
func (p *Program) SetStage(s Stage) {
	p.stage = s
}

// Const returns the float64 constant v, shared across the program.
func (p *Program) Const(v float64) *Node {
	key := floatKey(v)
	if n, ok := p.consts[key]; ok {
		return n
	}
	n := p.add(&Node{Kind: OpKindConst, Op: OpConst, Type: Float64, Value: v})
	p.consts[key] = n
	return n
}

// ConstInt returns the int64 constant v, shared across the program.
func (p *Program) ConstInt(v int64) *Node {
	key := constKey{typ: Int64, bits: uint64(v)}
	if n, ok := p.consts[key]; ok {
		return n
	}
	n := p.add(&Node{Kind: OpKindConst, Op: OpConst, Type: Int64, Imm: v})
	p.consts[key] = n
	return n
}

// Op appends an operation after checking operand types.
func (p *Program) Op(op string, inputs ...*Node) *Node {
	sig, ok := signatures[op]
	if !ok {
		p.fail(fmt.Errorf("ir: unknown op %q", op))
		return p.add(&Node{Kind: OpKindBranch, Op: op, Inputs: inputs})
	}
	if err := checkInputs(op, sig.inputs, inputs); err != nil {
		p.fail(err)
	}
	return p.add(&Node{Kind: sig.kind, Op: op, Type: sig.result, Inputs: inputs})
}

func checkInputs(op string, want []Type, inputs []*Node) error {
	if len(inputs) != len(want) {
		return fmt.Errorf("ir: %s takes %d operands, got %d", op, len(want), len(inputs))
	}
	for i, in := range inputs {
		if in == nil {
			return fmt.Errorf("ir: %s operand %d is nil", op, i)
		}
		if in.Type != want[i] {
			return fmt.Errorf("ir: %s operand %d is %s, want %s", op, i, in.Type, want[i])
		}
	}
	return nil
}

func (p *Program) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *Program) Add(a, b *Node) *Node         { return p.Op(OpAdd, a, b) }
func (p *Program) Sub(a, b *Node) *Node         { return p.Op(OpSub, a, b) }
func (p *Program) Mul(a, b *Node) *Node         { return p.Op(OpMul, a, b) }
func (p *Program) Div(a, b *Node) *Node         { return p.Op(OpDiv, a, b) }
func (p *Program) MulAdd(a, b, c *Node) *Node   { return p.Op(OpMulAdd, a, b, c) }
func (p *Program) Neg(a *Node) *Node            { return p.Op(OpNeg, a) }
func (p *Program) Abs(a *Node) *Node            { return p.Op(OpAbs, a) }
func (p *Program) RoundToEven(a *Node) *Node    { return p.Op(OpRoundToEven, a) }
func (p *Program) ConvertToInt(a *Node) *Node   { return p.Op(OpConvertToInt, a) }
func (p *Program) ConvertToFloat(a *Node) *Node { return p.Op(OpConvertToFloat, a) }
func (p *Program) BitsFromFloat(a *Node) *Node  { return p.Op(OpBitsFromFloat, a) }
func (p *Program) BitsToFloat(a *Node) *Node    { return p.Op(OpBitsToFloat, a) }
func (p *Program) AddI(a, b *Node) *Node        { return p.Op(OpAddI, a, b) }
func (p *Program) SubI(a, b *Node) *Node        { return p.Op(OpSubI, a, b) }
func (p *Program) AndI(a, b *Node) *Node        { return p.Op(OpAndI, a, b) }
func (p *Program) OrI(a, b *Node) *Node         { return p.Op(OpOrI, a, b) }
func (p *Program) XorI(a, b *Node) *Node        { return p.Op(OpXorI, a, b) }
func (p *Program) Greater(a, b *Node) *Node     { return p.Op(OpGreater, a, b) }

// ShiftLeft shifts a left by the constant n.
func (p *Program) ShiftLeft(a *Node, n uint) *Node {
	s := p.Op(OpShiftLeft, a)
	s.Imm = int64(n)
	return s
}

// ShiftRight shifts a right arithmetically by the constant n.
func (p *Program) ShiftRight(a *Node, n uint) *Node {
	s := p.Op(OpShiftRight, a)
	s.Imm = int64(n)
	return s
}

// IfThenElse returns yes where mask is set and no elsewhere, as a bitwise
// blend. yes and no must share a type.
func (p *Program) IfThenElse(mask, yes, no *Node) *Node {
	switch {
	case mask == nil || yes == nil || no == nil:
		p.fail(fmt.Errorf("ir: %s with nil operand", OpIfThenElse))
	case mask.Type != Mask:
		p.fail(fmt.Errorf("ir: %s condition is %s, want mask", OpIfThenElse, mask.Type))
	case yes.Type != no.Type || yes.Type == Mask:
		p.fail(fmt.Errorf("ir: %s operands are %s and %s", OpIfThenElse, yes.Type, no.Type))
	}
	typ := Float64
	if yes != nil {
		typ = yes.Type
	}
	return p.add(&Node{Kind: OpKindSelect, Op: OpIfThenElse, Type: typ, Inputs: []*Node{mask, yes, no}})
}

// Return marks n as the program output.
func (p *Program) Return(n *Node) {
	if n == nil || n.Type != Float64 {
		p.fail(fmt.Errorf("ir: output must be float64"))
	}
	p.Output = n
}
