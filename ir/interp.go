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

import (
	"fmt"
	"math"
)

type opcode uint8

const (
	opInput opcode = iota
	opConst
	opAdd
	opSub
	opMul
	opDiv
	opMulAdd
	opNeg
	opAbs
	opRoundToEven
	opConvertToInt
	opConvertToFloat
	opBits
	opAddI
	opSubI
	opAndI
	opOrI
	opXorI
	opShiftLeft
	opShiftRight
	opGreater
	opIfThenElse
)

var opcodes = map[string]opcode{
	OpInput:          opInput,
	OpConst:          opConst,
	OpAdd:            opAdd,
	OpSub:            opSub,
	OpMul:            opMul,
	OpDiv:            opDiv,
	OpMulAdd:         opMulAdd,
	OpNeg:            opNeg,
	OpAbs:            opAbs,
	OpRoundToEven:    opRoundToEven,
	OpConvertToInt:   opConvertToInt,
	OpConvertToFloat: opConvertToFloat,
	OpBitsFromFloat:  opBits,
	OpBitsToFloat:    opBits,
	OpAddI:           opAddI,
	OpSubI:           opSubI,
	OpAndI:           opAndI,
	OpOrI:            opOrI,
	OpXorI:           opXorI,
	OpShiftLeft:      opShiftLeft,
	OpShiftRight:     opShiftRight,
	OpGreater:        opGreater,
	OpIfThenElse:     opIfThenElse,
}

type instr struct {
	code    opcode
	dst     int
	a, b, c int
	imm     int64
}

// Interpreter executes a verified program over lane batches. Every lane
// holds the raw 64 bits of its value. It keeps no state between calls and
// is safe for concurrent use.
type Interpreter struct {
	prog   *Program
	code   []instr
	consts []uint64
	nregs  int
	out    int

	// Lanes is the batch width of EvalBatch.
	Lanes int
}

// NewInterpreter verifies p and compiles it for the given lane width.
func NewInterpreter(p *Program, lanes int) (*Interpreter, error) {
	if err := Verify(p); err != nil {
		return nil, err
	}
	if lanes < 1 {
		lanes = 1
	}
	reg := make(map[int]int, len(p.Nodes))
	for i, n := range p.Nodes {
		reg[n.ID] = i
	}
	it := &Interpreter{prog: p, nregs: len(p.Nodes), out: reg[p.Output.ID], Lanes: lanes}
	it.consts = make([]uint64, len(p.Nodes))
	for i, n := range p.Nodes {
		code, ok := opcodes[n.Op]
		if !ok {
			return nil, fmt.Errorf("%w: no interpreter for %s", ErrMalformed, n.Op)
		}
		if code == opConst {
			if n.Type == Float64 {
				it.consts[i] = math.Float64bits(n.Value)
			} else {
				it.consts[i] = uint64(n.Imm)
			}
			continue
		}
		ins := instr{code: code, dst: i, imm: n.Imm}
		args := []*int{&ins.a, &ins.b, &ins.c}
		for j, in := range n.Inputs {
			*args[j] = reg[in.ID]
		}
		it.code = append(it.code, ins)
	}
	return it, nil
}

// Program returns the interpreted program.
func (it *Interpreter) Program() *Program {
	return it.prog
}

// Eval evaluates one argument.
func (it *Interpreter) Eval(x float64) float64 {
	regs := it.registers(1)
	regs[0] = math.Float64bits(x)
	it.exec(regs, 1)
	return math.Float64frombits(regs[it.out])
}

// EvalBatch evaluates xs into out in chunks of Lanes arguments. It
// evaluates min(len(xs), len(out)) values.
func (it *Interpreter) EvalBatch(xs, out []float64) {
	n := min(len(xs), len(out))
	w := it.Lanes
	regs := it.registers(w)
	for base := 0; base < n; base += w {
		m := min(w, n-base)
		for l := 0; l < m; l++ {
			regs[l] = math.Float64bits(xs[base+l])
		}
		for l := m; l < w; l++ {
			regs[l] = 0
		}
		it.exec(regs, w)
		o := it.out * w
		for l := 0; l < m; l++ {
			out[base+l] = math.Float64frombits(regs[o+l])
		}
	}
}

func (it *Interpreter) registers(w int) []uint64 {
	regs := make([]uint64, it.nregs*w)
	for i, v := range it.consts {
		if v == 0 {
			continue
		}
		for l := 0; l < w; l++ {
			regs[i*w+l] = v
		}
	}
	return regs
}

func f64(u uint64) float64 { return math.Float64frombits(u) }
func u64(f float64) uint64 { return math.Float64bits(f) }

// exec runs the program over w lanes. Register i, lane l lives at i*w + l.
func (it *Interpreter) exec(regs []uint64, w int) {
	for _, ins := range it.code {
		d := regs[ins.dst*w : ins.dst*w+w]
		a := regs[ins.a*w : ins.a*w+w]
		b := regs[ins.b*w : ins.b*w+w]
		c := regs[ins.c*w : ins.c*w+w]
		switch ins.code {
		case opInput:
		case opAdd:
			for l := range d {
				d[l] = u64(f64(a[l]) + f64(b[l]))
			}
		case opSub:
			for l := range d {
				d[l] = u64(f64(a[l]) - f64(b[l]))
			}
		case opMul:
			for l := range d {
				d[l] = u64(float64(f64(a[l]) * f64(b[l])))
			}
		case opDiv:
			for l := range d {
				d[l] = u64(f64(a[l]) / f64(b[l]))
			}
		case opMulAdd:
			for l := range d {
				d[l] = u64(math.FMA(f64(a[l]), f64(b[l]), f64(c[l])))
			}
		case opNeg:
			for l := range d {
				d[l] = a[l] ^ 1<<63
			}
		case opAbs:
			for l := range d {
				d[l] = a[l] &^ (1 << 63)
			}
		case opRoundToEven:
			for l := range d {
				d[l] = u64(math.RoundToEven(f64(a[l])))
			}
		case opConvertToInt:
			for l := range d {
				d[l] = uint64(int64(f64(a[l])))
			}
		case opConvertToFloat:
			for l := range d {
				d[l] = u64(float64(int64(a[l])))
			}
		case opBits:
			copy(d, a)
		case opAddI:
			for l := range d {
				d[l] = a[l] + b[l]
			}
		case opSubI:
			for l := range d {
				d[l] = a[l] - b[l]
			}
		case opAndI:
			for l := range d {
				d[l] = a[l] & b[l]
			}
		case opOrI:
			for l := range d {
				d[l] = a[l] | b[l]
			}
		case opXorI:
			for l := range d {
				d[l] = a[l] ^ b[l]
			}
		case opShiftLeft:
			for l := range d {
				d[l] = a[l] << uint(ins.imm)
			}
		case opShiftRight:
			for l := range d {
				d[l] = uint64(int64(a[l]) >> uint(ins.imm))
			}
		case opGreater:
			for l := range d {
				d[l] = uint64(int64(u64(f64(b[l])-f64(a[l]))) >> 63)
			}
		case opIfThenElse:
			for l := range d {
				d[l] = a[l]&b[l] | ^a[l]&c[l]
			}
		}
	}
}
