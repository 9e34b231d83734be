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

// Package ir is the straight-line program representation of a derived
// evaluator.
//
// A Program is a list of typed nodes in dependency order. Every node reads
// only nodes before it, so the list is already a schedule; Analyze adds
// producer/consumer links and a dependency level per node so that a
// consumer can interleave independent nodes. Programs never branch: the
// only data-dependent choice is the IfThenElse blend on a mask.
package ir

import (
	"fmt"
	"math"
	"strings"
)

// OpKind categorizes operations.
type OpKind int

const (
	// OpKindInput is the evaluator argument.
	OpKindInput OpKind = iota

	// OpKindConst is a float64 or int64 constant.
	OpKindConst

	// OpKindArith is float64 arithmetic (Add, MulAdd, RoundToEven, ...).
	OpKindArith

	// OpKindConvert changes lane type (ConvertToInt, BitsFromFloat, ...).
	OpKindConvert

	// OpKindInteger is int64 arithmetic and bit manipulation.
	OpKindInteger

	// OpKindCompare produces a mask (all ones or all zeros per lane).
	OpKindCompare

	// OpKindSelect blends two values under a mask.
	OpKindSelect

	// OpKindBranch is control flow. Emitters never produce it; Verify
	// rejects programs containing it.
	OpKindBranch
)

// String returns a human-readable name for the OpKind.
func (k OpKind) String() string {
	switch k {
	case OpKindInput:
		return "Input"
	case OpKindConst:
		return "Const"
	case OpKindArith:
		return "Arith"
	case OpKindConvert:
		return "Convert"
	case OpKindInteger:
		return "Integer"
	case OpKindCompare:
		return "Compare"
	case OpKindSelect:
		return "Select"
	case OpKindBranch:
		return "Branch"
	default:
		return fmt.Sprintf("OpKind(%d)", k)
	}
}

// Type is the lane type of a node's value.
type Type int

const (
	Float64 Type = iota
	Int64
	Mask
)

// String returns a human-readable name for the Type.
func (t Type) String() string {
	switch t {
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	case Mask:
		return "mask"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// Stage tags which pipeline stage a node implements.
type Stage int

const (
	StageReduce Stage = iota
	StagePole
	StagePoly
	StageReconstruct
)

// String returns a human-readable name for the Stage.
func (s Stage) String() string {
	switch s {
	case StageReduce:
		return "reduce"
	case StagePole:
		return "pole"
	case StagePoly:
		return "poly"
	case StageReconstruct:
		return "reconstruct"
	default:
		return fmt.Sprintf("Stage(%d)", s)
	}
}

// Operation names.
const (
	OpInput = "Input"
	OpConst = "Const"

	OpAdd         = "Add"
	OpSub         = "Sub"
	OpMul         = "Mul"
	OpDiv         = "Div"
	OpMulAdd      = "MulAdd"
	OpNeg         = "Neg"
	OpAbs         = "Abs"
	OpRoundToEven = "RoundToEven"

	OpConvertToInt   = "ConvertToInt"
	OpConvertToFloat = "ConvertToFloat"
	OpBitsFromFloat  = "BitsFromFloat"
	OpBitsToFloat    = "BitsToFloat"

	OpAddI       = "AddI"
	OpSubI       = "SubI"
	OpAndI       = "AndI"
	OpOrI        = "OrI"
	OpXorI       = "XorI"
	OpShiftLeft  = "ShiftLeft"
	OpShiftRight = "ShiftRight"

	OpGreater    = "Greater"
	OpIfThenElse = "IfThenElse"
)

// signature describes the operand and result types of an operation. Select
// is polymorphic: its value operands and result share one type.
type signature struct {
	kind   OpKind
	inputs []Type
	result Type
}

var (
	ff         = []Type{Float64, Float64}
	ii         = []Type{Int64, Int64}
	signatures = map[string]signature{
		OpAdd:         {OpKindArith, ff, Float64},
		OpSub:         {OpKindArith, ff, Float64},
		OpMul:         {OpKindArith, ff, Float64},
		OpDiv:         {OpKindArith, ff, Float64},
		OpMulAdd:      {OpKindArith, []Type{Float64, Float64, Float64}, Float64},
		OpNeg:         {OpKindArith, []Type{Float64}, Float64},
		OpAbs:         {OpKindArith, []Type{Float64}, Float64},
		OpRoundToEven: {OpKindArith, []Type{Float64}, Float64},

		OpConvertToInt:   {OpKindConvert, []Type{Float64}, Int64},
		OpConvertToFloat: {OpKindConvert, []Type{Int64}, Float64},
		OpBitsFromFloat:  {OpKindConvert, []Type{Float64}, Int64},
		OpBitsToFloat:    {OpKindConvert, []Type{Int64}, Float64},

		OpAddI:       {OpKindInteger, ii, Int64},
		OpSubI:       {OpKindInteger, ii, Int64},
		OpAndI:       {OpKindInteger, ii, Int64},
		OpOrI:        {OpKindInteger, ii, Int64},
		OpXorI:       {OpKindInteger, ii, Int64},
		OpShiftLeft:  {OpKindInteger, []Type{Int64}, Int64},
		OpShiftRight: {OpKindInteger, []Type{Int64}, Int64},

		OpGreater: {OpKindCompare, ff, Mask},
	}
)

// Classify returns the OpKind of an operation name. Unknown names classify
// as OpKindBranch so that Verify rejects them.
func Classify(op string) OpKind {
	switch op {
	case OpInput:
		return OpKindInput
	case OpConst:
		return OpKindConst
	case OpIfThenElse:
		return OpKindSelect
	}
	if s, ok := signatures[op]; ok {
		return s.kind
	}
	return OpKindBranch
}

// Node is one operation in a Program.
type Node struct {
	// ID is unique within the program.
	ID int

	Kind  OpKind
	Op    string
	Type  Type
	Stage Stage

	// Inputs are the operand nodes, in operand order.
	Inputs []*Node

	// Value is the constant of a float64 Const node.
	Value float64

	// Imm is the constant of an int64 Const node or the shift count of a
	// shift.
	Imm int64

	// Name is an optional label ("r", "k") used by lowerings.
	Name string

	// ---- Data flow (populated by Analyze) ----

	// Producers are the distinct nodes read by this node.
	Producers []*Node

	// Consumers are the nodes that read this node.
	Consumers []*Node

	// Level is the length of the longest dependency chain from the input
	// to this node. Nodes with equal levels are independent.
	Level int
}

// IsConst reports whether n is a constant.
func (n *Node) IsConst() bool {
	return n.Kind == OpKindConst
}

// String returns a debug string representation of the Node.
func (n *Node) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Node{ID:%d Op:%s Type:%s Stage:%s", n.ID, n.Op, n.Type, n.Stage)
	switch {
	case n.Kind == OpKindConst && n.Type == Float64:
		fmt.Fprintf(&sb, " Value:%v", n.Value)
	case n.Kind == OpKindConst, n.Op == OpShiftLeft, n.Op == OpShiftRight:
		fmt.Fprintf(&sb, " Imm:%d", n.Imm)
	}
	if len(n.Inputs) > 0 {
		ids := make([]int, len(n.Inputs))
		for i, in := range n.Inputs {
			ids[i] = in.ID
		}
		fmt.Fprintf(&sb, " In:%v", ids)
	}
	if n.Name != "" {
		fmt.Fprintf(&sb, " Name:%s", n.Name)
	}
	sb.WriteString("}")
	return sb.String()
}

type constKey struct {
	typ  Type
	bits uint64
}

// Program is a straight-line evaluator: one float64 input, one float64
// output.
type Program struct {
	Name   string
	Nodes  []*Node
	Input  *Node
	Output *Node

	nextID int
	stage  Stage
	consts map[constKey]*Node
	err    error
}

// NewProgram creates a program with its input node.
func NewProgram(name string) *Program {
	p := &Program{Name: name, consts: make(map[constKey]*Node)}
	p.Input = p.add(&Node{Kind: OpKindInput, Op: OpInput, Type: Float64, Name: "x"})
	return p
}

// NewNodeID allocates and returns a new unique node ID.
func (p *Program) NewNodeID() int {
	id := p.nextID
	p.nextID++
	return id
}

func (p *Program) add(n *Node) *Node {
	n.ID = p.NewNodeID()
	n.Stage = p.stage
	p.Nodes = append(p.Nodes, n)
	return n
}

// Node returns the node with the given ID, or nil.
func (p *Program) Node(id int) *Node {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Err returns the first construction error.
func (p *Program) Err() error {
	return p.err
}

// String returns a debug string representation of the Program.
func (p *Program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Program{Name:%s Nodes:%d", p.Name, len(p.Nodes))
	if p.Output != nil {
		fmt.Fprintf(&sb, " Out:%d", p.Output.ID)
	}
	sb.WriteString("}")
	return sb.String()
}

// Dump prints one node per line.
func (p *Program) Dump() string {
	var sb strings.Builder
	sb.WriteString(p.String())
	sb.WriteByte('\n')
	for _, n := range p.Nodes {
		fmt.Fprintf(&sb, "  %s\n", n)
	}
	return sb.String()
}

func floatKey(v float64) constKey {
	return constKey{typ: Float64, bits: math.Float64bits(v)}
}
