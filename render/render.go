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

// Package render lowers an ir.Program to portable Go source.
//
// The generated function performs the program's operations one statement
// per node. Products are written float64(a * b) so the compiler cannot fuse
// them into FMAs, and masks use the sign of b - a, which keeps the generated
// code bit-identical to ir.Interpreter.
package render

import (
	"bytes"
	"fmt"
	"go/token"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/tools/imports"

	"github.com/ajroetker/doctorsyn/ir"
)

// Options controls the generated file.
type Options struct {
	// Package is the package clause; defaults to "approx".
	Package string

	// Name is the function name; defaults to the program name, title-cased.
	Name string

	// Doc is an optional first line for the function comment.
	Doc string

	// NoSlice omits the slice variant.
	NoSlice bool
}

var title = cases.Title(language.English, cases.NoLower)

// Identifier converts a function name such as "exp2" or "log-gamma" to an
// exported Go identifier.
func Identifier(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(title.String(p))
	}
	id := sb.String()
	if id == "" || unicode.IsDigit(rune(id[0])) {
		id = "F" + id
	}
	return id
}

// Go renders prog as a formatted Go source file.
func Go(prog *ir.Program, opts Options) ([]byte, error) {
	if err := ir.Verify(prog); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if opts.Package == "" {
		opts.Package = "approx"
	}
	if !token.IsIdentifier(opts.Package) {
		return nil, fmt.Errorf("render: invalid package name %q", opts.Package)
	}
	if opts.Name == "" {
		opts.Name = Identifier(prog.Name)
	}
	if !token.IsIdentifier(opts.Name) {
		return nil, fmt.Errorf("render: invalid function name %q", opts.Name)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by doctorsyn. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", opts.Package)
	fmt.Fprintf(&buf, "import \"math\"\n\n")

	doc := opts.Doc
	if doc == "" {
		doc = fmt.Sprintf("%s approximates %s.", opts.Name, prog.Name)
	}
	fmt.Fprintf(&buf, "// %s\n", doc)
	fmt.Fprintf(&buf, "func %s(x float64) float64 {\n", opts.Name)
	body(&buf, prog)
	fmt.Fprintf(&buf, "}\n")

	if !opts.NoSlice {
		fmt.Fprintf(&buf, "\n// %sSlice applies %s to each element of xs, writing to out.\n", opts.Name, opts.Name)
		fmt.Fprintf(&buf, "func %sSlice(xs, out []float64) {\n", opts.Name)
		fmt.Fprintf(&buf, "\tn := min(len(xs), len(out))\n")
		fmt.Fprintf(&buf, "\tfor i := 0; i < n; i++ {\n")
		fmt.Fprintf(&buf, "\t\tout[i] = %s(xs[i])\n", opts.Name)
		fmt.Fprintf(&buf, "\t}\n")
		fmt.Fprintf(&buf, "}\n")
	}

	out, err := imports.Process(opts.Name+".go", buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("render: format: %w", err)
	}
	return out, nil
}

type namer struct {
	names map[int]string
	count map[ir.Type]int
}

var prefixes = map[ir.Type]string{ir.Float64: "v", ir.Int64: "i", ir.Mask: "m"}

func (nm *namer) declare(n *ir.Node) string {
	nm.count[n.Type]++
	name := fmt.Sprintf("%s%d", prefixes[n.Type], nm.count[n.Type])
	nm.names[n.ID] = name
	return name
}

func body(buf *bytes.Buffer, prog *ir.Program) {
	nm := &namer{names: map[int]string{prog.Input.ID: "x"}, count: make(map[ir.Type]int)}

	// An operation on constants alone would be folded exactly by the
	// compiler, so one of its operands is bound to a variable first.
	for _, n := range prog.Nodes {
		if n.IsConst() || len(n.Inputs) == 0 || !allConst(n.Inputs) {
			continue
		}
		c := n.Inputs[0]
		if _, ok := nm.names[c.ID]; ok {
			continue
		}
		name := fmt.Sprintf("c%d", len(nm.names))
		nm.names[c.ID] = name
		fmt.Fprintf(buf, "\t%s := %s\n", name, typedLiteral(c))
	}

	stage := ir.Stage(-1)
	for _, n := range prog.Nodes {
		if n.IsConst() || n.Kind == ir.OpKindInput {
			continue
		}
		if n.Stage != stage {
			stage = n.Stage
			fmt.Fprintf(buf, "\n\t// %s\n", stage)
		}
		expr := expression(n, nm)
		fmt.Fprintf(buf, "\t%s := %s\n", nm.declare(n), expr)
	}
	fmt.Fprintf(buf, "\treturn %s\n", nm.operand(prog.Output))
}

func allConst(ns []*ir.Node) bool {
	for _, n := range ns {
		if !n.IsConst() {
			return false
		}
	}
	return true
}

func (nm *namer) operand(n *ir.Node) string {
	if name, ok := nm.names[n.ID]; ok {
		return name
	}
	lit := literal(n)
	if strings.HasPrefix(lit, "-") {
		return "(" + lit + ")"
	}
	return lit
}

// literal spells a constant. Values a decimal literal cannot represent go
// through their bit pattern.
func literal(n *ir.Node) string {
	if n.Type != ir.Float64 {
		return strconv.FormatInt(n.Imm, 10)
	}
	v := n.Value
	if math.IsNaN(v) || math.IsInf(v, 0) || (v == 0 && math.Signbit(v)) {
		return fmt.Sprintf("math.Float64frombits(%#x)", math.Float64bits(v))
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func typedLiteral(n *ir.Node) string {
	if n.Type == ir.Float64 {
		return "float64(" + literal(n) + ")"
	}
	return "int64(" + literal(n) + ")"
}

func expression(n *ir.Node, nm *namer) string {
	in := make([]string, len(n.Inputs))
	for i, op := range n.Inputs {
		in[i] = nm.operand(op)
	}
	switch n.Op {
	case ir.OpAdd, ir.OpAddI:
		return in[0] + " + " + in[1]
	case ir.OpSub, ir.OpSubI:
		return in[0] + " - " + in[1]
	case ir.OpMul:
		return "float64(" + in[0] + " * " + in[1] + ")"
	case ir.OpDiv:
		return in[0] + " / " + in[1]
	case ir.OpMulAdd:
		return fmt.Sprintf("math.FMA(%s, %s, %s)", in[0], in[1], in[2])
	case ir.OpNeg:
		return "-" + in[0]
	case ir.OpAbs:
		return "math.Abs(" + in[0] + ")"
	case ir.OpRoundToEven:
		return "math.RoundToEven(" + in[0] + ")"
	case ir.OpConvertToInt:
		return "int64(" + in[0] + ")"
	case ir.OpConvertToFloat:
		return "float64(" + in[0] + ")"
	case ir.OpBitsFromFloat:
		return "int64(math.Float64bits(" + in[0] + "))"
	case ir.OpBitsToFloat:
		return "math.Float64frombits(uint64(" + in[0] + "))"
	case ir.OpAndI:
		return in[0] + " & " + in[1]
	case ir.OpOrI:
		return in[0] + " | " + in[1]
	case ir.OpXorI:
		return in[0] + " ^ " + in[1]
	case ir.OpShiftLeft:
		return fmt.Sprintf("%s << %d", in[0], n.Imm)
	case ir.OpShiftRight:
		return fmt.Sprintf("%s >> %d", in[0], n.Imm)
	case ir.OpGreater:
		return fmt.Sprintf("int64(math.Float64bits(%s-%s)) >> 63", in[1], in[0])
	case ir.OpIfThenElse:
		m, a, b := in[0], in[1], in[2]
		if n.Type == ir.Int64 {
			return fmt.Sprintf("%s&%s | ^%s&%s", m, a, m, b)
		}
		return fmt.Sprintf("math.Float64frombits(uint64(%s&int64(math.Float64bits(%s)) | ^%s&int64(math.Float64bits(%s))))", m, a, m, b)
	}
	return "/* unsupported " + n.Op + " */"
}
