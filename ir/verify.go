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
	"errors"
	"fmt"
)

var (
	// ErrBranch reports control flow in a program.
	ErrBranch = errors.New("ir: program contains a branch")

	// ErrMisplacedSelect reports a compare or select outside the reduction
	// and reconstruction stages.
	ErrMisplacedSelect = errors.New("ir: select outside reduction or reconstruction")

	// ErrMalformed reports a structural problem: bad order, bad types or a
	// missing output.
	ErrMalformed = errors.New("ir: malformed program")
)

// Verify checks that p is a well-formed branch-free program.
func Verify(p *Program) error {
	if p.err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, p.err)
	}
	if p.Output == nil {
		return fmt.Errorf("%w: no output", ErrMalformed)
	}
	if len(p.Nodes) == 0 || p.Nodes[0] != p.Input {
		return fmt.Errorf("%w: input must come first", ErrMalformed)
	}

	seen := make(map[int]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.Kind == OpKindBranch || Classify(n.Op) == OpKindBranch {
			return fmt.Errorf("%w: node %d (%s)", ErrBranch, n.ID, n.Op)
		}
		if Classify(n.Op) != n.Kind {
			return fmt.Errorf("%w: node %d op %s has kind %s", ErrMalformed, n.ID, n.Op, n.Kind)
		}
		if n.Kind == OpKindSelect || n.Kind == OpKindCompare {
			if n.Stage != StageReduce && n.Stage != StageReconstruct {
				return fmt.Errorf("%w: node %d (%s) in %s stage", ErrMisplacedSelect, n.ID, n.Op, n.Stage)
			}
		}
		for i, in := range n.Inputs {
			if in == nil || !seen[in.ID] {
				return fmt.Errorf("%w: node %d operand %d is not defined before use", ErrMalformed, n.ID, i)
			}
		}
		if sig, ok := signatures[n.Op]; ok {
			if err := checkInputs(n.Op, sig.inputs, n.Inputs); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
		seen[n.ID] = true
	}
	if !seen[p.Output.ID] {
		return fmt.Errorf("%w: output node %d not in program", ErrMalformed, p.Output.ID)
	}
	return nil
}
