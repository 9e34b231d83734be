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

// Stats summarizes the schedule of an analyzed program.
type Stats struct {
	// Nodes counts non-constant nodes.
	Nodes int

	// Depth is the critical path length in nodes.
	Depth int

	// MaxWidth is the largest number of independent nodes on one level.
	MaxWidth int

	// ByStage counts non-constant nodes per stage.
	ByStage map[Stage]int
}

// Analyze computes producer/consumer links and dependency levels. It can be
// rerun after the program changes.
func Analyze(p *Program) Stats {
	for _, n := range p.Nodes {
		n.Producers = n.Producers[:0]
		n.Consumers = n.Consumers[:0]
		n.Level = 0
	}
	linkProducersConsumers(p)

	st := Stats{ByStage: make(map[Stage]int)}
	width := make(map[int]int)
	for _, n := range p.Nodes {
		if n.Kind == OpKindConst || n.Kind == OpKindInput {
			continue
		}
		lvl := 0
		for _, in := range n.Producers {
			lvl = max(lvl, in.Level)
		}
		n.Level = lvl + 1
		width[n.Level]++
		st.Nodes++
		st.ByStage[n.Stage]++
		st.Depth = max(st.Depth, n.Level)
	}
	for _, w := range width {
		st.MaxWidth = max(st.MaxWidth, w)
	}
	return st
}

// linkProducersConsumers establishes producer-consumer relationships.
func linkProducersConsumers(p *Program) {
	for _, node := range p.Nodes {
		for _, input := range node.Inputs {
			if input != nil {
				input.Consumers = appendUnique(input.Consumers, node)
				node.Producers = appendUnique(node.Producers, input)
			}
		}
	}
}

// appendUnique appends a node to a slice if not already present.
func appendUnique(slice []*Node, node *Node) []*Node {
	for _, n := range slice {
		if n.ID == node.ID {
			return slice
		}
	}
	return append(slice, node)
}

// EliminateDead removes nodes the output does not depend on and returns
// how many were removed. The input node is always kept.
func EliminateDead(p *Program) int {
	if p.Output == nil {
		return 0
	}
	live := map[int]bool{p.Input.ID: true, p.Output.ID: true}
	for i := len(p.Nodes) - 1; i >= 0; i-- {
		if n := p.Nodes[i]; live[n.ID] {
			for _, in := range n.Inputs {
				live[in.ID] = true
			}
		}
	}

	kept := p.Nodes[:0]
	removed := 0
	for _, n := range p.Nodes {
		if live[n.ID] {
			kept = append(kept, n)
			continue
		}
		removed++
		if n.Kind == OpKindConst {
			key := floatKey(n.Value)
			if n.Type == Int64 {
				key = constKey{typ: Int64, bits: uint64(n.Imm)}
			}
			delete(p.consts, key)
		}
	}
	p.Nodes = kept
	return removed
}

// Levels groups the non-constant nodes by dependency level, in program
// order within a level.
func Levels(p *Program) [][]*Node {
	var out [][]*Node
	for _, n := range p.Nodes {
		if n.Level == 0 {
			continue
		}
		for len(out) < n.Level {
			out = append(out, nil)
		}
		out[n.Level-1] = append(out[n.Level-1], n)
	}
	return out
}
