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

package fit

import (
	"math"

	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

const (
	maxUlpSteps  = 512
	seidelRounds = 4
)

func exact(p *Polynomial, a Anchor) bool {
	return a.Finish(p.Eval(a.R)) == a.Want
}

// admissible lists the coefficient indices that may move to satisfy a, by
// ascending power.
func admissible(p *Polynomial, a Anchor, claimed map[int]bool) []int {
	deg := p.Degree()
	var out []int
	for k := 0; k <= deg; k++ {
		switch p.Parity {
		case target.SymmetryEven:
			if k%2 != 0 {
				continue
			}
		case target.SymmetryOdd:
			if k%2 != 1 {
				continue
			}
		}
		if a.R == 0 && k != 0 {
			continue
		}
		if idx := deg - k; !claimed[idx] {
			out = append(out, idx)
		}
	}
	return out
}

// snap forces every anchor to its exact value, giving each anchor its own
// coefficient and sweeping until all hold at once.
func snap(pr *Problem, p *Polynomial) error {
	if len(pr.Anchors) == 0 {
		return nil
	}
	owner := make([]int, len(pr.Anchors))
	for i := range owner {
		owner[i] = -1
	}
	claimed := map[int]bool{}

	fail := func(a Anchor, msg string) error {
		return synerr.New(synerr.KindNumericInstability, stage, pr.Name,
			"anchor at %g (reduced %g) cannot reach %v: %s", a.X, a.R, a.Want, msg).
			WithDomain(pr.Lo, pr.Hi)
	}

	for round := 0; round < seidelRounds; round++ {
		moved := false
		for i, a := range pr.Anchors {
			if exact(p, a) {
				continue
			}
			moved = true
			if owner[i] >= 0 {
				if !nudge(p, a, owner[i]) {
					return fail(a, "coefficient walk exhausted")
				}
				continue
			}
			for _, idx := range admissible(p, a, claimed) {
				if nudge(p, a, idx) {
					owner[i] = idx
					claimed[idx] = true
					break
				}
			}
			if owner[i] < 0 {
				return fail(a, "no free coefficient")
			}
		}
		if !moved {
			break
		}
	}
	p.Anchors = p.Anchors[:0]
	for _, a := range pr.Anchors {
		if !exact(p, a) {
			return fail(a, "anchors interfere")
		}
		p.Anchors = append(p.Anchors, a.R)
	}
	return nil
}

// nudge moves coefficient idx until a holds exactly: an analytic correction
// first, then single-ulp steps. The coefficient is restored on failure.
func nudge(p *Polynomial, a Anchor, idx int) bool {
	orig := p.Coeffs[idx]
	k := p.Degree() - idx
	rk := math.Pow(a.R, float64(k))
	slope := a.Finish(1) - a.Finish(0)
	if slope == 0 || math.IsNaN(slope) || rk == 0 || math.IsInf(rk, 0) {
		return false
	}

	pv := p.Eval(a.R)
	out := a.Finish(pv)
	need := pv + (a.Want-out)/slope
	if c := orig + (need-pv)/rk; !math.IsInf(c, 0) && !math.IsNaN(c) {
		p.Coeffs[idx] = c
	}

	sign := math.Copysign(1, slope*rk)
	last := 0.0
	for step := 0; step < maxUlpSteps; step++ {
		out = a.Finish(p.Eval(a.R))
		if out == a.Want {
			return true
		}
		dir := sign
		if out > a.Want {
			dir = -sign
		}
		if last != 0 && dir != last {
			break
		}
		last = dir
		p.Coeffs[idx] = math.Nextafter(p.Coeffs[idx], math.Inf(int(dir)))
	}
	p.Coeffs[idx] = orig
	return false
}
