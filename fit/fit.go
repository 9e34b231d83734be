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

// Package fit finds the float64 polynomial that approximates a residual
// function on the reduced interval to a requested tolerance.
//
// Candidates come from Newton divided differences at Chebyshev nodes,
// computed in extended precision. The degree escalates until the sampled
// error of the finished output is within tolerance. An optional Remez
// exchange refines each candidate toward the weighted minimax polynomial and
// anchors are snapped so chosen points evaluate to exact values.
package fit

import (
	"fmt"
	"math"
	"math/big"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

const stage = "fit"

// Precision is the working precision of the extended-precision steps.
const Precision uint = 256

// Mode selects the error metric.
type Mode int

const (
	Absolute Mode = iota
	Relative
)

// String returns a human-readable name for the Mode.
func (m Mode) String() string {
	switch m {
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "absolute" or "relative".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "absolute", "abs", "":
		return Absolute, nil
	case "relative", "rel":
		return Relative, nil
	}
	return Absolute, fmt.Errorf("fit: unknown error mode %q", s)
}

// Anchor asks that Finish(p(R)) equal Want exactly.
type Anchor struct {
	// X is the anchor in the original variable, for diagnostics.
	X float64

	R      float64
	Want   float64
	Finish func(p float64) float64
}

// Problem describes what to approximate.
type Problem struct {
	Name   string
	Lo, Hi float64

	// Parity of the residual. Even and odd residuals need an interval
	// symmetric about zero or starting at zero.
	Parity target.Symmetry

	// Residual is the function p approximates.
	Residual func(r float64) float64

	// ResidualPrecise, when set, replaces Residual at interpolation nodes.
	ResidualPrecise func(r *big.Float) *big.Float

	// Target is the correctly rounded final output at r, and Finish turns
	// p(r) into the final output. Finish must be affine in its second
	// argument.
	Target func(r float64) float64
	Finish func(r, p float64) float64

	// Exclude, when set, removes points from error measurement.
	Exclude func(r float64) bool

	Anchors []Anchor
}

// Options tunes Fit.
type Options struct {
	Tolerance float64
	Mode      Mode

	// MinDegree and MaxDegree bound the degree search.
	MinDegree int
	MaxDegree int

	// Refine runs Remez exchange on each candidate.
	Refine          bool
	RemezIterations int

	// GridSize is the number of intervals of the error measurement grid.
	GridSize int

	Logger log.Logger
}

const (
	defaultGridSize  = 4096
	defaultRemezIter = 8
)

func (o Options) withDefaults() Options {
	if o.GridSize <= 0 {
		o.GridSize = defaultGridSize
	}
	if o.RemezIterations <= 0 {
		o.RemezIterations = defaultRemezIter
	}
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	return o
}

// Fit escalates the degree until the tolerance is met.
func Fit(pr *Problem, opts Options) (*Polynomial, error) {
	opts = opts.withDefaults()
	if err := validate(pr, opts); err != nil {
		return nil, err
	}
	logger := log.With(opts.Logger, "stage", stage, "fn", pr.Name)

	s := newSampler(pr, opts)
	if len(s.r) == 0 {
		return nil, synerr.New(synerr.KindNumericInstability, stage, pr.Name,
			"no finite reference values on the interval").WithDomain(pr.Lo, pr.Hi)
	}

	var (
		bestErr = math.Inf(1)
		bestDeg = -1
	)
	for n := 1; degreeFor(n, pr.Parity) <= opts.MaxDegree; n++ {
		deg := degreeFor(n, pr.Parity)
		if deg < opts.MinDegree {
			continue
		}

		cand, err := newton(pr, n)
		if err != nil {
			return nil, err
		}
		s.measure(cand)
		if opts.Refine {
			if ref := remez(pr, s, cand, opts); ref != nil && s.metric(ref) < s.metric(cand) {
				cand = ref
			}
		}

		e := s.metric(cand)
		level.Debug(logger).Log("msg", "candidate", "degree", deg, "error", e, "refined", cand.Refined)
		if e < bestErr {
			bestErr, bestDeg = e, deg
		}
		if e <= opts.Tolerance {
			if err := snap(pr, cand); err != nil {
				return nil, err
			}
			s.measure(cand)
			if e = s.metric(cand); e <= opts.Tolerance {
				level.Debug(logger).Log("msg", "accepted", "degree", deg, "error", e, "anchors", len(cand.Anchors))
				return cand, nil
			}
			continue
		}
		if floor := s.roundoff(cand); floor > opts.Tolerance {
			return nil, synerr.New(synerr.KindNumericInstability, stage, pr.Name,
				"evaluation round-off alone reaches %.3g, above tolerance %g", floor, opts.Tolerance).
				WithDomain(pr.Lo, pr.Hi).WithFit(deg, e)
		}
	}
	return nil, synerr.New(synerr.KindToleranceUnreachable, stage, pr.Name,
		"%s tolerance %g not reached by degree %d", opts.Mode, opts.Tolerance, opts.MaxDegree).
		WithDomain(pr.Lo, pr.Hi).WithFit(bestDeg, bestErr)
}

func validate(pr *Problem, opts Options) error {
	bad := func(format string, args ...any) error {
		return synerr.New(synerr.KindInvalidInput, stage, pr.Name, format, args...).WithDomain(pr.Lo, pr.Hi)
	}
	switch {
	case pr.Residual == nil || pr.Target == nil || pr.Finish == nil:
		return bad("incomplete problem")
	case !(pr.Lo < pr.Hi) || math.IsInf(pr.Lo, 0) || math.IsInf(pr.Hi, 0):
		return bad("interval must be finite and non-empty")
	case !(opts.Tolerance > 0):
		return bad("tolerance must be positive, got %g", opts.Tolerance)
	case opts.MaxDegree < 0 || opts.MinDegree > opts.MaxDegree:
		return bad("degree bounds [%d, %d] are empty", opts.MinDegree, opts.MaxDegree)
	case opts.Mode != Absolute && opts.Mode != Relative:
		return bad("unknown mode %v", opts.Mode)
	}
	if pr.Parity == target.SymmetryEven || pr.Parity == target.SymmetryOdd {
		if pr.Lo != 0 && pr.Lo != -pr.Hi {
			return bad("%s fit needs an interval symmetric about 0 or starting at 0", pr.Parity)
		}
	}
	return nil
}

// sampler holds the dense measurement grid and its reference values.
type sampler struct {
	pr   *Problem
	mode Mode

	r     []float64 // grid points
	t     []float64 // reference outputs
	slope []float64 // d Finish / dp
	base  []float64 // Finish(r, 0)
}

func newSampler(pr *Problem, opts Options) *sampler {
	s := &sampler{pr: pr, mode: opts.Mode}
	add := func(r float64) {
		if pr.Exclude != nil && pr.Exclude(r) {
			return
		}
		t := pr.Target(r)
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return
		}
		b := pr.Finish(r, 0)
		a := pr.Finish(r, 1) - b
		s.r = append(s.r, r)
		s.t = append(s.t, t)
		s.slope = append(s.slope, a)
		s.base = append(s.base, b)
	}
	h := (pr.Hi - pr.Lo) / float64(opts.GridSize)
	for i := 0; i < opts.GridSize; i++ {
		add(pr.Lo + float64(i)*h)
	}
	add(pr.Hi)
	for _, a := range pr.Anchors {
		if a.R >= pr.Lo && a.R <= pr.Hi {
			add(a.R)
		}
	}
	return s
}

// measure records the sampled errors on p.
func (s *sampler) measure(p *Polynomial) {
	p.MaxAbsError, p.MaxRelError = 0, 0
	for i, r := range s.r {
		v := s.pr.Finish(r, p.Eval(r))
		abs, rel := pointError(v, s.t[i])
		p.MaxAbsError = math.Max(p.MaxAbsError, abs)
		p.MaxRelError = math.Max(p.MaxRelError, rel)
	}
}

func pointError(v, t float64) (abs, rel float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(1), math.Inf(1)
	}
	abs = math.Abs(v - t)
	switch {
	case t != 0:
		rel = abs / math.Abs(t)
	case v != 0:
		rel = math.Inf(1)
	}
	return abs, rel
}

// metric returns the error in the selected mode.
func (s *sampler) metric(p *Polynomial) float64 {
	if s.mode == Relative {
		return p.MaxRelError
	}
	return p.MaxAbsError
}

// weight converts an error in p at grid point i into the metric.
func (s *sampler) weight(i int) float64 {
	w := math.Abs(s.slope[i])
	if s.mode == Relative {
		w /= math.Abs(s.t[i])
	}
	return w
}

// cancellationLimit is the ratio of intermediate term size to output size
// beyond which evaluation is treated as catastrophic cancellation.
const cancellationLimit = 0x1p20

// roundoff bounds the metric contribution of one ulp of the largest
// intermediate term, over the grid points where the terms cancel beyond
// cancellationLimit. It is zero when no point cancels.
func (s *sampler) roundoff(p *Polynomial) float64 {
	worst := 0.0
	const eps = 0x1p-52
	for i, r := range s.r {
		if s.t[i] == 0 {
			continue
		}
		mag := magnitude(p.Coeffs, p.Parity, r) * math.Abs(s.slope[i])
		if mag < cancellationLimit*math.Abs(s.t[i]) {
			continue
		}
		w := s.weight(i)
		if math.IsInf(w, 0) || math.IsNaN(w) {
			continue
		}
		worst = math.Max(worst, eps*magnitude(p.Coeffs, p.Parity, r)*w)
	}
	return worst
}
