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

// Package doctorsyn derives branch-free polynomial evaluators for functions
// of one real variable.
//
// Derive runs the pipeline
//
//	analyze → reduce → pole → fit → recon → emit
//
// and returns an Evaluator: the reduction, the eliminated poles, the fitted
// polynomial and the emitted ir.Program, with the accuracy the fit reached.
// Every stage fails fast with a *synerr.Error.
//
// Usage:
//
//	ev, err := doctorsyn.Derive(target.Sin(), target.Closed(-10, 10), doctorsyn.Options{
//	    Tolerance: 1e-7,
//	    MaxDegree: 12,
//	})
//	if err != nil {
//	    return err
//	}
//	defer ev.Close()
//	y := ev.Eval(1.25)
package doctorsyn

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/doctorsyn/analyze"
	"github.com/ajroetker/doctorsyn/emit"
	"github.com/ajroetker/doctorsyn/fit"
	"github.com/ajroetker/doctorsyn/internal/cpuinfo"
	"github.com/ajroetker/doctorsyn/internal/logging"
	"github.com/ajroetker/doctorsyn/internal/workerpool"
	"github.com/ajroetker/doctorsyn/ir"
	"github.com/ajroetker/doctorsyn/pole"
	"github.com/ajroetker/doctorsyn/recon"
	"github.com/ajroetker/doctorsyn/reduce"
	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

// Defaults applied by Derive to zero-valued options.
const (
	DefaultTolerance = 1e-10
	DefaultMaxDegree = 16

	// parallelMin is the slice length from which EvalSlice uses the pool.
	parallelMin = 1 << 14
)

// Options configures a derivation.
type Options struct {
	Tolerance float64
	Mode      fit.Mode

	MinDegree int
	MaxDegree int

	// Refine runs Remez exchange on every candidate.
	Refine bool

	// Rule forces a reduction; RuleAuto picks one from the function.
	Rule            reduce.Rule
	MaxReducedWidth float64

	PolePadding int

	// Anchors are points of the region of interest where the evaluator must
	// be exact. When empty, the function's default anchors inside the region
	// are used unless NoAnchors is set.
	Anchors   []float64
	NoAnchors bool

	// Lanes is the batch width of the interpreter; 0 uses the detected
	// vector width.
	Lanes int

	// Workers bounds the pool EvalSlice uses; 0 means GOMAXPROCS.
	Workers int

	Logger log.Logger
}

func (o Options) withDefaults() Options {
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxDegree == 0 {
		o.MaxDegree = DefaultMaxDegree
	}
	if o.Lanes <= 0 {
		o.Lanes = cpuinfo.Lanes()
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Evaluator is a derived approximation.
type Evaluator struct {
	Function *target.Function
	ROI      target.Interval
	Mode     fit.Mode

	Analysis *analyze.Analysis
	Domain   *reduce.Domain
	Pole     *pole.Polynomial
	Residual *pole.Residual
	Poly     *fit.Polynomial
	Program  *ir.Program
	Stats    ir.Stats

	interp   *ir.Interpreter
	workers  int
	poolOnce sync.Once
	pool     *workerpool.Pool
}

// Derive runs the full pipeline for fn over roi.
func Derive(fn *target.Function, roi target.Interval, opts Options) (*Evaluator, error) {
	opts = opts.withDefaults()
	if fn == nil {
		return nil, synerr.New(synerr.KindInvalidInput, "derive", "", "nil function")
	}
	logger := log.With(opts.Logger, "fn", fn.Name)

	a, err := analyze.Analyze(fn, roi)
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log("stage", "analyze", "roi", roi, "region", a.Region, "singularities", len(a.Singularities), "symmetry", a.Symmetry)

	d, err := reduce.Reduce(a, reduce.Options{Prefer: opts.Rule, MaxReducedWidth: opts.MaxReducedWidth})
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log("stage", "reduce", "rule", d.Rule, "lo", d.Lo, "hi", d.Hi, "parity", d.Parity, "kmin", d.KMin, "kmax", d.KMax)

	p, g, err := pole.Eliminate(fn, d, pole.Options{Padding: opts.PolePadding})
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log("stage", "pole", "poles", p.Poles.Degree(), "zeros", p.Zeros.Degree(), "lost_bits", p.LostBits, "residual_parity", g.Parity)

	pr, err := problem(fn, roi, d, p, g, opts)
	if err != nil {
		return nil, err
	}
	poly, err := fit.Fit(pr, fit.Options{
		Tolerance: opts.Tolerance,
		Mode:      opts.Mode,
		MinDegree: opts.MinDegree,
		MaxDegree: opts.MaxDegree,
		Refine:    opts.Refine,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log("stage", "fit", "degree", poly.Degree(), "abs_error", poly.MaxAbsError, "rel_error", poly.MaxRelError, "refined", poly.Refined)

	prog, err := emit.Emit(fn.Name, d, p, poly)
	if err != nil {
		return nil, err
	}
	interp, err := ir.NewInterpreter(prog, opts.Lanes)
	if err != nil {
		return nil, synerr.New(synerr.KindInvalidInput, "emit", fn.Name, "uninterpretable evaluator").Wrap(err)
	}
	st := ir.Analyze(prog)
	level.Debug(logger).Log("stage", "emit", "nodes", st.Nodes, "depth", st.Depth, "width", st.MaxWidth, "lanes", opts.Lanes)

	return &Evaluator{
		Function: fn,
		ROI:      roi,
		Mode:     opts.Mode,
		Analysis: a,
		Domain:   d,
		Pole:     p,
		Residual: g,
		Poly:     poly,
		Program:  prog,
		Stats:    st,
		interp:   interp,
		workers:  opts.Workers,
	}, nil
}

// problem assembles the fit on the canonical copy of the reduced interval.
func problem(fn *target.Function, roi target.Interval, d *reduce.Domain, p *pole.Polynomial, g *pole.Residual, opts Options) (*fit.Problem, error) {
	pr := &fit.Problem{
		Name:     fn.Name,
		Lo:       d.Lo,
		Hi:       d.Hi,
		Parity:   g.Parity,
		Residual: g.Eval,
		Target:   func(r float64) float64 { return fn.At(d.Canonical(r), target.DefaultPrec) },
		Finish:   recon.Canonical(d, p),
		Exclude:  p.Guarded,
	}
	if g.HasPrecise() {
		pr.ResidualPrecise = g.EvalPrecise
	}

	anchors := opts.Anchors
	explicit := len(anchors) > 0
	if !explicit && !opts.NoAnchors {
		anchors = fn.Anchors
	}
	closed := target.Closed(roi.Lo, roi.Hi)
	seen := make(map[float64]bool)
	for _, x := range anchors {
		if !closed.Contains(x) {
			if explicit {
				return nil, synerr.New(synerr.KindInvalidInput, "derive", fn.Name,
					"anchor %g outside the region of interest %v", x, roi).WithDomain(roi.Lo, roi.Hi)
			}
			continue
		}
		r, side := d.Forward(x)
		if seen[r] || p.Guarded(r) {
			continue
		}
		seen[r] = true
		pr.Anchors = append(pr.Anchors, fit.Anchor{
			X:      x,
			R:      r,
			Want:   fn.At(x, target.DefaultPrec),
			Finish: recon.Finisher(d, p, r, side),
		})
	}
	return pr, nil
}

// Eval evaluates the emitted program at x.
func (e *Evaluator) Eval(x float64) float64 {
	return e.interp.Eval(x)
}

// Reference evaluates the scalar reference path. It agrees with Eval bit for
// bit.
func (e *Evaluator) Reference(x float64) float64 {
	return recon.Evaluate(e.Domain, e.Pole, e.Poly, x)
}

// Lanes returns the interpreter batch width.
func (e *Evaluator) Lanes() int {
	return e.interp.Lanes
}

// EvalSlice evaluates xs into out, in lane batches, splitting large slices
// across the evaluator's worker pool. It evaluates min(len(xs), len(out))
// values.
func (e *Evaluator) EvalSlice(xs, out []float64) {
	n := min(len(xs), len(out))
	if n < parallelMin {
		e.interp.EvalBatch(xs[:n], out[:n])
		return
	}
	e.poolOnce.Do(func() { e.pool = workerpool.New(e.workers) })
	if e.pool == nil {
		e.interp.EvalBatch(xs[:n], out[:n])
		return
	}
	e.pool.ParallelFor(n, e.interp.Lanes, func(start, end int) {
		e.interp.EvalBatch(xs[start:end], out[start:end])
	})
}

// Close releases the worker pool, if one was started. The evaluator stays
// usable and evaluates on the caller's goroutine.
func (e *Evaluator) Close() {
	e.poolOnce.Do(func() {})
	if e.pool != nil {
		e.pool.Close()
	}
}

// Job is one derivation for DeriveAll.
type Job struct {
	Function *target.Function
	ROI      target.Interval
	Options  Options
}

// DeriveAll derives independent jobs concurrently, at most workers at a time
// (unbounded when workers <= 0). It returns the evaluators in job order, or
// the first error; remaining jobs are skipped once one fails or ctx is done.
func DeriveAll(ctx context.Context, jobs []Job, workers int) ([]*Evaluator, error) {
	out := make([]*Evaluator, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ev, err := Derive(job.Function, job.ROI, job.Options)
			if err != nil {
				return fmt.Errorf("job %d: %w", i, err)
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, ev := range out {
			if ev != nil {
				ev.Close()
			}
		}
		return nil, err
	}
	return out, nil
}

// Report summarizes an evaluator.
type Report struct {
	Function    string    `json:"function"`
	Lo          float64   `json:"lo"`
	Hi          float64   `json:"hi"`
	Rule        string    `json:"rule"`
	ReducedLo   float64   `json:"reduced_lo"`
	ReducedHi   float64   `json:"reduced_hi"`
	Poles       []float64 `json:"poles,omitempty"`
	Zeros       []float64 `json:"zeros,omitempty"`
	Degree      int       `json:"degree"`
	Parity      string    `json:"parity"`
	Coeffs      []float64 `json:"coeffs"`
	Mode        string    `json:"mode"`
	MaxAbsError float64   `json:"max_abs_error"`
	MaxRelError float64   `json:"max_rel_error"`
	Refined     bool      `json:"refined"`
	Anchors     []float64 `json:"anchors,omitempty"`
	Nodes       int       `json:"nodes"`
	Depth       int       `json:"depth"`
	MaxWidth    int       `json:"max_width"`
}

// Report returns the evaluator summary.
func (e *Evaluator) Report() Report {
	return Report{
		Function:    e.Function.Name,
		Lo:          e.ROI.Lo,
		Hi:          e.ROI.Hi,
		Rule:        e.Domain.Rule.String(),
		ReducedLo:   e.Domain.Lo,
		ReducedHi:   e.Domain.Hi,
		Poles:       e.Pole.Poles.Roots,
		Zeros:       e.Pole.Zeros.Roots,
		Degree:      e.Poly.Degree(),
		Parity:      e.Poly.Parity.String(),
		Coeffs:      e.Poly.Coeffs,
		Mode:        e.Mode.String(),
		MaxAbsError: e.Poly.MaxAbsError,
		MaxRelError: e.Poly.MaxRelError,
		Refined:     e.Poly.Refined,
		Anchors:     e.Poly.Anchors,
		Nodes:       e.Stats.Nodes,
		Depth:       e.Stats.Depth,
		MaxWidth:    e.Stats.MaxWidth,
	}
}

// Check is the result of comparing an evaluator with its target.
type Check struct {
	Points      int     `json:"points"`
	MaxAbsError float64 `json:"max_abs_error"`
	MaxRelError float64 `json:"max_rel_error"`
	WorstX      float64 `json:"worst_x"`

	// Mismatches counts points where the program and the scalar reference
	// path disagree in any bit.
	Mismatches int `json:"mismatches"`
}

// Check evaluates xs and measures the error against the most accurate oracle
// of the target. Points where the target is not finite are skipped.
func (e *Evaluator) Check(xs []float64) Check {
	got := make([]float64, len(xs))
	e.EvalSlice(xs, got)
	var c Check
	worst := -1.0
	for i, x := range xs {
		ref := e.Reference(x)
		if math.Float64bits(ref) != math.Float64bits(got[i]) && !(math.IsNaN(ref) && math.IsNaN(got[i])) {
			c.Mismatches++
		}
		want := e.Function.At(x, target.DefaultPrec)
		if math.IsInf(want, 0) || math.IsNaN(want) {
			continue
		}
		c.Points++
		abs := math.Abs(got[i] - want)
		rel := abs
		if want != 0 {
			rel = abs / math.Abs(want)
		} else if abs != 0 {
			rel = math.Inf(1)
		}
		c.MaxAbsError = max(c.MaxAbsError, abs)
		c.MaxRelError = max(c.MaxRelError, rel)
		metric := abs
		if e.Mode == fit.Relative {
			metric = rel
		}
		if metric > worst {
			worst, c.WorstX = metric, x
		}
	}
	return c
}

// Grid returns n+1 evenly spaced points of [lo, hi].
func Grid(lo, hi float64, n int) []float64 {
	if n < 1 {
		return []float64{lo}
	}
	xs := make([]float64, n+1)
	for i := range xs {
		xs[i] = lo + (hi-lo)*float64(i)/float64(n)
	}
	xs[n] = hi
	return xs
}
