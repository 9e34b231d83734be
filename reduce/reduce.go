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

// Package reduce folds a region of interest onto a small canonical interval
// with a branch-free rule and computes the inverse mapping data.
//
// Four rules exist. Identity leaves x alone. Sign-flip reflects about a
// center, r = |x - c|. Quadrant-select removes multiples of a step,
// r = x - k*step with k = RoundToEven(x/step). Exponent-split either removes
// multiples of a scale (exponential) or splits x = 2^e*m (logarithmic).
//
// Multiples are removed with a Cody-Waite split of the constant into a high
// part with trailing zero bits and a low correction, so k*hi is exact for
// every k the rule admits.
package reduce

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ajroetker/doctorsyn/analyze"
	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

const stage = "reduce"

// Rule names a reduction.
type Rule int

const (
	// RuleAuto lets Reduce pick from the function's family and symmetry.
	RuleAuto Rule = iota
	RuleIdentity
	RuleSignFlip
	RuleQuadrant
	RuleExponent
)

// String returns a human-readable name for the Rule.
func (r Rule) String() string {
	switch r {
	case RuleAuto:
		return "auto"
	case RuleIdentity:
		return "identity"
	case RuleSignFlip:
		return "sign-flip"
	case RuleQuadrant:
		return "quadrant-select"
	case RuleExponent:
		return "exponent-split"
	default:
		return fmt.Sprintf("Rule(%d)", int(r))
	}
}

// ParseRule parses a rule name as printed by Rule.String.
func ParseRule(s string) (Rule, error) {
	for r := RuleAuto; r <= RuleExponent; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	switch s {
	case "", "default":
		return RuleAuto, nil
	case "quadrant":
		return RuleQuadrant, nil
	case "exponent":
		return RuleExponent, nil
	}
	return RuleAuto, fmt.Errorf("reduce: unknown rule %q", s)
}

const (
	// MaxQuadrant bounds |k| for quadrant-select. The high part of the step
	// keeps 32 significant bits, so k*hi is exact below 2^21.
	MaxQuadrant = 1 << 20

	// MinExponent and MaxExponent bound k for exponential exponent-split so
	// that 2^k is a normal float64.
	MinExponent = -1022
	MaxExponent = 1023

	// widen is the relative slack added to rule intervals so rounding in the
	// reduction never leaves the fitted interval.
	widen = 0x1p-30

	splitBits = 21
	precision = 192
)

// Side carries what the reduction removed from x: the multiple or exponent
// k, and for sign-flip the signed offset x - c.
type Side struct {
	K int64
	D float64
}

// Domain is the reduced domain and the parameters of its rule.
type Domain struct {
	Function string
	Rule     Rule

	// Lo and Hi bound the reduced variable.
	Lo, Hi float64

	// ROI is the original closed region of interest.
	ROI target.Interval

	// Parity of the reduced function on [Lo, Hi].
	Parity target.Symmetry

	// Sign-flip
	Center float64
	Offset float64

	// Quadrant-select
	Step, StepHi, StepLo, InvStep float64
	Alternate                     bool

	// Exponent-split. Log selects x = 2^e*m; otherwise f(x) = 2^k*p(r).
	Log                              bool
	Scale, ScaleHi, ScaleLo, InvScale float64

	// KMin and KMax bound the removed multiple or exponent over the ROI.
	KMin, KMax int64
}

// Options tunes Reduce.
type Options struct {
	// Prefer forces a rule. The rule must be applicable to the function.
	Prefer Rule

	// MaxReducedWidth rejects reductions wider than this when positive.
	MaxReducedWidth float64
}

// Width returns Hi - Lo.
func (d *Domain) Width() float64 {
	return d.Hi - d.Lo
}

// String summarizes the domain.
func (d *Domain) String() string {
	return fmt.Sprintf("%s on [%g, %g] (%s)", d.Rule, d.Lo, d.Hi, d.Parity)
}

// Reduce chooses a reduction for the analyzed region of interest.
func Reduce(a *analyze.Analysis, opts Options) (*Domain, error) {
	fn := a.Function
	roi := a.ROI

	for _, p := range a.Singularities {
		if p.Kind != target.Asymptote || p.Tail <= 0 {
			continue
		}
		if dist := roi.Distance(p.At); dist < p.Tail {
			return nil, synerr.New(synerr.KindNoBranchFreeReduction, stage, fn.Name,
				"region of interest reaches within %g of the asymptote at %g; its tail needs a separate regime",
				dist, p.At).WithDomain(roi.Lo, roi.Hi)
		}
	}

	rule := opts.Prefer
	if rule == RuleAuto {
		rule = chooseRule(fn)
	}

	var (
		d   *Domain
		err error
	)
	switch rule {
	case RuleIdentity:
		d = identity(fn, roi)
	case RuleSignFlip:
		d, err = signFlip(fn, roi)
	case RuleQuadrant:
		d, err = quadrant(fn, roi)
	case RuleExponent:
		switch fn.Family {
		case target.FamilyExponential:
			d, err = exponential(fn, roi)
		case target.FamilyLogarithmic:
			d, err = logarithmic(fn, roi)
		default:
			err = synerr.New(synerr.KindInvalidInput, stage, fn.Name, "exponent-split needs an exponential or logarithmic family")
		}
	default:
		err = synerr.New(synerr.KindInvalidInput, stage, fn.Name, "unknown rule %v", rule)
	}
	if err != nil {
		return nil, err
	}
	d.Function = fn.Name
	d.ROI = roi

	if opts.MaxReducedWidth > 0 && d.Width() > opts.MaxReducedWidth {
		return nil, synerr.New(synerr.KindNoBranchFreeReduction, stage, fn.Name,
			"%s leaves a reduced width of %g, above %g", d.Rule, d.Width(), opts.MaxReducedWidth).WithDomain(roi.Lo, roi.Hi)
	}
	if err := d.Covers(roi); err != nil {
		return nil, err
	}
	return d, nil
}

func chooseRule(fn *target.Function) Rule {
	switch fn.Family {
	case target.FamilyPeriodic:
		return RuleQuadrant
	case target.FamilyExponential, target.FamilyLogarithmic:
		return RuleExponent
	}
	if fn.Parity == target.SymmetryEven || fn.Parity == target.SymmetryOdd {
		return RuleSignFlip
	}
	return RuleIdentity
}

func identity(fn *target.Function, roi target.Interval) *Domain {
	d := &Domain{Rule: RuleIdentity, Lo: roi.Lo, Hi: roi.Hi}
	if fn.Center == 0 && fn.Offset == 0 && roi.Lo == -roi.Hi {
		d.Parity = fn.Parity
	}
	return d
}

func signFlip(fn *target.Function, roi target.Interval) (*Domain, error) {
	if fn.Parity != target.SymmetryEven && fn.Parity != target.SymmetryOdd {
		return nil, synerr.New(synerr.KindInvalidInput, stage, fn.Name, "sign-flip needs an even or odd function")
	}
	c := fn.Center
	return &Domain{
		Rule:   RuleSignFlip,
		Lo:     0,
		Hi:     math.Max(math.Abs(roi.Lo-c), math.Abs(roi.Hi-c)),
		Parity: fn.Parity,
		Center: c,
		Offset: fn.Offset,
	}, nil
}

func quadrant(fn *target.Function, roi target.Interval) (*Domain, error) {
	if fn.Period <= 0 {
		return nil, synerr.New(synerr.KindInvalidInput, stage, fn.Name, "quadrant-select needs a periodic function")
	}
	step := fn.Period
	hi, lo := split(step, fn.PrecisePeriod)
	inv := 1 / step
	kmin := int64(math.RoundToEven(roi.Lo * inv))
	kmax := int64(math.RoundToEven(roi.Hi * inv))
	if max(-kmin, kmax) >= MaxQuadrant {
		return nil, synerr.New(synerr.KindNoBranchFreeReduction, stage, fn.Name,
			"argument magnitude needs |k| up to %d; exact reduction holds below %d", max(-kmin, kmax), MaxQuadrant).WithDomain(roi.Lo, roi.Hi)
	}
	half := step / 2
	d := &Domain{
		Rule:      RuleQuadrant,
		Lo:        -half * (1 + widen),
		Hi:        half * (1 + widen),
		Step:      step,
		StepHi:    hi,
		StepLo:    lo,
		InvStep:   inv,
		Alternate: fn.Antiperiodic,
		KMin:      kmin,
		KMax:      kmax,
	}
	if fn.Center == 0 && fn.Offset == 0 {
		d.Parity = fn.Parity
	}
	return d, nil
}

func exponential(fn *target.Function, roi target.Interval) (*Domain, error) {
	l := fn.Scale
	hi, lo := split(l, fn.PreciseScale)
	inv := 1 / l
	kmin := int64(math.RoundToEven(roi.Lo * inv))
	kmax := int64(math.RoundToEven(roi.Hi * inv))
	if kmin < MinExponent || kmax > MaxExponent {
		return nil, synerr.New(synerr.KindNoBranchFreeReduction, stage, fn.Name,
			"exponent range [%d, %d] leaves the normal range [%d, %d]", kmin, kmax, MinExponent, MaxExponent).WithDomain(roi.Lo, roi.Hi)
	}
	half := l / 2
	return &Domain{
		Rule:     RuleExponent,
		Lo:       -half * (1 + widen),
		Hi:       half * (1 + widen),
		Scale:    l,
		ScaleHi:  hi,
		ScaleLo:  lo,
		InvScale: inv,
		KMin:     kmin,
		KMax:     kmax,
	}, nil
}

const (
	mantMask = 1<<52 - 1
	oneBits  = 0x3ff << 52
	expBias  = 1023

	// MinNormal is the smallest positive normal float64.
	MinNormal = 0x1p-1022
)

func logarithmic(fn *target.Function, roi target.Interval) (*Domain, error) {
	if roi.Lo < MinNormal {
		return nil, synerr.New(synerr.KindNoBranchFreeReduction, stage, fn.Name,
			"exponent extraction needs normal positive inputs, region starts at %g", roi.Lo).WithDomain(roi.Lo, roi.Hi)
	}
	hi, lo := split(fn.Scale, fn.PreciseScale)
	_, emin := splitLog(roi.Lo)
	_, emax := splitLog(roi.Hi)
	return &Domain{
		Rule:    RuleExponent,
		Log:     true,
		Lo:      (0.5*math.Sqrt2 - 1) * (1 + widen),
		Hi:      (math.Sqrt2 - 1) * (1 + widen),
		Scale:   fn.Scale,
		ScaleHi: hi,
		ScaleLo: lo,
		KMin:    emin,
		KMax:    emax,
	}, nil
}

// split returns the Cody-Waite pair of c: hi keeps the leading bits so that
// k*hi is exact for |k| < 2^splitBits, and hi + lo approximates c to about
// twice float64 precision.
func split(c float64, precise func(prec uint) *big.Float) (hi, lo float64) {
	hi = math.Float64frombits(math.Float64bits(c) &^ (1<<splitBits - 1))
	if precise == nil {
		return hi, c - hi
	}
	t := new(big.Float).SetPrec(precision).Set(precise(precision))
	t.Sub(t, new(big.Float).SetFloat64(hi))
	lo, _ = t.Float64()
	return hi, lo
}

// Forward reduces x with the same operation sequence the emitted evaluator
// performs, so the results agree bit for bit.
func (d *Domain) Forward(x float64) (r float64, side Side) {
	switch d.Rule {
	case RuleSignFlip:
		dx := x - d.Center
		return math.Abs(dx), Side{D: dx}
	case RuleQuadrant:
		k := math.RoundToEven(float64(x * d.InvStep))
		r = math.FMA(-k, d.StepHi, x)
		r = math.FMA(-k, d.StepLo, r)
		return r, Side{K: int64(k)}
	case RuleExponent:
		if d.Log {
			m, e := splitLog(x)
			return m - 1, Side{K: e}
		}
		k := math.RoundToEven(float64(x * d.InvScale))
		r = math.FMA(-k, d.ScaleHi, x)
		r = math.FMA(-k, d.ScaleLo, r)
		return r, Side{K: int64(k)}
	default:
		return x, Side{}
	}
}

// splitLog returns x = 2^e*m with m in (√½, √2], selecting the halved
// mantissa with a mask and blend instead of a branch.
func splitLog(x float64) (float64, int64) {
	bits := int64(math.Float64bits(x))
	e := bits>>52 - expBias
	m := math.Float64frombits(uint64(bits&mantMask | oneBits))
	mask := GreaterMask(m, math.Sqrt2)
	half := float64(m * 0.5)
	m = math.Float64frombits(uint64(mask&int64(math.Float64bits(half)) | ^mask&int64(math.Float64bits(m))))
	e = mask&(e+1) | ^mask&e
	return m, e
}

// GreaterMask returns all ones when a > b and zero otherwise, computed from
// the sign of b - a.
func GreaterMask(a, b float64) int64 {
	return int64(math.Float64bits(b-a)) >> 63
}

// Local maps a point of the original variable into the canonical copy of the
// reduced variable (the copy with k = 0, e = 0 and x - c >= 0).
func (d *Domain) Local(x float64) float64 {
	switch d.Rule {
	case RuleSignFlip:
		return x - d.Center
	case RuleExponent:
		if d.Log {
			return x - 1
		}
	}
	return x
}

// Canonical maps a reduced value back to the original variable on the
// canonical copy.
func (d *Domain) Canonical(r float64) float64 {
	switch d.Rule {
	case RuleSignFlip:
		return d.Center + r
	case RuleExponent:
		if d.Log {
			return 1 + r
		}
	}
	return r
}

// CanonicalPrecise is Canonical in extended precision.
func (d *Domain) CanonicalPrecise(r *big.Float) *big.Float {
	out := new(big.Float).SetPrec(r.Prec()).Set(r)
	switch d.Rule {
	case RuleSignFlip:
		out.Add(out, new(big.Float).SetFloat64(d.Center))
	case RuleExponent:
		if d.Log {
			out.Add(out, new(big.Float).SetInt64(1))
		}
	}
	return out
}

// Contains reports whether r lies in the reduced interval.
func (d *Domain) Contains(r float64) bool {
	return r >= d.Lo && r <= d.Hi
}

const coverSamples = 4096

// Covers checks that every sampled point of roi reduces into [Lo, Hi].
func (d *Domain) Covers(roi target.Interval) error {
	check := func(x float64) error {
		if r, _ := d.Forward(x); !d.Contains(r) {
			return synerr.New(synerr.KindNoBranchFreeReduction, stage, d.Function,
				"%s maps %g to %g outside [%g, %g]", d.Rule, x, r, d.Lo, d.Hi).WithDomain(roi.Lo, roi.Hi)
		}
		return nil
	}
	if err := check(roi.Lo); err != nil {
		return err
	}
	if err := check(roi.Hi); err != nil {
		return err
	}
	h := roi.Width() / coverSamples
	for i := 1; i < coverSamples; i++ {
		if err := check(roi.Lo + float64(i)*h); err != nil {
			return err
		}
	}
	return nil
}
