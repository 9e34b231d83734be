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

// Package analyze inspects a target function over a region of interest and
// reports what the reducer and pole eliminator need: the usable domain, the
// singularities nearby and the symmetry class.
package analyze

import (
	"math"
	"sort"

	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

const stage = "analyze"

// Point is one concrete singular location.
type Point struct {
	At    float64
	Kind  target.SingularityKind
	Order int
	Tail  float64
}

// Analysis is the analyzer's view of a function over a region of interest.
type Analysis struct {
	Function *target.Function

	// ROI is the caller's closed region of interest.
	ROI target.Interval

	// Domain is the analytic domain clipped to the region of interest.
	Domain target.Interval

	// Region is the bounded neighbourhood scanned for singularities.
	Region target.Interval

	// Singularities are the singular points within Region, ascending.
	Singularities []Point

	Symmetry target.Symmetry
}

// Nearest returns the singular point of the given kind closest to the region
// of interest, and whether one exists.
func (a *Analysis) Nearest(kind target.SingularityKind) (Point, bool) {
	best, found := Point{}, false
	bestDist := math.Inf(1)
	for _, p := range a.Singularities {
		if p.Kind != kind {
			continue
		}
		if d := a.ROI.Distance(p.At); d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	return best, found
}

// Analyze validates fn over roi and collects its singularities.
func Analyze(fn *target.Function, roi target.Interval) (*Analysis, error) {
	if err := fn.Validate(); err != nil {
		name := ""
		if fn != nil {
			name = fn.Name
		}
		return nil, synerr.New(synerr.KindInvalidInput, stage, name, "invalid function").Wrap(err)
	}
	if !fn.SingularitiesKnown {
		return nil, synerr.New(synerr.KindUnknownSingularity, stage, fn.Name,
			"singular behaviour of black-box oracle is not characterized").WithDomain(roi.Lo, roi.Hi)
	}
	roi = target.Closed(roi.Lo, roi.Hi)
	if !roi.Finite() {
		return nil, synerr.New(synerr.KindInvalidInput, stage, fn.Name,
			"region of interest must be finite and non-empty").WithDomain(roi.Lo, roi.Hi)
	}

	for _, s := range fn.Singularities {
		if s.Kind != target.Asymptote {
			continue
		}
		if in := s.Members(roi.Lo, roi.Hi); len(in) > 0 {
			return nil, synerr.New(synerr.KindUnknownSingularity, stage, fn.Name,
				"non-removable singularity at %g inside region of interest", in[0]).WithDomain(roi.Lo, roi.Hi)
		}
	}
	dom := fn.Domain
	if (dom.OpenLo && roi.Lo == dom.Lo) || (dom.OpenHi && roi.Hi == dom.Hi) {
		return nil, synerr.New(synerr.KindUnknownSingularity, stage, fn.Name,
			"region of interest touches open domain endpoint of %v", dom).WithDomain(roi.Lo, roi.Hi)
	}
	if !dom.ContainsInterval(roi) {
		return nil, synerr.New(synerr.KindInvalidInput, stage, fn.Name,
			"region of interest outside analytic domain %v", dom).WithDomain(roi.Lo, roi.Hi)
	}

	margin := roi.Width()
	if fn.Period > 0 {
		margin = math.Max(margin, 2*fn.Period)
	}
	region := target.Closed(
		math.Max(roi.Lo-margin, dom.Lo),
		math.Min(roi.Hi+margin, dom.Hi),
	)

	a := &Analysis{
		Function: fn,
		ROI:      roi,
		Domain:   roi,
		Region:   region,
		Symmetry: fn.Symmetry(),
	}
	for _, s := range fn.Singularities {
		for _, x := range s.Members(region.Lo, region.Hi) {
			a.Singularities = append(a.Singularities, Point{At: x, Kind: s.Kind, Order: s.Multiplicity(), Tail: s.Tail})
		}
	}
	sort.SliceStable(a.Singularities, func(i, j int) bool {
		return a.Singularities[i].At < a.Singularities[j].At
	})
	return a, nil
}
