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

package analyze

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/doctorsyn/synerr"
	"github.com/ajroetker/doctorsyn/target"
)

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   *target.Function
		roi  target.Interval
		want error
	}{
		{"black box", target.BlackBox("f", math.Sinh), target.Closed(-1, 1), synerr.ErrUnknownSingularity},
		{"qnorm endpoints", target.Qnorm(), target.Closed(0, 1), synerr.ErrUnknownSingularity},
		{"ln at zero", target.Ln(), target.Closed(0, 2), synerr.ErrUnknownSingularity},
		{"ln negative", target.Ln(), target.Closed(-2, -1), synerr.ErrInvalidInput},
		{"empty roi", target.Sin(), target.Closed(1, 1), synerr.ErrInvalidInput},
		{"infinite roi", target.Exp(), target.Closed(0, math.Inf(1)), synerr.ErrInvalidInput},
		{"nil function", nil, target.Closed(0, 1), synerr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(tt.fn, tt.roi)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAnalyzeNoSingularities(t *testing.T) {
	a, err := Analyze(target.Sin(), target.Closed(-math.Pi, math.Pi))
	require.NoError(t, err)
	assert.Empty(t, a.Singularities)
	assert.Equal(t, target.SymmetryPeriodic, a.Symmetry)
	assert.Equal(t, target.Closed(-math.Pi, math.Pi), a.Domain)
}

func TestAnalyzeTanPoles(t *testing.T) {
	a, err := Analyze(target.Tan(), target.Closed(-1, 1))
	require.NoError(t, err)
	require.NotEmpty(t, a.Singularities)
	for i, p := range a.Singularities {
		assert.Equal(t, target.Pole, p.Kind)
		assert.True(t, a.Region.Contains(p.At))
		if i > 0 {
			assert.Less(t, a.Singularities[i-1].At, p.At)
		}
	}
	p, ok := a.Nearest(target.Pole)
	require.True(t, ok)
	assert.InDelta(t, math.Pi/2, math.Abs(p.At), 1e-15)
}

func TestAnalyzeQnormCentral(t *testing.T) {
	a, err := Analyze(target.Qnorm(), target.Closed(0.1, 0.9))
	require.NoError(t, err)
	assert.Equal(t, target.SymmetryOdd, a.Symmetry)

	p, ok := a.Nearest(target.Asymptote)
	require.True(t, ok)
	assert.Equal(t, target.QnormTail, p.Tail)
}
