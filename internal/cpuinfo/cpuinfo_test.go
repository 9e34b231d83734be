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

package cpuinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelLanes(t *testing.T) {
	tests := []struct {
		level Level
		name  string
		lanes int
	}{
		{LevelScalar, "scalar", 2},
		{LevelSSE2, "sse2", 2},
		{LevelAVX2, "avx2", 4},
		{LevelAVX512, "avx512", 8},
		{LevelNEON, "neon", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.level.String())
			assert.Equal(t, tt.lanes, tt.level.Lanes())
		})
	}
	assert.Equal(t, "unknown", Level(99).String())
}

func TestCurrent(t *testing.T) {
	assert.Equal(t, Current().Lanes(), Lanes())
	assert.GreaterOrEqual(t, Lanes(), 2)
}

func TestNoSIMDEnv(t *testing.T) {
	t.Setenv("DOCTORSYN_NO_SIMD", "")
	assert.False(t, NoSIMDEnv())
	t.Setenv("DOCTORSYN_NO_SIMD", "1")
	assert.True(t, NoSIMDEnv())
	t.Setenv("DOCTORSYN_NO_SIMD", "false")
	assert.False(t, NoSIMDEnv())
	t.Setenv("DOCTORSYN_NO_SIMD", "yes")
	assert.True(t, NoSIMDEnv())
	t.Setenv("DOCTORSYN_NO_SIMD", "1")
	assert.Equal(t, LevelScalar, detect())
}
