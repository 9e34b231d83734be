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

// Package cpuinfo detects the vector width used to size evaluator lane
// batches.
package cpuinfo

import (
	"os"
	"strconv"
)

// Level is the widest vector instruction set detected.
type Level int

const (
	// LevelScalar means no usable vector unit, or vectors disabled.
	LevelScalar Level = iota
	LevelSSE2
	LevelAVX2
	LevelAVX512
	LevelNEON
)

// String returns a human-readable name for the Level.
func (l Level) String() string {
	switch l {
	case LevelScalar:
		return "scalar"
	case LevelSSE2:
		return "sse2"
	case LevelAVX2:
		return "avx2"
	case LevelAVX512:
		return "avx512"
	case LevelNEON:
		return "neon"
	default:
		return "unknown"
	}
}

// Width returns the vector register width of the level in bytes.
func (l Level) Width() int {
	switch l {
	case LevelAVX512:
		return 64
	case LevelAVX2:
		return 32
	default:
		return 16
	}
}

// Lanes returns how many float64 values one register of the level holds.
func (l Level) Lanes() int {
	return l.Width() / 8
}

var current = detect()

// Current returns the detected level.
func Current() Level {
	return current
}

// Lanes returns the float64 lane count of the detected level.
func Lanes() int {
	return current.Lanes()
}

// NoSIMDEnv reports whether DOCTORSYN_NO_SIMD is set, which forces
// LevelScalar.
func NoSIMDEnv() bool {
	val := os.Getenv("DOCTORSYN_NO_SIMD")
	if val == "" {
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}
