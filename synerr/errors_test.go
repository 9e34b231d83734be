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

package synerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInvalidInput, "InvalidInput"},
		{KindUnknownSingularity, "UnknownSingularity"},
		{KindNoBranchFreeReduction, "NoBranchFreeReduction"},
		{KindToleranceUnreachable, "ToleranceUnreachable"},
		{KindNumericInstability, "NumericInstability"},
		{Kind(42), "Kind(42)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := New(KindToleranceUnreachable, "fit", "sin", "degree ceiling %d reached", 12).WithFit(12, 3e-6)
	wrapped := fmt.Errorf("derive sin: %w", err)

	assert.True(t, errors.Is(wrapped, ErrToleranceUnreachable))
	assert.False(t, errors.Is(wrapped, ErrNumericInstability))

	var se *Error
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, 12, se.Degree)
	assert.Equal(t, 3e-6, se.MaxError)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindToleranceUnreachable, kind)
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("singular system")
	err := New(KindNumericInstability, "fit", "tan", "remez failed").WithDomain(-1, 1).Wrap(cause)

	msg := err.Error()
	assert.Contains(t, msg, "NumericInstability in fit (tan): remez failed")
	assert.Contains(t, msg, "[domain -1..1]")
	assert.ErrorIs(t, err, cause)
}

func TestKindOfForeignError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
