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

// Package synerr defines the typed failures every derivation stage reports.
//
// Each stage fails fast with an *Error carrying enough state to diagnose the
// failure (stage, function, attempted domain, best degree/error). Callers
// match the kind with errors.Is against the package sentinels and recover the
// diagnostics with errors.As:
//
//	var se *synerr.Error
//	if errors.Is(err, synerr.ErrToleranceUnreachable) && errors.As(err, &se) {
//	    fmt.Println("best degree", se.Degree, "error", se.MaxError)
//	}
package synerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a derivation failure.
type Kind int

const (
	// KindInvalidInput marks caller mistakes: empty or non-finite regions,
	// regions outside the analytic domain, malformed options.
	KindInvalidInput Kind = iota

	// KindUnknownSingularity is reported when the analyzer cannot characterize
	// the singularities of the target over the requested region.
	KindUnknownSingularity

	// KindNoBranchFreeReduction is reported when the reducer cannot map the
	// region onto a canonical interval without a data-dependent branch.
	KindNoBranchFreeReduction

	// KindToleranceUnreachable is reported when the fitter exhausts the degree
	// ceiling without meeting the tolerance.
	KindToleranceUnreachable

	// KindNumericInstability is reported when pole elimination or fitting
	// detects cancellation beyond the safe margin, or anchors cannot be snapped.
	KindNumericInstability
)

// String returns a human-readable name for the Kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindUnknownSingularity:
		return "UnknownSingularity"
	case KindNoBranchFreeReduction:
		return "NoBranchFreeReduction"
	case KindToleranceUnreachable:
		return "ToleranceUnreachable"
	case KindNumericInstability:
		return "NumericInstability"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels, one per kind. Every *Error matches the sentinel of its kind.
var (
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrUnknownSingularity    = &Error{Kind: KindUnknownSingularity}
	ErrNoBranchFreeReduction = &Error{Kind: KindNoBranchFreeReduction}
	ErrToleranceUnreachable  = &Error{Kind: KindToleranceUnreachable}
	ErrNumericInstability    = &Error{Kind: KindNumericInstability}
)

// Error is the failure type returned by every stage.
type Error struct {
	Kind Kind

	// Stage is the pipeline stage that failed ("analyze", "reduce", "pole",
	// "fit", "emit").
	Stage string

	// Function is the target function name.
	Function string

	// Lo and Hi are the domain the stage attempted.
	Lo, Hi float64

	// Degree and MaxError report the best fit found, when relevant.
	Degree   int
	MaxError float64

	// Msg describes the failure.
	Msg string

	// Err is an optional underlying cause.
	Err error
}

// New creates an *Error of the given kind.
func New(kind Kind, stage, function, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Stage:    stage,
		Function: function,
		Msg:      fmt.Sprintf(format, args...),
	}
}

// WithDomain records the attempted domain and returns e.
func (e *Error) WithDomain(lo, hi float64) *Error {
	e.Lo, e.Hi = lo, hi
	return e
}

// WithFit records the best degree/error pair and returns e.
func (e *Error) WithFit(degree int, maxErr float64) *Error {
	e.Degree, e.MaxError = degree, maxErr
	return e
}

// Wrap records an underlying cause and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Stage != "" {
		fmt.Fprintf(&sb, " in %s", e.Stage)
	}
	if e.Function != "" {
		fmt.Fprintf(&sb, " (%s)", e.Function)
	}
	if e.Msg != "" {
		fmt.Fprintf(&sb, ": %s", e.Msg)
	}
	if e.Lo != 0 || e.Hi != 0 {
		fmt.Fprintf(&sb, " [domain %g..%g]", e.Lo, e.Hi)
	}
	if e.Kind == KindToleranceUnreachable {
		fmt.Fprintf(&sb, " [best degree %d, error %.3g]", e.Degree, e.MaxError)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. Sentinels carry
// only a kind, so errors.Is(err, ErrToleranceUnreachable) matches any
// tolerance failure regardless of its diagnostics.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err and true if err wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
