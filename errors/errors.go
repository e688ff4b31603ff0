// Package errors provides error handling for the asset core.
//
// It re-exports github.com/cockroachdb/errors, giving every fallible
// operation in this module:
//   - stack traces for debugging
//   - error wrapping with context
//   - PII-safe formatting for hints/details surfaced to users
//   - straightforward errors.Is/As compatibility with the standard library
//
// Usage:
//
//	err := errors.New("decode failed")
//	return errors.Wrapf(err, "loading %s", path)
//	if errors.Is(err, ErrInterrupted) { ... }
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping.
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details.
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection.
var (
	Is     = crdb.Is
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Assertions for invariant violations that should never happen in practice
// (e.g. a resource transitioning ready before async_ready).
var (
	AssertionFailedf = crdb.AssertionFailedf
)
