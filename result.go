// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import "github.com/pkg/errors"

// Operation results. The set is closed; every error returned by the
// public operations matches exactly one of these sentinels under
// errors.Is, possibly annotated with argument context.
var (
	// ErrResources - a memory request was refused by the allocator.
	// Every partially-applied effect has been undone.
	ErrResources = errors.New("memory resources exhausted")

	// ErrInvalid - invalid input arguments.
	ErrInvalid = errors.New("invalid argument")

	// ErrInternal - the engine detected an inconsistency it is itself
	// expected to uphold. The table is quarantined.
	ErrInternal = errors.New("internal inconsistency")

	// ErrNotFound - no binding at the given prefix.
	ErrNotFound = errors.New("prefix not found")

	// ErrExists - the prefix is already bound to the same value.
	ErrExists = errors.New("prefix already bound to the same value")

	// ErrConflict - the prefix is already bound to a different value.
	ErrConflict = errors.New("prefix already bound to a different value")

	// ErrExotic - a caller-provided walker returned an error.
	ErrExotic = errors.New("walker callback failed")
)
