// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Debug selects a diagnostic category for SetDebug.
type Debug uint8

const (
	// DebugNormal - general warnings, errors and auxiliary information.
	DebugNormal Debug = iota
	// DebugMemory - allocation and release of nodes and blocks.
	DebugMemory
	// DebugAlgorithm - internal warnings of the engine itself.
	DebugAlgorithm
	// DebugAll - every category at once.
	DebugAll
	// DebugLogging - one info line per public operation.
	DebugLogging
)

const (
	flagNorm uint32 = 1 << iota
	flagMem
	flagAlg
	flagLog

	flagAll = ^uint32(0)
)

// SetDebug switches one diagnostic category on or off. Events are
// emitted on the table's logger at debug level, operation logs at info
// level.
func (t *Table[V]) SetDebug(kind Debug, on bool) error {
	if t == nil {
		return errors.WithMessage(ErrInvalid, "table is nil")
	}

	var flag uint32
	switch kind {
	case DebugNormal:
		flag = flagNorm
	case DebugMemory:
		flag = flagMem
	case DebugAlgorithm:
		flag = flagAlg
	case DebugLogging:
		flag = flagLog
	case DebugAll:
		flag = flagAll
	default:
		t.debugNorm().Uint8("kind", uint8(kind)).Msg("unknown debug kind")
		return errors.WithMessagef(ErrInvalid, "unknown debug kind %d", kind)
	}

	if on {
		t.debug |= flag
	} else {
		t.debug &^= flag
	}

	t.opLog().Uint8("kind", uint8(kind)).Bool("on", on).Msg("debug switched")

	return nil
}

// The category helpers return nil when the category is off, every
// zerolog event method is a no-op on a nil event.

func (t *Table[V]) debugNorm() *zerolog.Event {
	if t.debug&flagNorm == 0 {
		return nil
	}
	return t.log.Debug().Str("table", t.name).Str("channel", "normal")
}

func (t *Table[V]) debugMem() *zerolog.Event {
	if t.debug&flagMem == 0 {
		return nil
	}
	return t.log.Debug().Str("table", t.name).Str("channel", "memory")
}

func (t *Table[V]) debugAlg() *zerolog.Event {
	if t.debug&flagAlg == 0 {
		return nil
	}
	return t.log.Debug().Str("table", t.name).Str("channel", "algorithm")
}

func (t *Table[V]) opLog() *zerolog.Event {
	if t.debug&flagLog == 0 {
		return nil
	}
	return t.log.Info().Str("table", t.name)
}

// quarantine marks the table unusable after an integrity violation.
// There is no safe continuation, but aborting the embedding process is
// not ours to decide: every later Add, Update and Delete reports
// ErrInternal.
func (t *Table[V]) quarantine(reason string) {
	t.corrupt = true
	t.log.Error().Str("table", t.name).Str("reason", reason).Msg("table quarantined")
}
