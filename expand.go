// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import (
	"github.com/pkg/errors"

	"github.com/ytinirt/lpm/internal/bitpos"
)

// Controlled prefix expansion: write a value into every mtrie entry
// covered by a prefix, without ever overwriting an entry owned by a
// more-specific binding. The btrie subtree below the prefix node tells
// which halves of the covered range are taken.

// nextbit selector for genCombinations.
const (
	nextNone = -1 // expand at pos itself
	nextZero = 0  // expand the half with bit pos+1 == 0
	nextOne  = 1  // expand the half with bit pos+1 == 1
)

// patternFill writes val into every entry of b covered by the prefix
// whose last significant bit position within this stride is pos.
// The covered range is [idx & mask, idx | ^mask] where mask has the
// top (pos mod 8)+1 bits set. val == nil zeroes the range.
func patternFill[V comparable](b *mtrieBlock[V], idx byte, pos int, val *V) {
	var mask byte
	if bitpos.IsBoundary(pos) {
		mask = 0xFF
	} else {
		mask = bitpos.NetMask((pos + 1) % 8)
	}

	lo := int(idx & mask)
	hi := int(idx | ^mask)
	for i := lo; i <= hi; i++ {
		b.entry[i].val = val
	}
}

// genCombinations pattern-fills one contiguous slice of the covered
// range, materializing the chain of mtrie blocks from the root down to
// the target level first if needed.
//
// next selects the slice: nextNone fills the range of the prefix
// ending at pos, nextZero/nextOne fill the half selected by forcing
// bit pos+1 (pos must not be a stride boundary then).
//
// Newly allocated blocks are hooked into their parents bottom-up and
// only after the whole chain exists, so a concurrent reader never
// observes a partially-wired chain. If any allocation is refused, only
// the blocks allocated by this call are freed and ErrResources is
// returned. A reused block that differs from the expected one means
// the two tries disagree, the table is quarantined.
func (t *Table[V]) genCombinations(addr []byte, pos int, val *V, next int) error {
	if pos < 8 {
		// the root block is always present, operate on it directly
		idx := addr[0]
		switch next {
		case nextZero:
			idx &^= 1 << (7 - (pos + 1))
			patternFill(t.mtrieRoot, idx, pos+1, val)
		case nextOne:
			idx |= 1 << (7 - (pos + 1))
			patternFill(t.mtrieRoot, idx, pos+1, val)
		case nextNone:
			patternFill(t.mtrieRoot, idx, pos, val)
		}
		return nil
	}

	levels := pos>>3 + 1

	var (
		chain    [bitpos.MaxLevel]*mtrieBlock[V]
		chainIdx [bitpos.MaxLevel]byte
		chainNew [bitpos.MaxLevel]bool
	)

	// build the block chain, allocate where the path is missing
	frontier := t.mtrieRoot
	for level := 0; level < levels; level++ {
		if frontier == nil {
			frontier = t.newMtrieBlock()
			if frontier == nil {
				for i := 0; i < level; i++ {
					if chainNew[i] {
						t.freeMtrieBlock(chain[i])
						t.debugMem().Msg("free one mtrie block")
					}
				}
				return errors.WithMessage(ErrResources, "mtrie block")
			}
			chainNew[level] = true
		}
		chain[level] = frontier
		chainIdx[level] = addr[level]

		frontier = chain[level].entry[chainIdx[level]].base
	}

	// hook from low to high level, for the sake of the data plane
	for level := levels - 1; level > 0; level-- {
		pre := &chain[level-1].entry[chainIdx[level-1]]
		if chainNew[level] {
			pre.base = chain[level]
		} else if pre.base != chain[level] {
			t.quarantine("mtrie block chain inconsistent")
			return ErrInternal
		}
	}

	target := chain[levels-1]
	idx := chainIdx[levels-1]

	switch next {
	case nextZero:
		idx &^= 1 << (7 - (pos+1)&7)
		patternFill(target, idx, pos+1, val)
	case nextOne:
		idx |= 1 << (7 - (pos+1)&7)
		patternFill(target, idx, pos+1, val)
	case nextNone:
		patternFill(target, idx, pos, val)
	}

	return nil
}

// expand writes val across the whole mtrie footprint of the prefix
// whose last significant bit position is pos, guided by the btrie
// subtree rooted at node:
//
//   - an absent child subtree means its half of the range is
//     unshadowed, fill it directly,
//   - a child carrying a value owns its half, leave it alone,
//   - a child without a value may hide deeper bindings, descend.
//
// addr is a scratch buffer, bits below pos are flipped during the
// descent. Recursion stops at the next stride boundary, depth is
// bounded by the 8-bit stride.
func (t *Table[V]) expand(addr []byte, pos int, node *btrieNode[V], val *V) error {
	// a boundary bit covers exactly one entry
	if bitpos.IsBoundary(pos) {
		return t.genCombinations(addr, pos, val, nextNone)
	}

	if node.child[0] == nil && node.child[1] == nil {
		// no children, this is the most specific binding here
		return t.genCombinations(addr, pos, val, nextNone)
	}

	if c := node.child[0]; c != nil {
		if c.val == nil {
			bitpos.Clear(addr, pos+1)
			if err := t.expand(addr, pos+1, c, val); err != nil {
				return err
			}
		}
		// else: the more specific binding owns the left half
	} else {
		if err := t.genCombinations(addr, pos, val, nextZero); err != nil {
			return err
		}
	}

	if c := node.child[1]; c != nil {
		if c.val == nil {
			bitpos.Set(addr, pos+1)
			if err := t.expand(addr, pos+1, c, val); err != nil {
				return err
			}
		}
		// else: the more specific binding owns the right half
	} else {
		if err := t.genCombinations(addr, pos, val, nextOne); err != nil {
			return err
		}
	}

	return nil
}
