// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import "github.com/ytinirt/lpm/internal/bitpos"

// Delete-path repair of the mtrie: null-fill the footprint of a
// removed binding and lazily shrink block chains whose btrie subtree
// has emptied out.

// zeroOut clears the deleted binding's range top-down, walking the
// block chain along addr and nulling the single covering entry at
// every level above the target.
func (t *Table[V]) zeroOut(addr []byte, masklen int) error {
	idx := addr[0]

	if masklen <= 8 {
		// the root block is operated on directly
		patternFill[V](t.mtrieRoot, idx, masklen-1, nil)
		return nil
	}

	entry := &t.mtrieRoot.entry[idx]
	entry.val = nil
	blk := entry.base
	if blk == nil {
		t.debugAlg().Msg("mtrie block chain missing below deleted binding")
		t.quarantine("mtrie block chain missing")
		return ErrInternal
	}
	for level := 1; blk != nil && level < bitpos.MaxLevel; level++ {
		idx = addr[level]
		if masklen-level*8 <= 8 {
			// we are in the target block now
			patternFill[V](blk, idx, masklen-1, nil)
			break
		}
		entry = &blk.entry[idx]
		entry.val = nil
		blk = entry.base
	}

	return nil
}

// freeBlockAt frees the mtrie block hanging below the stride boundary
// pos along addr and nulls the parent entry's base. A block about to
// be freed must not reference child blocks anymore, anything else
// means the shrink walk and the btrie disagree.
func (t *Table[V]) freeBlockAt(addr []byte, pos int) {
	levels := pos>>3 + 1

	blk := t.mtrieRoot
	var entry *mtrieEntry[V]
	for level := 0; blk != nil && level < levels; level++ {
		entry = &blk.entry[addr[level]]
		blk = entry.base
	}

	entry.base = nil
	if blk != nil {
		for i := range blk.entry {
			if blk.entry[i].base != nil {
				t.quarantine("freed mtrie block still references children")
				return
			}
		}
		t.freeMtrieBlock(blk)
	}
}

// pruneSubtree removes valueless btrie subtrees below node and frees
// the mtrie blocks of stride boundaries crossed on the way up. It
// reports whether node itself carries no value and no valued
// descendants, i.e. whether the caller may remove it too.
//
// pos is the bit position of node, -1 for the btrie root. Recursion
// depth is bounded by MaxMask+1.
func (t *Table[V]) pruneSubtree(addr []byte, node *btrieNode[V], pos int) bool {
	if node.child[0] == nil && node.child[1] == nil {
		return node.val == nil
	}

	deletable := true
	for i, c := range node.child {
		if c == nil {
			continue
		}
		if !t.pruneSubtree(addr, c, pos+1) {
			// valued descendants below, keep this child
			deletable = false
			continue
		}
		t.destroyBtrieSubtree(c)
		node.child[i] = nil
	}
	if !deletable {
		return false
	}

	if node != t.root {
		if bitpos.IsBoundary(pos) {
			// the whole btrie subtree below this boundary is gone,
			// drop the corresponding mtrie block as well
			t.freeBlockAt(addr, pos)
		}
		return node.val == nil
	}

	return false
}
