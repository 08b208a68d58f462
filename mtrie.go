// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import "unsafe"

const blockEntries = 1 << 8 // stride 8

// mtrieEntry is one slot of an mtrie block.
//
// val == nil means no binding covers this slot at this level. base, if
// non-nil, points to the child block for the next 8 address bits. Both
// fields are single pointer stores, readers observe either the old or
// the new pointer, never a torn write.
type mtrieEntry[V comparable] struct {
	val  *V
	base *mtrieBlock[V]
}

// mtrieBlock is a full stride-8 level, 256 entries, always allocated
// and freed as a whole. Every block except the root is owned by
// exactly one parent entry's base field.
type mtrieBlock[V comparable] struct {
	entry [blockEntries]mtrieEntry[V]
}

func (t *Table[V]) mtrieBlockSize() uintptr {
	return unsafe.Sizeof(mtrieBlock[V]{})
}

// newMtrieBlock returns a zeroed block or nil if the allocator refused.
func (t *Table[V]) newMtrieBlock() *mtrieBlock[V] {
	if !t.alloc.Alloc(t.mtrieBlockSize()) {
		t.stat.MtrieBlockFailures++
		t.debugMem().Msg("mtrie block alloc failed")
		return nil
	}
	t.stat.MtrieBlocks++
	return new(mtrieBlock[V])
}

// freeMtrieBlock frees a block and every block reachable below it.
// The mtrie is at most 16 levels deep, an explicit work stack keeps
// the call stack flat anyway.
func (t *Table[V]) freeMtrieBlock(b *mtrieBlock[V]) {
	if b == nil {
		return
	}
	stack := []*mtrieBlock[V]{b}
	for len(stack) > 0 {
		blk := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i := range blk.entry {
			if child := blk.entry[i].base; child != nil {
				stack = append(stack, child)
			}
		}
		t.alloc.Free(t.mtrieBlockSize())
		t.stat.MtrieBlocks--
	}
}
