// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/ytinirt/lpm/internal/bitpos"
)

// btrieNode is a node of the 1-bit binary trie, the authoritative
// store of prefix→value bindings.
//
// val == nil means no binding at this prefix. child[0] is the left
// child (next bit 0), child[1] the right child (next bit 1). Every
// node is exclusively owned by its parent's child slot, the root by
// the table.
type btrieNode[V comparable] struct {
	val   *V
	child [2]*btrieNode[V]
}

func (t *Table[V]) btrieNodeSize() uintptr {
	return unsafe.Sizeof(btrieNode[V]{})
}

// newBtrieNode returns a zeroed node or nil if the allocator refused.
func (t *Table[V]) newBtrieNode() *btrieNode[V] {
	if !t.alloc.Alloc(t.btrieNodeSize()) {
		t.stat.BtrieNodeFailures++
		return nil
	}
	t.stat.BtrieNodes++
	return new(btrieNode[V])
}

func (t *Table[V]) freeBtrieNode(n *btrieNode[V]) {
	if n == nil {
		return
	}
	t.alloc.Free(t.btrieNodeSize())
	t.stat.BtrieNodes--
}

// findNode walks bits 0..masklen-1 from n and returns the terminal
// node, or nil if the path does not exist.
func (n *btrieNode[V]) findNode(addr []byte, masklen int) *btrieNode[V] {
	for pos := 0; pos < masklen && n != nil; pos++ {
		n = n.child[bitpos.Bit(addr, pos)]
	}
	return n
}

// findValue returns the value bound at addr/masklen, or nil.
func (n *btrieNode[V]) findValue(addr []byte, masklen int) *V {
	if node := n.findNode(addr, masklen); node != nil {
		return node.val
	}
	return nil
}

// addPath ensures the btrie path for addr/masklen exists.
//
// It returns the terminal node and, for rollback, the deepest
// pre-existing node on the path (appendPoint) together with the branch
// taken from it (appendBit): severing appendPoint.child[appendBit]
// detaches exactly the nodes appended by this call.
//
// existed is true when every node on the path was already present.
// If the allocator refuses mid-path, the partially-appended chain is
// severed and freed before ErrResources is returned.
func (t *Table[V]) addPath(addr []byte, masklen int) (terminal, appendPoint *btrieNode[V], appendBit byte, existed bool, err error) {
	existed = true
	place := t.root

	if masklen > 0 {
		appendPoint = t.root
		appendBit = bitpos.Bit(addr, 0)
	}

	for pos := 0; pos < masklen; pos++ {
		bit := bitpos.Bit(addr, pos)
		if place.child[bit] == nil {
			node := t.newBtrieNode()
			if node == nil {
				t.debugMem().Msg("btrie node alloc failed, undoing appended chain")
				chain := appendPoint.child[appendBit]
				appendPoint.child[appendBit] = nil
				t.undoAppended(chain)
				return nil, nil, 0, false, errors.WithMessage(ErrResources, "btrie node")
			}
			place.child[bit] = node
			existed = false
		} else {
			appendPoint = place.child[bit]
			if pos+1 < masklen {
				appendBit = bitpos.Bit(addr, pos+1)
			}
		}
		place = place.child[bit]
	}

	return place, appendPoint, appendBit, existed, nil
}

// undoAppended frees a chain of nodes appended by addPath. Appended
// nodes can never have two children by construction, a fork here means
// the trie is corrupted.
func (t *Table[V]) undoAppended(n *btrieNode[V]) {
	for curr := n; curr != nil; {
		var next *btrieNode[V]
		switch {
		case curr.child[0] != nil && curr.child[1] != nil:
			t.quarantine("appended btrie nodes cannot have two children")
			return
		case curr.child[0] != nil:
			next = curr.child[0]
		default:
			next = curr.child[1]
		}
		t.debugNorm().Msg("free one temporary btrie node")
		t.freeBtrieNode(curr)
		curr = next
	}
}

// destroyBtrieSubtree frees a whole subtree. The btrie can be 128
// levels deep, so an explicit work stack is used instead of recursion.
func (t *Table[V]) destroyBtrieSubtree(n *btrieNode[V]) {
	if n == nil {
		return
	}
	stack := make([]*btrieNode[V], 0, bitpos.MaxMask)
	stack = append(stack, n)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.child[0] != nil {
			stack = append(stack, node.child[0])
		}
		if node.child[1] != nil {
			stack = append(stack, node.child[1])
		}
		t.freeBtrieNode(node)
	}
}

// dfsWalk visits the subtree in (value, left, right) order and calls
// walk for every node holding a value, reconstructing the prefix bits
// in addr during descent. After the right child the prefix bit is
// cleared again so the caller sees a stable address buffer.
//
// Recursion depth is bounded by MaxMask+1.
func (n *btrieNode[V]) dfsWalk(addr []byte, pos int, walk WalkFunc[V]) error {
	if n.val != nil {
		if err := walk(addr, pos, *n.val); err != nil {
			return errors.WithMessagef(ErrExotic, "walker: %v", err)
		}
	}

	if n.child[0] != nil {
		bitpos.Clear(addr, pos)
		if err := n.child[0].dfsWalk(addr, pos+1, walk); err != nil {
			return err
		}
	}

	if n.child[1] != nil {
		bitpos.Set(addr, pos)
		err := n.child[1].dfsWalk(addr, pos+1, walk)
		// recover the buffer for the caller, eg. 128.0.0.0/2 and 80.0.0.0/4
		bitpos.Clear(addr, pos)
		if err != nil {
			return err
		}
	}

	return nil
}
