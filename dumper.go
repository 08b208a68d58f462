// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import (
	"fmt"
	"io"
	"strings"

	"github.com/ytinirt/lpm/internal/bitpos"
)

// ##################################################
//  useful during development, debugging and testing
// ##################################################

// dumpString is just a wrapper for DumpMtrie.
func (t *Table[V]) dumpString() string {
	w := new(strings.Builder)
	t.DumpMtrie(w)

	return w.String()
}

// DumpMtrie writes the mtrie structure to w: one line per populated
// entry, indented by level, child blocks rec-descent. Diagnostic only.
func (t *Table[V]) DumpMtrie(w io.Writer) {
	if t == nil {
		fmt.Fprintln(w, "lpm: table not found")
		return
	}

	t.opLog().Msg("dump mtrie")

	fmt.Fprintf(w, "### M-trie [%s]: blocks(%d) data(%d)\n", t.name, t.stat.MtrieBlocks, t.stat.DataTotal)
	if t.mtrieRoot == nil {
		fmt.Fprintln(w, "### destroyed")
		return
	}

	var path [bitpos.MaxLevel]byte
	t.dumpBlockRec(w, t.mtrieRoot, path, 0)
}

// dumpBlockRec, rec-descent the block tree, depth bounded by MaxLevel.
func (t *Table[V]) dumpBlockRec(w io.Writer, b *mtrieBlock[V], path [bitpos.MaxLevel]byte, level int) {
	indent := strings.Repeat(".", level)

	vals, bases := 0, 0
	for i := range b.entry {
		if b.entry[i].val != nil {
			vals++
		}
		if b.entry[i].base != nil {
			bases++
		}
	}

	fmt.Fprintf(w, "\n%s[block] level: %d path: [%s] vals(#%d) childs(#%d)\n",
		indent, level, pathString(path, level), vals, bases)

	for i := range b.entry {
		e := &b.entry[i]
		if e.val == nil && e.base == nil {
			continue
		}
		fmt.Fprintf(w, "%s0x%02x:", indent, i)
		if e.val != nil {
			fmt.Fprintf(w, " val(%v)", *e.val)
		}
		if e.base != nil {
			fmt.Fprintf(w, " base(->%d)", level+1)
		}
		fmt.Fprintln(w)
	}

	for i := range b.entry {
		if child := b.entry[i].base; child != nil {
			path[level] = byte(i)
			t.dumpBlockRec(w, child, path, level+1)
		}
	}
}

// pathString renders the stride path octets up to level.
func pathString(path [bitpos.MaxLevel]byte, level int) string {
	parts := make([]string, 0, level)
	for i := 0; i < level; i++ {
		parts = append(parts, fmt.Sprintf("%d", path[i]))
	}
	return strings.Join(parts, ".")
}
