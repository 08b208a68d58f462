// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import (
	"fmt"
	"io"
	"strings"
	"unsafe"

	"github.com/ytinirt/lpm/internal/bitpos"
)

// Stats are the table counters. While a table is live BtrieNodes >= 1
// and MtrieBlocks >= 1 (the roots); DataTotal equals the number of
// btrie nodes holding a value and the sum over DataPerMasklen.
//
// The counters are written by the single writer only, concurrent reads
// are advisory.
type Stats struct {
	BtrieNodes         int
	BtrieNodeFailures  uint32
	MtrieBlocks        int
	MtrieBlockFailures uint32

	DataTotal      int
	DataPerMasklen [bitpos.MaxMask + 1]uint32
}

// Stats returns a snapshot of the table counters.
func (t *Table[V]) Stats() Stats {
	if t == nil {
		return Stats{}
	}
	return t.stat
}

// FprintStatistic writes the statistics block to w. With the normal
// debug channel enabled a per-masklen star histogram is included.
func (t *Table[V]) FprintStatistic(w io.Writer) {
	if t == nil {
		fmt.Fprintln(w, "lpm: table not found")
		return
	}

	t.opLog().Msg("print statistic")

	btrieMem := float64(t.stat.BtrieNodes) * float64(unsafe.Sizeof(btrieNode[V]{})) / 1e6
	mtrieMem := float64(t.stat.MtrieBlocks) * float64(unsafe.Sizeof(mtrieBlock[V]{})) / 1e6

	fmt.Fprintf(w, "LPM Table [%s] statistic:\n", t.name)
	fmt.Fprintf(w, "\tB-trie allocated nodes: %d nodes, [%.3f MB]\n", t.stat.BtrieNodes, btrieMem)
	fmt.Fprintf(w, "\tB-trie allocated failure: %d times\n", t.stat.BtrieNodeFailures)
	fmt.Fprintf(w, "\tM-trie allocated blocks: %d blocks, [%.3f MB]\n", t.stat.MtrieBlocks, mtrieMem)
	fmt.Fprintf(w, "\tM-trie allocated failure: %d times\n", t.stat.MtrieBlockFailures)
	fmt.Fprintf(w, "\tLPM Table valid data total count: [%d]\n", t.stat.DataTotal)

	if t.debug&flagNorm != 0 && t.stat.DataTotal > 0 {
		for i := 0; i <= bitpos.MaxMask; i++ {
			cnt := t.stat.DataPerMasklen[i]
			if cnt == 0 {
				continue
			}
			stars := int(cnt) * 100 / t.stat.DataTotal
			if stars == 0 {
				stars = 1
			}
			if stars > 100 {
				t.debugAlg().Int("masklen", i).Msg("per-masklen count larger than total")
				stars = 100
			}
			fmt.Fprintf(w, "\t  /%-3d [%4d]: %s\n", i, cnt, strings.Repeat("*", stars))
		}
	}

	fmt.Fprintf(w, "\tTotal memory size: %.3f MB\n", btrieMem+mtrieMem)
}
