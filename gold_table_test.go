// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// goldTable is the dumbest possible reference: a slice of bindings,
// looked up by scanning all of them. Slow, but easy to verify by
// inspection.
type goldTable []goldEntry

type goldEntry struct {
	addr    [16]byte
	masklen int
	val     int
}

func (g goldTable) lookup(addr []byte) (val int, ok bool) {
	best := -1
	for _, e := range g {
		if e.masklen > best && prefixMatches(e.addr, e.masklen, addr) {
			best = e.masklen
			val = e.val
		}
	}
	return val, best >= 0
}

func prefixMatches(pfx [16]byte, masklen int, addr []byte) bool {
	full := masklen >> 3
	for i := 0; i < full; i++ {
		if pfx[i] != addr[i] {
			return false
		}
	}
	if rem := masklen & 7; rem != 0 {
		mask := byte(0xFF) << (8 - rem)
		if pfx[full]&mask != addr[full]&mask {
			return false
		}
	}
	return true
}

func randomPrefix(rng *rand.Rand, width int) ([]byte, int) {
	masklen := rng.Intn(width*8 + 1)
	addr := make([]byte, width)
	rng.Read(addr)
	// canonicalize, bits beyond masklen zero
	for i := (masklen + 7) / 8; i < width; i++ {
		addr[i] = 0
	}
	if rem := masklen & 7; rem != 0 {
		addr[masklen/8] &= byte(0xFF) << (8 - rem)
	}
	return addr, masklen
}

func randomAddr(rng *rand.Rand, width int) []byte {
	addr := make([]byte, width)
	rng.Read(addr)
	return addr
}

func TestGoldRandomV4(t *testing.T) {
	t.Parallel()
	testGoldRandom(t, 4, 400, 2000)
}

func TestGoldRandomV6(t *testing.T) {
	t.Parallel()
	testGoldRandom(t, 16, 400, 2000)
}

// testGoldRandom verifies that search results after a bunch of random
// inserts and deletes exactly match those of the naive reference.
func testGoldRandom(t *testing.T, width, numPfx, numProbes int) {
	rng := rand.New(rand.NewSource(42))

	tbl, err := New[int](fmt.Sprintf("gold-%d", width))
	require.NoError(t, err)

	var gold goldTable
	seen := map[string]bool{}

	for i := 0; len(gold) < numPfx; i++ {
		addr, masklen := randomPrefix(rng, width)
		key := fmt.Sprintf("%x/%d", addr, masklen)
		if seen[key] {
			continue
		}
		seen[key] = true

		require.NoError(t, tbl.Add(addr, masklen, i))

		var e goldEntry
		copy(e.addr[:], addr)
		e.masklen = masklen
		e.val = i
		gold = append(gold, e)
	}

	compare := func(stage string) {
		probeRng := rand.New(rand.NewSource(1234))
		for i := 0; i < numProbes; i++ {
			probe := randomAddr(probeRng, width)
			wantVal, wantOK := gold.lookup(probe)
			gotVal, _, gotOK := tbl.Search(probe)
			require.Equal(t, wantOK, gotOK, "%s: probe %x", stage, probe)
			if wantOK {
				require.Equal(t, wantVal, gotVal, "%s: probe %x", stage, probe)
			}
		}
	}

	compare("after insert")

	// exact match must hold for every binding
	for _, e := range gold {
		val, ok := tbl.Find(e.addr[:width], e.masklen)
		require.True(t, ok)
		require.Equal(t, e.val, val)
	}

	// insertion order must not matter, for disjoint and nested
	// prefixes alike: a shuffled clone answers identically
	shuffled := append(goldTable{}, gold...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	tbl2, err := New[int]("gold-shuffled")
	require.NoError(t, err)
	for _, e := range shuffled {
		require.NoError(t, tbl2.Add(e.addr[:width], e.masklen, e.val))
	}
	probeRng := rand.New(rand.NewSource(99))
	for i := 0; i < numProbes; i++ {
		probe := randomAddr(probeRng, width)
		v1, _, ok1 := tbl.Search(probe)
		v2, _, ok2 := tbl2.Search(probe)
		require.Equal(t, ok1, ok2, "probe %x", probe)
		if ok1 {
			require.Equal(t, v1, v2, "probe %x", probe)
		}
	}
	require.NoError(t, tbl2.Destroy())

	// delete every other binding and compare again
	var kept goldTable
	for i, e := range gold {
		if i%2 == 0 {
			require.NoError(t, tbl.Delete(e.addr[:width], e.masklen))
			_, ok := tbl.Find(e.addr[:width], e.masklen)
			require.False(t, ok)
			continue
		}
		kept = append(kept, e)
	}
	gold = kept

	compare("after delete")

	require.NoError(t, tbl.Destroy())
	stat := tbl.Stats()
	require.Zero(t, stat.BtrieNodes)
	require.Zero(t, stat.MtrieBlocks)
}
