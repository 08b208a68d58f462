// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ytinirt/lpm/internal/bitpos"
)

const (
	// tableNameLen bounds the table name, terminator included.
	tableNameLen = 32

	defaultTableName = "Unknown"
)

// WalkFunc visits one binding during Walk. addr is big-endian with all
// bits beyond masklen zero; the buffer is only valid during the call.
// A non-nil return aborts the walk, surfacing as ErrExotic.
type WalkFunc[V comparable] func(addr []byte, masklen int, val V) error

// Table is a longest-prefix-match lookup table.
//
// Writers must be serialized by the embedder. Readers (Find, Search,
// Walk, Stats) may run concurrently with a single writer.
type Table[V comparable] struct {
	name  string
	log   zerolog.Logger
	alloc Allocator

	root      *btrieNode[V]  // btrie root, holds the zero route
	mtrieRoot *mtrieBlock[V] // level-0 block, always present while live

	defaultVal     *V
	defaultAddr    [bitpos.MaxLevel]byte
	defaultMasklen int

	debug   uint32
	corrupt bool

	stat Stats
}

type config struct {
	log   zerolog.Logger
	alloc Allocator
}

// Option configures a table at creation time.
type Option func(*config)

// WithLogger sets the logger carrying the debug channels and operation
// logs. The default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithAllocator sets the memory gate for all node, block and table
// allocations. The default never refuses.
func WithAllocator(alloc Allocator) Option {
	return func(c *config) { c.alloc = alloc }
}

// New creates a table. Both trie roots exist before New returns
// successfully, a refused allocation yields ErrResources with nothing
// left allocated.
//
// The name is bounded at 31 bytes, an empty name becomes "Unknown".
func New[V comparable](name string, opts ...Option) (*Table[V], error) {
	cfg := config{
		log:   zerolog.Nop(),
		alloc: heapAllocator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if name == "" {
		name = defaultTableName
	}
	if len(name) > tableNameLen-1 {
		name = name[:tableNameLen-1]
	}

	if !cfg.alloc.Alloc(unsafe.Sizeof(Table[V]{})) {
		return nil, errors.WithMessage(ErrResources, "table control block")
	}

	t := &Table[V]{
		name:  name,
		log:   cfg.log,
		alloc: cfg.alloc,
	}

	if t.root = t.newBtrieNode(); t.root == nil {
		t.alloc.Free(unsafe.Sizeof(Table[V]{}))
		return nil, errors.WithMessage(ErrResources, "btrie root")
	}
	if t.mtrieRoot = t.newMtrieBlock(); t.mtrieRoot == nil {
		t.freeBtrieNode(t.root)
		t.alloc.Free(unsafe.Sizeof(Table[V]{}))
		return nil, errors.WithMessage(ErrResources, "mtrie root block")
	}

	t.opLog().Msg("table created")

	return t, nil
}

// Destroy releases every btrie node and mtrie block and returns the
// accounted memory to the allocator. Caller values are not touched.
// Counters for nodes and blocks reach zero. The table is unusable
// afterwards.
func (t *Table[V]) Destroy() error {
	if t == nil {
		return errors.WithMessage(ErrInvalid, "table is nil")
	}
	if t.root == nil && t.mtrieRoot == nil {
		return errors.WithMessage(ErrInvalid, "table already destroyed")
	}

	t.opLog().Msg("table destroyed")

	t.freeMtrieBlock(t.mtrieRoot)
	t.mtrieRoot = nil

	t.destroyBtrieSubtree(t.root)
	t.root = nil

	t.defaultVal = nil
	t.defaultAddr = [bitpos.MaxLevel]byte{}
	t.defaultMasklen = 0

	t.alloc.Free(unsafe.Sizeof(Table[V]{}))

	return nil
}

// Name returns the table name.
func (t *Table[V]) Name() string {
	return t.name
}

func (t *Table[V]) checkArg(addr []byte, masklen int) error {
	if t == nil {
		return errors.WithMessage(ErrInvalid, "table is nil")
	}
	if masklen < 0 || masklen > bitpos.MaxMask {
		return errors.WithMessagef(ErrInvalid, "masklen %d out of range", masklen)
	}
	if masklen > 0 && addr == nil {
		return errors.WithMessage(ErrInvalid, "address must not be nil while masklen > 0")
	}
	if len(addr) < bitpos.ByteCount(masklen) {
		return errors.WithMessagef(ErrInvalid, "address too short for masklen %d", masklen)
	}
	return nil
}

// scratch copies the significant bytes of addr into a zero-padded
// buffer. Expansion and delete flip bits below the mask in place, the
// caller's slice must stay untouched.
func scratch(addr []byte, masklen int) []byte {
	var tmp [bitpos.MaxLevel]byte
	copy(tmp[:], addr[:bitpos.ByteCount(masklen)])
	return tmp[:]
}

// maskedPrefix is scratch with the bits beyond masklen in the last
// significant byte cleared, the canonical form kept in the default
// slot and handed to walkers.
func maskedPrefix(addr []byte, masklen int) [bitpos.MaxLevel]byte {
	var tmp [bitpos.MaxLevel]byte
	if masklen > 0 {
		cnt := bitpos.ByteCount(masklen)
		copy(tmp[:], addr[:cnt])
		tmp[cnt-1] &= bitpos.NetMask(((masklen - 1) & 7) + 1)
	}
	return tmp
}

// Find does an exact-match lookup in the btrie. ok is false if no
// binding exists at addr/masklen.
func (t *Table[V]) Find(addr []byte, masklen int) (val V, ok bool) {
	if err := t.checkArg(addr, masklen); err != nil {
		return val, false
	}
	if t.root == nil {
		t.debugAlg().Msg("btrie missing")
		return val, false
	}

	vp := t.root.findValue(addr, masklen)

	t.opLog().Int("masklen", masklen).Bool("found", vp != nil).Msg("find")

	if vp == nil {
		return val, false
	}
	return *vp, true
}

// Search does the longest-prefix-match lookup. Performance is the key:
// one mtrie entry is touched per address byte, the btrie is never
// walked; only the zero-route value of its root is read.
//
// If no prefix in the mtrie covers addr the zero route is consulted,
// then the default slot; usedDefault reports the latter. ok is false
// when nothing matched at all.
func (t *Table[V]) Search(addr []byte) (val V, usedDefault bool, ok bool) {
	if t == nil || len(addr) == 0 {
		return val, false, false
	}
	blk := t.mtrieRoot
	if blk == nil || t.root == nil {
		return val, false, false
	}

	var best *V
	for level := 0; blk != nil && level < len(addr); level++ {
		e := &blk.entry[addr[level]]
		if e.val != nil {
			best = e.val
		}
		blk = e.base
	}

	if best == nil {
		// the zero route lives only in the btrie root
		best = t.root.val
	}
	if best == nil {
		if t.defaultVal != nil {
			return *t.defaultVal, true, true
		}
		return val, true, false
	}

	return *best, false, true
}

// Add binds val to addr/masklen. The prefix must not be bound yet:
// ErrExists reports the same value, ErrConflict a different one, in
// both cases the table is unchanged. A refused allocation rolls back
// the btrie path appended by this call and returns ErrResources.
func (t *Table[V]) Add(addr []byte, masklen int, val V) error {
	if err := t.checkArg(addr, masklen); err != nil {
		return err
	}
	if t.corrupt {
		return errors.WithMessage(ErrInternal, "table quarantined")
	}
	if t.root == nil || t.mtrieRoot == nil {
		t.debugAlg().Msg("btrie or mtrie missing")
		return errors.WithMessage(ErrInternal, "trie roots missing")
	}

	terminal, appendPoint, appendBit, existed, err := t.addPath(addr, masklen)
	if err != nil {
		return err
	}

	if terminal.val != nil {
		if *terminal.val == val {
			t.debugNorm().Msg("binding already exists")
			return ErrExists
		}
		t.debugNorm().Msg("binding conflicts with new value")
		return ErrConflict
	}

	vp := &val
	terminal.val = vp
	t.stat.DataTotal++
	t.stat.DataPerMasklen[masklen]++

	// the zero route is done now, it lives only in the btrie root
	if masklen == 0 {
		t.opLog().Int("masklen", masklen).Msg("add success")
		return nil
	}

	if err := t.expand(scratch(addr, masklen), masklen-1, terminal, vp); err != nil {
		if !errors.Is(err, ErrResources) {
			// expansion failures other than a refused allocation have
			// already quarantined the table
			return err
		}
		terminal.val = nil
		t.stat.DataTotal--
		t.stat.DataPerMasklen[masklen]--
		if !existed {
			chain := appendPoint.child[appendBit]
			appendPoint.child[appendBit] = nil
			t.undoAppended(chain)
			t.debugAlg().Msg("btrie path added but mtrie expansion failed, rolled back")
		} else {
			t.debugAlg().Msg("btrie path existed but mtrie expansion failed")
		}
		return err
	}

	t.opLog().Int("masklen", masklen).Msg("add success")

	return nil
}

// Update replaces the value of an existing binding and reruns the
// prefix expansion, so the mtrie reflects the new value exactly where
// the old one appeared. ErrNotFound if the binding does not exist.
func (t *Table[V]) Update(addr []byte, masklen int, val V) error {
	if err := t.checkArg(addr, masklen); err != nil {
		return err
	}
	if t.corrupt {
		return errors.WithMessage(ErrInternal, "table quarantined")
	}
	if t.root == nil || t.mtrieRoot == nil {
		t.debugAlg().Msg("btrie or mtrie missing")
		return errors.WithMessage(ErrInternal, "trie roots missing")
	}

	node := t.root.findNode(addr, masklen)
	if node == nil || node.val == nil {
		return errors.WithMessage(ErrNotFound, "nothing to update, add first")
	}

	old := node.val
	if *old != val {
		node.val = &val
	}

	if masklen == 0 {
		t.opLog().Int("masklen", masklen).Msg("update success")
		return nil
	}

	if err := t.expand(scratch(addr, masklen), masklen-1, node, node.val); err != nil {
		if errors.Is(err, ErrResources) {
			// cannot happen in practice: the footprint blocks were
			// materialized by Add and expansion reuses them
			node.val = old
		}
		return err
	}

	t.opLog().Int("masklen", masklen).Msg("update success")

	return nil
}

// Delete removes the binding at addr/masklen and repairs the mtrie:
// the freed range falls back to the closest less-specific binding, or
// is zeroed when none covers it; emptied block chains are shrunk.
// ErrNotFound if the binding does not exist.
//
// If the binding had been promoted to default data, the default slot
// is cleared as well.
func (t *Table[V]) Delete(addr []byte, masklen int) error {
	if err := t.checkArg(addr, masklen); err != nil {
		return err
	}
	if t.corrupt {
		return errors.WithMessage(ErrInternal, "table quarantined")
	}
	if t.root == nil || t.mtrieRoot == nil {
		t.debugAlg().Msg("btrie or mtrie missing")
		return errors.WithMessage(ErrInternal, "trie roots missing")
	}

	if masklen == 0 {
		if t.root.val == nil {
			t.debugNorm().Msg("no zero route bound")
			return errors.WithMessage(ErrNotFound, "zero route")
		}
		t.root.val = nil
		t.stat.DataTotal--
		t.stat.DataPerMasklen[0]--
		t.dropDefaultFor(addr, masklen)
		t.opLog().Int("masklen", masklen).Msg("delete success")
		return nil
	}

	err := t.deleteEntry(scratch(addr, masklen), masklen)
	if err != nil {
		return err
	}

	t.dropDefaultFor(addr, masklen)
	t.opLog().Int("masklen", masklen).Msg("delete success")

	return nil
}

// deleteEntry does the real delete work on a scratch address.
func (t *Table[V]) deleteEntry(addr []byte, masklen int) error {
	// walk down, remember the deepest valued ancestor: it becomes
	// authoritative again where the deleted binding was. The zero
	// route never takes this role, the mtrie fallback handles it.
	node := t.root
	lastKnown := node
	var lastVal *V
	lastPos := 0

	for pos := 0; pos < masklen; pos++ {
		node = node.child[bitpos.Bit(addr, pos)]
		if node == nil {
			t.debugNorm().Msg("no btrie node at prefix")
			return errors.WithMessage(ErrNotFound, "prefix")
		}
		if node.val != nil && pos != masklen-1 {
			lastKnown = node
			lastVal = node.val
			lastPos = pos
		}
	}

	if node.val == nil {
		t.debugNorm().Msg("no binding at prefix")
		return errors.WithMessage(ErrNotFound, "prefix")
	}

	pos := masklen - 1
	node.val = nil
	t.stat.DataTotal--
	t.stat.DataPerMasklen[masklen]--

	var err error
	switch {
	case lastVal != nil:
		if pos>>3 == lastPos>>3 {
			// same stride block: refill the freed range with the
			// less-specific value, more-specific bindings stay put
			err = t.expand(addr, lastPos, lastKnown, lastVal)
		} else {
			// different block: zero out, the block-level fallback in
			// Search reaches the less-specific value on its own
			err = t.expand(addr, pos, node, nil)
		}
	case node.child[0] != nil || node.child[1] != nil:
		// no less-specific, but more-specific bindings below: zero
		// out the range, their entries stay in place
		err = t.expand(addr, pos, node, nil)
	default:
		// nothing above, nothing below
		err = t.zeroOut(addr, masklen)
	}
	if err != nil {
		return err
	}

	if lastKnown == t.root {
		lastPos = -1
	}
	t.pruneSubtree(addr, lastKnown, lastPos)

	return nil
}

// dropDefaultFor clears the default slot if it was promoted from the
// prefix being deleted. The original engine left this case undefined.
func (t *Table[V]) dropDefaultFor(addr []byte, masklen int) {
	if t.defaultVal == nil || t.defaultMasklen != masklen {
		return
	}
	if maskedPrefix(addr, masklen) != t.defaultAddr {
		return
	}
	t.defaultVal = nil
	t.defaultAddr = [bitpos.MaxLevel]byte{}
	t.defaultMasklen = 0
	t.debugNorm().Msg("default data dropped with its prefix")
}

// UpdateDefault copies the value bound at addr/masklen together with
// its prefix into the default slot. ErrNotFound if the prefix does not
// resolve to a value.
func (t *Table[V]) UpdateDefault(addr []byte, masklen int) error {
	if err := t.checkArg(addr, masklen); err != nil {
		return err
	}
	if t.root == nil {
		t.debugAlg().Msg("btrie missing")
		return errors.WithMessage(ErrInternal, "btrie root missing")
	}

	vp := t.root.findValue(addr, masklen)
	if vp == nil {
		t.debugNorm().Msg("no binding to promote to default")
		return errors.WithMessage(ErrNotFound, "prefix")
	}

	t.defaultVal = vp
	t.defaultAddr = maskedPrefix(addr, masklen)
	t.defaultMasklen = masklen

	t.opLog().Int("masklen", masklen).Msg("default data updated")

	return nil
}

// DeleteDefault clears the default slot. The btrie binding the default
// was copied from is not touched. ErrNotFound if no default is set.
func (t *Table[V]) DeleteDefault() error {
	if t == nil {
		return errors.WithMessage(ErrInvalid, "table is nil")
	}
	if t.defaultVal == nil {
		t.debugNorm().Msg("no default data set")
		return errors.WithMessage(ErrNotFound, "default data")
	}

	t.defaultVal = nil
	t.defaultAddr = [bitpos.MaxLevel]byte{}
	t.defaultMasklen = 0

	t.opLog().Msg("default data deleted")

	return nil
}

// Walk visits every binding in depth-first prefix order, then the
// default entry if one is set. A walker error aborts the walk and
// surfaces as ErrExotic.
func (t *Table[V]) Walk(walk WalkFunc[V]) error {
	if t == nil {
		return errors.WithMessage(ErrInvalid, "table is nil")
	}
	if walk == nil {
		return errors.WithMessage(ErrInvalid, "walker is nil")
	}
	if t.root == nil {
		t.debugAlg().Msg("btrie missing")
		return errors.WithMessage(ErrInternal, "btrie root missing")
	}

	var addr [bitpos.MaxLevel]byte
	if err := t.root.dfsWalk(addr[:], 0, walk); err != nil {
		return err
	}

	if t.defaultVal != nil {
		if err := walk(t.defaultAddr[:], t.defaultMasklen, *t.defaultVal); err != nil {
			return errors.WithMessagef(ErrExotic, "walker: %v", err)
		}
	}

	return nil
}
