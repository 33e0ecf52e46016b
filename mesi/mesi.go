// Package mesi implements each core's private L1 data cache: a 64-set,
// direct-mapped, 8-word-block cache kept coherent by the MESI protocol over
// the shared snoopy bus.
//
// Tag and validity/dirty bookkeeping is delegated to an Akita cache
// directory pinned to one-way associativity, which makes its LRU victim
// selection degenerate to "the one line in this set" — exactly the
// direct-mapped replacement this design calls for. The Shared/Exclusive
// distinction MESI needs beyond plain valid/dirty is tracked in a parallel
// per-set state array alongside it.
package mesi

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/archsim-go/cmpsim/bus"
)

// NumSets is the number of direct-mapped sets.
const NumSets = 64

// BlockWords is the block size, in words.
const BlockWords = 8

// noAddr is the "no pending address" sentinel; it is not block-aligned so
// it can never collide with a real block base.
const noAddr = ^uint32(0)

// State is a line's MESI coherence state.
type State uint8

// The four MESI states. Invalid is the zero value.
const (
	Invalid State = iota
	Shared
	Exclusive
	Modified
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "I"
	case Shared:
		return "S"
	case Exclusive:
		return "E"
	case Modified:
		return "M"
	default:
		return "?"
	}
}

// Stats accumulates a cache's lifetime demand-access counters. Each counter
// increments only at the first observation of a given demand address, never
// again on the stall cycles or the post-fill retry that follow it.
type Stats struct {
	ReadHits   uint64
	WriteHits  uint64
	ReadMisses uint64
	WriteMisses uint64
}

// Cache is one core's private L1 data cache.
type Cache struct {
	coreID int

	dir   *akitacache.DirectoryImpl
	state [NumSets]State
	data  [NumSets][BlockWords]uint32

	stats Stats

	pendingAddr   uint32 // noAddr when idle
	pendingWrite  bool
	pendingData   uint32

	tagCheckLatency   uint64
	tagCheckActive    bool
	tagCheckRemaining uint64

	waitingForFill bool
	sharedOnBus    bool

	evictPending bool
	evictBase    uint32

	flushing           bool
	flushBase          uint32
	flushOffset        int
	flushAssertsShared bool
	flushIsEviction    bool
}

// New returns an empty (all-Invalid) cache for the given core id (0..3).
// tagCheckLatency is the number of cycles the SRAM tag comparison takes
// before a miss is registered and offered to the bus.
func New(coreID int, tagCheckLatency uint64) *Cache {
	return &Cache{
		coreID:          coreID,
		dir:             akitacache.NewDirectory(NumSets, 1, BlockWords, akitacache.NewLRUVictimFinder()),
		pendingAddr:     noAddr,
		evictBase:       noAddr,
		tagCheckLatency: tagCheckLatency,
	}
}

func blockBase(addr uint32) uint32 { return (addr / BlockWords) * BlockWords }

// setAndTag returns the set index and tag for a word address.
func setAndTag(addr uint32) (set int, tag uint64) {
	blk := uint64(blockBase(addr))
	return int((blk / BlockWords) % NumSets), blk
}

func (c *Cache) lineFor(addr uint32) (set int, tag uint64, block *akitacache.Block) {
	set, tag = setAndTag(addr)
	block = c.dir.FindVictim(tag)
	return
}

// Stats returns the cache's lifetime statistics.
func (c *Cache) Stats() Stats { return c.stats }

// DumpTag returns the TSRAM encoding of set s: (state in bits 13:12) |
// (tag in bits 11:0).
func (c *Cache) DumpTag(s int) uint32 {
	block := c.dir.FindVictim(uint64(s * BlockWords))
	var tag uint32
	if block != nil {
		tag = uint32(block.Tag/BlockWords) / NumSets
	}
	return uint32(c.state[s])<<12 | (tag & 0xFFF)
}

// DumpData returns the DSRAM word at set s, offset o.
func (c *Cache) DumpData(s, o int) uint32 { return c.data[s][o] }

// Read services a demand load from the Memory pipeline stage. completed is
// false while the access is stalled (tag check, miss registration, or
// waiting on a fill/eviction); the caller keeps calling Read with the same
// address every cycle until completed is true.
func (c *Cache) Read(addr uint32) (value uint32, completed bool) {
	set, tag, block := c.lineFor(addr)
	hit := block != nil && block.IsValid && block.Tag == tag && c.state[set] != Invalid

	if hit {
		c.dir.Visit(block)
		if c.pendingAddr == addr {
			c.pendingAddr = noAddr
		} else {
			c.stats.ReadHits++
		}
		return c.data[set][addr%BlockWords], true
	}

	return 0, c.handleMiss(addr, set, tag, block, false, 0)
}

// Write services a demand store from the Memory pipeline stage. Semantics
// mirror Read; a hit requires Exclusive or Modified state (Shared must
// first be upgraded via BusRdX).
func (c *Cache) Write(addr uint32, data uint32) (completed bool) {
	set, tag, block := c.lineFor(addr)
	hit := block != nil && block.IsValid && block.Tag == tag &&
		(c.state[set] == Exclusive || c.state[set] == Modified)

	if hit {
		c.dir.Visit(block)
		if c.pendingAddr == addr {
			c.pendingAddr = noAddr
		} else {
			c.stats.WriteHits++
		}
		c.data[set][addr%BlockWords] = data
		c.state[set] = Modified
		block.IsDirty = true
		return true
	}

	return c.handleMiss(addr, set, tag, block, true, data)
}

func (c *Cache) handleMiss(addr uint32, set int, tag uint64, block *akitacache.Block, isWrite bool, data uint32) bool {
	if c.pendingAddr == addr {
		return false // already registered; still waiting on eviction/fill
	}

	if block != nil && block.IsValid && block.Tag != tag && c.state[set] == Modified &&
		!c.evictPending && !c.flushing {
		c.evictPending = true
		c.evictBase = uint32(block.Tag)
		return false
	}
	if c.evictPending || (c.flushing && c.flushIsEviction) {
		return false
	}

	if !c.tagCheckActive {
		c.tagCheckActive = true
		c.tagCheckRemaining = c.tagCheckLatency
	}
	if c.tagCheckRemaining > 0 {
		c.tagCheckRemaining--
		return false
	}
	c.tagCheckActive = false

	if isWrite {
		c.stats.WriteMisses++
	} else {
		c.stats.ReadMisses++
	}
	c.pendingAddr = addr
	c.pendingWrite = isWrite
	c.pendingData = data
	c.sharedOnBus = false
	return false
}

// WantsBus reports whether this cache should be offered the bus this cycle.
func (c *Cache) WantsBus() bus.Request {
	if c.evictPending {
		return bus.Request{Want: true, Cmd: bus.Flush, Addr: c.evictBase}
	}
	if c.pendingAddr != noAddr && !c.waitingForFill {
		cmd := bus.BusRd
		if c.pendingWrite {
			cmd = bus.BusRdX
		}
		return bus.Request{Want: true, Cmd: cmd, Addr: c.pendingAddr}
	}
	return bus.Request{}
}

// OnEvictionGranted transitions a pending eviction into its flush (phase 4);
// the first word is driven on the next call to DriveFlush.
func (c *Cache) OnEvictionGranted() {
	set, _ := setAndTag(c.evictBase)
	c.evictPending = false
	c.flushing = true
	c.flushIsEviction = true
	c.flushAssertsShared = false
	c.flushBase = c.evictBase
	c.flushOffset = 0
	c.state[set] = Invalid
}

// OnGranted marks this cache's own demand as placed on the wires; it now
// waits for the fill instead of re-requesting the bus.
func (c *Cache) OnGranted() {
	c.waitingForFill = true
}

// IsFlushing reports whether this cache currently owns the bus's data
// phase, driving an eviction or snoop-intervention flush.
func (c *Cache) IsFlushing() bool { return c.flushing }

// DriveFlush drives the next word of an active flush onto the wires,
// returning true once the eighth (last) word has been placed.
func (c *Cache) DriveFlush(b *bus.Bus) (done bool) {
	set, _ := setAndTag(c.flushBase)
	addr := c.flushBase + uint32(c.flushOffset)
	b.DriveFlushWord(c.coreID, addr, c.data[set][c.flushOffset], c.flushAssertsShared)

	c.flushOffset++
	if c.flushOffset == BlockWords {
		c.flushing = false
		c.flushOffset = 0
		return true
	}
	return false
}

// SnoopRemote reacts to another agent's freshly placed BusRd/BusRdX. It
// asserts Shared on the bus when this cache holds a clean copy, and begins
// an intervention flush when it holds the only valid copy, Modified. In
// every case the line moves to its post-snoop state at once (Shared for
// BusRd, Invalid for BusRdX), before any flush word is driven.
func (c *Cache) SnoopRemote(b *bus.Bus, w bus.Wires) {
	if w.Origin == c.coreID || (w.Cmd != bus.BusRd && w.Cmd != bus.BusRdX) {
		return
	}

	set, tag := setAndTag(w.Addr)
	block := c.dir.FindVictim(tag)
	if block == nil || !block.IsValid || block.Tag != tag || c.state[set] == Invalid {
		return
	}

	switch c.state[set] {
	case Modified:
		c.flushing = true
		c.flushIsEviction = false
		c.flushAssertsShared = true
		c.flushBase = blockBase(w.Addr)
		c.flushOffset = 0
		block.IsDirty = false
		if w.Cmd == bus.BusRdX {
			c.state[set] = Invalid
		} else {
			c.state[set] = Shared
		}
	case Exclusive, Shared:
		b.AssertShared()
		if w.Cmd == bus.BusRdX {
			c.state[set] = Invalid
		} else {
			c.state[set] = Shared
		}
	}
}

// AssertSharedIfPresent asserts the bus's shared wire if this cache holds a
// valid copy of addr's block. Called on every cache during every cycle of a
// Flush burst (whether driven by memory or by another cache's intervention),
// since the requester's eventual MESI state depends on whether ANY other
// cache had company at any point during the whole transfer, not just the
// instant the demand was first placed.
func (c *Cache) AssertSharedIfPresent(b *bus.Bus, addr uint32) {
	set, tag := setAndTag(addr)
	block := c.dir.FindVictim(tag)
	if block != nil && block.IsValid && block.Tag == tag && c.state[set] != Invalid {
		b.AssertShared()
	}
}

// SnoopFill observes the wires for the Flush burst satisfying this cache's
// own pending miss, capturing each word as it arrives and latching the
// shared bit observed during the transfer. On the eighth word it installs
// the new tag and resolves the final MESI state: Modified if the pending
// access was a write, Exclusive if no peer asserted shared, Shared
// otherwise.
func (c *Cache) SnoopFill(w bus.Wires) {
	if w.Cmd != bus.Flush || !c.waitingForFill || c.pendingAddr == noAddr {
		return
	}
	if blockBase(c.pendingAddr) != blockBase(w.Addr) {
		return
	}

	if w.Shared {
		c.sharedOnBus = true
	}

	set, tag := setAndTag(c.pendingAddr)
	c.data[set][w.Addr%BlockWords] = w.Data

	if w.Addr%BlockWords != BlockWords-1 {
		return
	}

	block := c.dir.FindVictim(tag)
	block.Tag = tag
	block.IsValid = true

	if c.pendingWrite {
		c.data[set][c.pendingAddr%BlockWords] = c.pendingData
		c.state[set] = Modified
		block.IsDirty = true
	} else if c.sharedOnBus {
		c.state[set] = Shared
		block.IsDirty = false
	} else {
		c.state[set] = Exclusive
		block.IsDirty = false
	}

	c.waitingForFill = false
}
