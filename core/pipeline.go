// Package core implements one core's 5-stage in-order pipeline: Fetch,
// Decode, Execute, Memory, Writeback, plus the register file and the
// inter-stage latches connecting them.
//
// Tick steps the stages in WB,MEM,EX,ID,IF order — the reverse of program
// order. Running Writeback before Decode in the same cycle gives same-cycle
// read-after-write register forwarding for free: by the time Decode reads
// the register file, Writeback has already deposited its result, so the
// hazard unit never needs to consider the MEM/WB latch. Running Decode
// before Fetch lets a branch resolved in Decode steer the very Fetch that
// follows it in the same cycle, with no extra branch-delay latch.
package core

import "github.com/archsim-go/cmpsim/isa"

// Stats accumulates a core's lifetime pipeline counters. Cache-side hit and
// miss counters live on the cache itself; a caller combining the two for a
// stats dump reads both.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	DecodeStalls uint64
	MemStalls    uint64
}

// Core is one core: its architectural state, its private instruction
// memory (inside FetchStage), and the four latches wiring its five stages
// together.
type Core struct {
	ID int

	PC   uint32
	Regs RegFile

	IFID  IFIDLatch
	IDEX  IDEXLatch
	EXMEM EXMEMLatch
	MEMWB MEMWBLatch

	fetch     FetchStage
	decode    DecodeStage
	execute   ExecuteStage
	memory    *MemoryStage
	writeback WritebackStage

	haltDecoded bool
	halted      bool

	stats Stats
}

// New returns a core at PC 0 with an empty register file and pipeline,
// backed by cache for its Memory stage.
func New(id int, cache DataCache) *Core {
	return &Core{
		ID:     id,
		memory: NewMemoryStage(cache),
	}
}

// LoadProgram installs the instruction image into this core's instruction
// memory.
func (c *Core) LoadProgram(words []uint32) { c.fetch.LoadProgram(words) }

// Halted reports whether this core has retired HALT.
func (c *Core) Halted() bool { return c.halted }

// HaltDecoded reports whether this core has decoded HALT (Fetch is frozen
// from this cycle on, even though the core has not yet fully halted).
func (c *Core) HaltDecoded() bool { return c.haltDecoded }

// Stats returns this core's lifetime pipeline counters.
func (c *Core) Stats() Stats { return c.stats }

// Tick steps the pipeline by one cycle. It is a no-op once the core has
// halted.
func (c *Core) Tick() {
	if c.halted {
		return
	}
	c.stats.Cycles++

	oldIFID := c.IFID
	oldIDEX := c.IDEX
	oldEXMEM := c.EXMEM
	oldMEMWB := c.MEMWB

	wbRes := c.writeback.Writeback(oldMEMWB, &c.Regs)
	if oldMEMWB.Valid {
		c.stats.Instructions++
	}
	if wbRes.Halted {
		c.halted = true
	}

	memRes := c.memory.Memory(oldEXMEM)
	if memRes.Stall {
		c.stats.MemStalls++
		c.MEMWB.Clear()
		return // freeze EX/MEM, ID/EX, IF/ID, and PC until the access completes
	}
	c.MEMWB = memRes.Latch

	exRes := c.execute.Execute(oldIDEX)
	c.EXMEM = exRes.Latch

	decRes := c.decode.Decode(oldIFID, &c.Regs, oldIDEX, oldEXMEM)
	switch {
	case decRes.Stall:
		c.stats.DecodeStalls++
		c.IDEX.Clear()
	case decRes.Halted:
		c.haltDecoded = true
		c.IDEX = decRes.Latch
		c.IFID.Clear()
	default:
		c.IDEX = decRes.Latch
		c.IFID.Clear()
	}

	fetchBlocked := decRes.Stall || c.haltDecoded
	fetchAddr := c.PC
	if !fetchBlocked && decRes.BranchTaken {
		fetchAddr = decRes.BranchTarget
	}

	fetchRes := c.fetch.Fetch(fetchAddr, fetchBlocked)
	if !fetchBlocked {
		c.IFID = fetchRes.Latch
		c.PC = (fetchAddr + 1) & isa.PCMask
	}
}
