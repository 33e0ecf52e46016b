// Package system wires four cores, their private L1 caches, the shared
// snoopy bus, and main memory into the complete machine, and drives it one
// cycle at a time in the nine-phase order this design requires:
//
//  1. reset the bus wires to idle
//  2. gather each agent's bus request
//  3. arbitrate among the five agents
//  4. drive the granted demand onto the wires
//  5. snoop: caches react to remote commands, capture fills, drive flush
//     words, and memory observes the transaction
//  6. latch the shared bit for every cache waiting on this block's fill
//  7. emit this cycle's traces
//  8. step every core's pipeline by one cycle
//  9. check for termination
package system

import (
	"github.com/archsim-go/cmpsim/bus"
	"github.com/archsim-go/cmpsim/config"
	"github.com/archsim-go/cmpsim/core"
	"github.com/archsim-go/cmpsim/mainmem"
	"github.com/archsim-go/cmpsim/mesi"
)

// NumCores is the number of cores in the machine.
const NumCores = 4

// System is the complete four-core machine.
type System struct {
	cfg *config.SimConfig

	Cores   [NumCores]*core.Core
	Caches  [NumCores]*mesi.Cache
	Bus     *bus.Bus
	Memory  *mainmem.Memory

	cycle uint64

	// BusTrace and CoreTrace accumulate one entry per cycle for every
	// cycle in which something trace-worthy happened, in cycle order.
	BusTrace  []BusTraceEntry
	CoreTrace [NumCores][]CoreTraceEntry
}

// BusTraceEntry is one cycle's bus activity, emitted only when the wires
// carry a real command.
type BusTraceEntry struct {
	Cycle  uint64
	Origin int
	Cmd    bus.Cmd
	Addr   uint32
	Data   uint32
	Shared bool
}

// CoreTraceEntry is one cycle's snapshot of a core's pipeline stages, plus
// its full register file, emitted for every cycle the core is not halted.
type CoreTraceEntry struct {
	Cycle uint64

	// Each stage's program counter, or -1 if that stage holds a bubble.
	IF, ID, EX, MEM, WB int

	Regs [16]uint32
}

// New builds an idle machine using cfg's tunables.
func New(cfg *config.SimConfig) *System {
	s := &System{
		cfg:    cfg,
		Bus:    bus.New(),
		Memory: mainmem.New(cfg.MemoryLatency),
	}
	for i := 0; i < NumCores; i++ {
		s.Caches[i] = mesi.New(i, cfg.TagCheckLatency)
		s.Cores[i] = core.New(i, s.Caches[i])
	}
	return s
}

// LoadProgram installs core i's instruction image.
func (s *System) LoadProgram(i int, words []uint32) { s.Cores[i].LoadProgram(words) }

// LoadMemory installs the initial contents of main memory.
func (s *System) LoadMemory(words []uint32) {
	for addr, w := range words {
		s.Memory.SetWord(uint32(addr), w)
	}
}

// AllHalted reports whether every core has retired HALT.
func (s *System) AllHalted() bool {
	for _, c := range s.Cores {
		if !c.Halted() {
			return false
		}
	}
	return true
}

// Cycle returns the number of cycles executed so far.
func (s *System) Cycle() uint64 { return s.cycle }

// Run steps the machine until every core has halted or the configured
// safety cycle bound is exceeded, and reports which.
func (s *System) Run() (overran bool) {
	for {
		if s.AllHalted() {
			return false
		}
		if s.cycle >= s.cfg.SafetyCycleBound {
			return true
		}
		s.Tick()
	}
}

func (s *System) anyCacheFlushing() bool {
	for _, c := range s.Caches {
		if c.IsFlushing() {
			return true
		}
	}
	return false
}

// Tick advances the whole machine by exactly one cycle.
func (s *System) Tick() {
	// Phase 1: reset wires.
	s.Bus.ResetWires()

	// Phase 2: gather requests.
	var reqs [bus.NumAgents]bus.Request
	for i, c := range s.Caches {
		reqs[i] = c.WantsBus()
	}
	reqs[bus.MemoryAgentID] = s.Memory.WantsBus()

	// Phase 3: arbitrate.
	flushActive := s.anyCacheFlushing()
	granted := s.Bus.Arbitrate(reqs, flushActive)

	// Phase 4: drive demand.
	switch {
	case granted == bus.MemoryAgentID:
		s.Memory.OnGranted()
	case granted != bus.NoAgent:
		cache := s.Caches[granted]
		if req := reqs[granted]; req.Cmd == bus.Flush {
			cache.OnEvictionGranted()
		} else {
			s.Bus.DriveCommand(granted, req.Cmd, req.Addr)
			cache.OnGranted()
		}
	case s.Bus.Busy() && !s.anyCacheFlushing() && !s.Memory.IsBursting() && reqs[bus.MemoryAgentID].Want:
		// The bus stays busy for a transaction's entire lifetime so Arbitrate
		// won't interleave a new demand mid-flight, but that same busy flag
		// also blocks Arbitrate from ever handing memory the floor once its
		// latency countdown reaches zero — memory is the already-granted
		// transaction's responder, not a new grantee, so it takes over here
		// directly instead of through Arbitrate.
		s.Memory.OnGranted()
	}

	// Phase 5: snoop / response. At most one agent drives the data phase
	// at a time (the single-transaction bus has only ever one responder);
	// a cache mid-flush (eviction or intervention) takes priority over a
	// bursting memory, since memory's own burst cannot even begin until
	// no cache holds the block Modified.
	switch {
	case s.flushingCache() != nil:
		fc := s.flushingCache()
		done := fc.DriveFlush(s.Bus)
		for _, c := range s.Caches {
			if c != fc {
				c.AssertSharedIfPresent(s.Bus, s.Bus.Wires().Addr)
			}
		}
		w := s.Bus.Wires()
		for _, c := range s.Caches {
			if c != fc {
				c.SnoopFill(w)
			}
		}
		s.Memory.Observe(w)
		if done {
			s.Bus.Release()
		}
	case s.Memory.IsBursting():
		done := s.Memory.DriveBurstWord(s.Bus)
		for _, c := range s.Caches {
			c.AssertSharedIfPresent(s.Bus, s.Bus.Wires().Addr)
		}
		w := s.Bus.Wires()
		for _, c := range s.Caches {
			c.SnoopFill(w)
		}
		if done {
			s.Bus.Release()
		}
	default:
		w := s.Bus.Wires()
		if w.Cmd == bus.BusRd || w.Cmd == bus.BusRdX {
			for _, c := range s.Caches {
				c.SnoopRemote(s.Bus, w)
			}
		}
		s.Memory.Observe(w)
	}
	s.Memory.Tick()

	// Phase 7: trace.
	s.traceCycle()

	// Phase 8: clock edge.
	for _, c := range s.Cores {
		c.Tick()
	}

	s.cycle++
}

func (s *System) flushingCache() *mesi.Cache {
	for _, c := range s.Caches {
		if c.IsFlushing() {
			return c
		}
	}
	return nil
}

func (s *System) traceCycle() {
	w := s.Bus.Wires()
	if w.Cmd != bus.NoCmd {
		s.BusTrace = append(s.BusTrace, BusTraceEntry{
			Cycle:  s.cycle,
			Origin: w.Origin,
			Cmd:    w.Cmd,
			Addr:   w.Addr,
			Data:   w.Data,
			Shared: w.Shared,
		})
	}

	for i, c := range s.Cores {
		if c.Halted() {
			continue
		}
		fetchPC := -1
		if !c.HaltDecoded() {
			fetchPC = int(c.PC)
		}
		s.CoreTrace[i] = append(s.CoreTrace[i], CoreTraceEntry{
			Cycle: s.cycle,
			IF:    fetchPC,
			ID:    stagePC(c.IFID.Valid, int(c.IFID.PC)),
			EX:    stagePC(c.IDEX.Valid, int(c.IDEX.PC)),
			MEM:   stagePC(c.EXMEM.Valid, int(c.EXMEM.PC)),
			WB:    stagePC(c.MEMWB.Valid, int(c.MEMWB.PC)),
			Regs:  c.Regs.Snapshot(),
		})
	}
}

func stagePC(valid bool, pc int) int {
	if !valid {
		return -1
	}
	return pc
}
