// Package mainmem models the latency-timed main memory controller: a flat
// word-addressed array behind a 16-cycle (configurable) first-word latency
// and an 8-word burst, write-snooped by every store that reaches the bus.
package mainmem

import "github.com/archsim-go/cmpsim/bus"

// Size is the machine's address space, in words.
const Size = 1 << 21

// BlockWords is the burst length: one cache block, eight words.
const BlockWords = 8

// Memory is the shared main-memory controller. It is not safe for
// concurrent use; system.System drives it from a single goroutine.
type Memory struct {
	words [Size]uint32

	latency uint64 // configured first-word latency, in cycles

	pending     bool   // a read has been latched and is timing out
	blockBase   uint32 // base (block-aligned) address of the pending read
	countdown   uint64 // cycles remaining before the burst may start
	bursting    bool
	burstOffset int // 0..BlockWords-1 while bursting, -1 otherwise
}

// New returns an idle memory controller with the given first-word latency.
func New(latency uint64) *Memory {
	return &Memory{latency: latency, burstOffset: -1}
}

// Word reads the raw contents of a word, bypassing timing. Used for the
// initial memin load and for the final memout dump.
func (m *Memory) Word(addr uint32) uint32 { return m.words[addr%Size] }

// SetWord writes the raw contents of a word, bypassing timing. Used for the
// initial memin load.
func (m *Memory) SetWord(addr uint32, v uint32) { m.words[addr%Size] = v }

// blockBaseOf returns the block-aligned base address containing addr.
func blockBaseOf(addr uint32) uint32 {
	return (addr / BlockWords) * BlockWords
}

// WantsBus reports whether memory should be offered the bus this cycle: it
// has finished counting down and is ready to start its burst, but has not
// yet been granted.
func (m *Memory) WantsBus() bus.Request {
	if m.pending && !m.bursting && m.countdown == 0 {
		return bus.Request{Want: true, Cmd: bus.Flush, Addr: m.blockBase}
	}
	return bus.Request{}
}

// OnGranted marks memory as now driving the burst, starting with word 0
// next time DriveBurstWord is called.
func (m *Memory) OnGranted() {
	m.bursting = true
	m.burstOffset = 0
}

// IsBursting reports whether memory currently owns the data phase.
func (m *Memory) IsBursting() bool { return m.bursting }

// DriveBurstWord drives the current burst word onto the wires and advances
// the burst offset, returning true once the eighth (last) word has been
// placed. The caller is responsible for releasing the bus and clearing the
// pending read when done is true.
func (m *Memory) DriveBurstWord(b *bus.Bus) (done bool) {
	addr := m.blockBase + uint32(m.burstOffset)
	b.DriveFlushWord(bus.MemoryAgentID, addr, m.words[addr%Size], false)

	m.burstOffset++
	if m.burstOffset == BlockWords {
		m.pending = false
		m.bursting = false
		m.burstOffset = -1
		return true
	}
	return false
}

// Observe reacts to the wires during phase 5: it starts a latency countdown
// upon seeing a fresh BusRd/BusRdX from a core, counts that timer down every
// subsequent idle cycle, writes through any Flush it sees (whether from a
// core's eviction or from an intervening cache), and aborts its own pending
// read if the Flush satisfies the exact block it was waiting to serve
// (cache-to-cache intervention beat it to the punch).
func (m *Memory) Observe(w bus.Wires) {
	switch w.Cmd {
	case bus.BusRd, bus.BusRdX:
		if w.Origin == bus.MemoryAgentID {
			return
		}
		if !m.pending {
			m.pending = true
			m.blockBase = blockBaseOf(w.Addr)
			m.countdown = m.latency
		}
	case bus.Flush:
		m.words[w.Addr%Size] = w.Data
		if w.Origin != bus.MemoryAgentID && m.pending && !m.bursting &&
			blockBaseOf(w.Addr) == m.blockBase {
			m.pending = false
		}
	}
}

// Tick counts down the latency timer while a read is pending but not yet
// bursting. system.System calls it once per cycle, right after the
// snoop/response phase.
func (m *Memory) Tick() {
	if m.pending && !m.bursting && m.countdown > 0 {
		m.countdown--
	}
}
