// Package bus models the shared single-transaction snoopy bus: the five
// driven wires (origin, command, address, data, shared) and the
// round-robin arbiter across the four cores and main memory.
//
// The bus itself only holds wire state and arbitration bookkeeping; it does
// not know how to react to a transaction (that is each cache's and memory's
// job). system.System drives it phase by phase per spec.md §5.
package bus

import "fmt"

// Cmd identifies the command currently driven on the bus wires.
type Cmd uint8

// Recognized bus commands. The zero value is the idle command.
const (
	NoCmd Cmd = 0
	BusRd Cmd = 1
	BusRdX Cmd = 2
	Flush Cmd = 3
)

func (c Cmd) String() string {
	switch c {
	case NoCmd:
		return "NoCmd"
	case BusRd:
		return "BusRd"
	case BusRdX:
		return "BusRdX"
	case Flush:
		return "Flush"
	default:
		return fmt.Sprintf("Cmd(%d)", uint8(c))
	}
}

// MemoryAgentID is the bus agent id used by main memory. Cores use ids 0..3.
const MemoryAgentID = 4

// NumAgents is the number of bus agents: four cores plus main memory.
const NumAgents = 5

// NoAgent is the sentinel "nobody" agent id.
const NoAgent = -1

// Wires is a snapshot of the five bus wires.
type Wires struct {
	Origin int
	Cmd    Cmd
	Addr   uint32
	Data   uint32
	Shared bool
}

// Request is one agent's desire to use the bus this cycle.
type Request struct {
	Want bool
	Cmd  Cmd
	Addr uint32
}

// Bus holds the driven wires and the arbiter's persistent state.
type Bus struct {
	wires Wires

	busy      bool
	grant     int // NoAgent if nobody currently owns the transaction
	rrPointer int // next agent index considered first in arbitration
}

// New creates an idle bus with the round-robin pointer at agent 0.
func New() *Bus {
	return &Bus{grant: NoAgent}
}

// Wires returns the current wire snapshot.
func (b *Bus) Wires() Wires { return b.wires }

// Busy reports whether a multi-cycle transaction currently owns the bus.
func (b *Bus) Busy() bool { return b.busy }

// Grantee returns the id of the agent that originally won the current
// transaction, or NoAgent if the bus is idle. This is the requester used for
// round-robin fairness and for "skip my own request" snoop checks; it is
// NOT necessarily who is driving data this cycle. system.System hands the
// data phase to whichever responder is ready — a cache mid-flush
// (eviction or snoop-driven intervention) by watching its own IsFlushing
// state directly, or main memory once its latency countdown reaches zero
// by calling OnGranted without going through Arbitrate again, since busy
// stays asserted for the grantee's whole transaction and would otherwise
// block the responder from ever taking over.
func (b *Bus) Grantee() int { return b.grant }

// ResetWires clears the driven wires to idle values. Called at the start of
// every cycle (phase 1); it does NOT touch busy, grant, or the round-robin
// pointer.
func (b *Bus) ResetWires() {
	b.wires = Wires{Origin: NoAgent, Cmd: NoCmd}
}

// Arbitrate scans the five-element request vector circularly starting from
// one past the last-served agent and grants the bus to the first requester,
// unless a transaction is already in progress (busy) or the winner would be
// a core while flushActive holds (a flush in progress has precedence over
// new grants). The round-robin pointer advances only when a core wins.
func (b *Bus) Arbitrate(requests [NumAgents]Request, flushActive bool) int {
	if b.busy {
		return NoAgent
	}

	for i := 0; i < NumAgents; i++ {
		idx := (b.rrPointer + i) % NumAgents
		if !requests[idx].Want {
			continue
		}
		if idx != MemoryAgentID && flushActive {
			continue
		}

		b.grant = idx
		b.busy = true
		if idx != MemoryAgentID {
			b.rrPointer = (idx + 1) % NumAgents
		}
		return idx
	}

	return NoAgent
}

// DriveCommand places a single-cycle BusRd/BusRdX command on the wires, as
// authorized by the grant issued this cycle (phase 4).
func (b *Bus) DriveCommand(origin int, cmd Cmd, addr uint32) {
	b.wires = Wires{Origin: origin, Cmd: cmd, Addr: addr}
}

// DriveFlushWord places one word of an 8-word Flush burst on the wires
// (phase 5), overwriting whatever was there. assertShared additionally OR-s
// the shared wire (used when the flush itself is a snoop-driven
// intervention, since by construction another cache is about to hold the
// block).
func (b *Bus) DriveFlushWord(origin int, addr, data uint32, assertShared bool) {
	b.wires.Origin = origin
	b.wires.Cmd = Flush
	b.wires.Addr = addr
	b.wires.Data = data
	if assertShared {
		b.wires.Shared = true
	}
}

// AssertShared OR-merges the shared wire; any snooper may assert it.
func (b *Bus) AssertShared() {
	b.wires.Shared = true
}

// Release clears the transaction, freeing the bus for a new grant. Called
// when the responder emits the last word of an 8-word burst.
func (b *Bus) Release() {
	b.busy = false
	b.grant = NoAgent
}
