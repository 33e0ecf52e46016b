package core

import "github.com/archsim-go/cmpsim/isa"

// RegFile is the 16-entry architectural register file. Register 0 always
// reads as zero; register 1 is not storage at all but a read-only window
// onto the current instruction's immediate field, substituted in by the
// caller at read time. Writes to either are silently discarded.
type RegFile struct {
	regs [isa.NumRegs]uint32
}

// Read returns the value of register idx. For idx == isa.RegImm, imm is
// returned instead of any stored value — callers pass the immediate of the
// instruction currently being decoded.
func (r *RegFile) Read(idx uint8, imm int32) uint32 {
	switch idx {
	case isa.RegZero:
		return 0
	case isa.RegImm:
		return uint32(imm)
	default:
		return r.regs[idx]
	}
}

// Write stores value into register idx, unless idx names a non-writable
// register (0 or 1).
func (r *RegFile) Write(idx uint8, value uint32) {
	if idx == isa.RegZero || idx == isa.RegImm {
		return
	}
	r.regs[idx] = value
}

// Snapshot returns a copy of all 16 registers, for register dumps.
func (r *RegFile) Snapshot() [isa.NumRegs]uint32 {
	return r.regs
}
