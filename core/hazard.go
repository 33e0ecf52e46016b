package core

import "github.com/archsim-go/cmpsim/isa"

// writableFrom is the lowest register index Write actually stores into;
// registers below it (zero and the immediate window) can never be the
// target of a real write, so a hazard against them is never possible.
const writableFrom = 2

// HazardUnit detects read-after-write hazards between the instruction in
// Decode and the two in-flight instructions ahead of it (in ID/EX and
// EX/MEM). The MEM/WB latch is deliberately excluded: Writeback always runs
// before Decode within the same cycle (the pipeline steps stages in
// WB,MEM,EX,ID,IF order), so any write landing there has already reached
// the register file by the time Decode reads it.
type HazardUnit struct{}

func clashesWith(reg uint8, idex IDEXLatch, exmem EXMEMLatch) bool {
	if reg < writableFrom {
		return false
	}
	if idex.Valid && idex.RegWrite && idex.Dest == reg {
		return true
	}
	if exmem.Valid && exmem.RegWrite && exmem.Dest == reg {
		return true
	}
	return false
}

// Hazard reports whether decoding inst would read a register that has not
// yet been written back by an in-flight instruction. rs is always checked;
// rt is checked unless the opcode is JAL; rd is additionally checked for SW
// and the conditional branches, which read it as a data/target operand.
func (HazardUnit) Hazard(inst isa.Instruction, idex IDEXLatch, exmem EXMEMLatch) bool {
	if clashesWith(inst.Rs, idex, exmem) {
		return true
	}
	if inst.Opcode != isa.OpJAL && clashesWith(inst.Rt, idex, exmem) {
		return true
	}
	if (inst.Opcode == isa.OpSW || inst.Opcode.IsConditionalBranch()) && clashesWith(inst.Rd, idex, exmem) {
		return true
	}
	return false
}
