package core

import "github.com/archsim-go/cmpsim/isa"

// IFIDLatch carries a fetched instruction word into Decode.
type IFIDLatch struct {
	Valid bool
	PC    uint32
	Word  uint32
}

// Clear invalidates the latch, turning it into a bubble.
func (l *IFIDLatch) Clear() { *l = IFIDLatch{} }

// IDEXLatch carries a decoded instruction, its operand values, and its
// write-back destination into Execute.
type IDEXLatch struct {
	Valid bool
	PC    uint32
	Inst  isa.Instruction

	RsVal    uint32
	RtVal    uint32
	StoreVal uint32 // value read from rd: SW's store data, or JAL/branch target

	Dest     uint8
	RegWrite bool
}

// Clear invalidates the latch, turning it into a bubble.
func (l *IDEXLatch) Clear() { *l = IDEXLatch{} }

// EXMEMLatch carries an ALU result (or effective address) and the pending
// write-back into Memory.
type EXMEMLatch struct {
	Valid bool
	PC    uint32
	Inst  isa.Instruction

	ALUResult uint32
	StoreVal  uint32

	Dest     uint8
	RegWrite bool
}

// Clear invalidates the latch, turning it into a bubble.
func (l *EXMEMLatch) Clear() { *l = EXMEMLatch{} }

// MEMWBLatch carries the value to be written back (or discarded, for
// non-writing instructions) into Writeback.
type MEMWBLatch struct {
	Valid bool
	PC    uint32
	Inst  isa.Instruction

	ALUResult uint32
	MemVal    uint32

	Dest     uint8
	RegWrite bool
}

// Clear invalidates the latch, turning it into a bubble.
func (l *MEMWBLatch) Clear() { *l = MEMWBLatch{} }
