package core

import "github.com/archsim-go/cmpsim/isa"

// FetchStage reads the next instruction word from a core's private
// instruction memory.
type FetchStage struct {
	imem [isa.IMemWords]uint32
}

// LoadProgram installs the program image into instruction memory.
func (s *FetchStage) LoadProgram(words []uint32) {
	copy(s.imem[:], words)
}

// FetchResult is the outcome of one Fetch invocation.
type FetchResult struct {
	Bubble bool
	Latch  IFIDLatch
}

// Fetch reads the word at pc, unless blocked is set (a decode hazard on the
// instruction already sitting in IF/ID, or the core having decoded HALT),
// in which case it leaves IF/ID untouched rather than overwriting it.
func (s *FetchStage) Fetch(pc uint32, blocked bool) FetchResult {
	if blocked {
		return FetchResult{Bubble: true}
	}
	return FetchResult{
		Latch: IFIDLatch{Valid: true, PC: pc, Word: s.imem[pc&isa.PCMask]},
	}
}

// DecodeStage decodes the fetched word, reads operands, resolves branches,
// and checks for data hazards.
type DecodeStage struct {
	hazard HazardUnit
}

// DecodeResult is the outcome of one Decode invocation.
type DecodeResult struct {
	Stall  bool // hazard: bubble into EX, IF/ID kept and decoded again next cycle
	Halted bool // this cycle decoded HALT

	Latch IDEXLatch

	BranchTaken  bool
	BranchTarget uint32
}

// Decode decodes ifid's instruction against the current contents of
// IF/ID, reading regs for operand and branch-resolution values, and
// checks for a RAW hazard against idex/exmem.
func (s *DecodeStage) Decode(ifid IFIDLatch, regs *RegFile, idex IDEXLatch, exmem EXMEMLatch) DecodeResult {
	if !ifid.Valid {
		return DecodeResult{}
	}

	inst := isa.Decode(ifid.Word)

	if s.hazard.Hazard(inst, idex, exmem) {
		return DecodeResult{Stall: true}
	}

	if inst.Opcode == isa.OpHALT {
		return DecodeResult{
			Halted: true,
			Latch: IDEXLatch{
				Valid: true,
				PC:    ifid.PC,
				Inst:  inst,
				Dest:  inst.Rd,
			},
		}
	}

	rsVal := regs.Read(inst.Rs, inst.Imm)
	rtVal := regs.Read(inst.Rt, inst.Imm)
	rdVal := regs.Read(inst.Rd, inst.Imm)

	result := DecodeResult{
		Latch: IDEXLatch{
			Valid:    true,
			PC:       ifid.PC,
			Inst:     inst,
			RsVal:    rsVal,
			RtVal:    rtVal,
			StoreVal: rdVal,
			Dest:     inst.Rd,
			RegWrite: isWriteback(inst.Opcode),
		},
	}

	switch {
	case inst.Opcode == isa.OpJAL:
		result.BranchTaken = true
		result.BranchTarget = rdVal & isa.PCMask
		result.Latch.Dest = isa.RegLink
		result.Latch.RegWrite = true
	case inst.Opcode.IsConditionalBranch():
		taken := evalBranch(inst.Opcode, rsVal, rtVal)
		if taken {
			result.BranchTaken = true
			result.BranchTarget = rdVal & isa.PCMask
		}
	}

	return result
}

// isWriteback reports whether op writes its rd register (excluding JAL,
// whose write-back target is the fixed link register and is set
// separately by Decode).
func isWriteback(op isa.Opcode) bool {
	switch op {
	case isa.OpSW, isa.OpBEQ, isa.OpBNE, isa.OpBLT, isa.OpBGT, isa.OpBLE, isa.OpBGE, isa.OpHALT, isa.OpJAL:
		return false
	default:
		return true
	}
}

func evalBranch(op isa.Opcode, a, b uint32) bool {
	sa, sb := int32(a), int32(b)
	switch op {
	case isa.OpBEQ:
		return sa == sb
	case isa.OpBNE:
		return sa != sb
	case isa.OpBLT:
		return sa < sb
	case isa.OpBGT:
		return sa > sb
	case isa.OpBLE:
		return sa <= sb
	case isa.OpBGE:
		return sa >= sb
	default:
		return false
	}
}

// ExecuteStage computes the ALU result (or effective address) for the
// instruction in ID/EX.
type ExecuteStage struct{}

// ExecuteResult is the outcome of one Execute invocation.
type ExecuteResult struct {
	Latch EXMEMLatch
}

// Execute is purely combinational: no instruction ever stalls here.
func (ExecuteStage) Execute(idex IDEXLatch) ExecuteResult {
	if !idex.Valid {
		return ExecuteResult{}
	}

	inst := idex.Inst
	var alu uint32

	switch inst.Opcode {
	case isa.OpADD:
		alu = idex.RsVal + idex.RtVal
	case isa.OpSUB:
		alu = idex.RsVal - idex.RtVal
	case isa.OpAND:
		alu = idex.RsVal & idex.RtVal
	case isa.OpOR:
		alu = idex.RsVal | idex.RtVal
	case isa.OpXOR:
		alu = idex.RsVal ^ idex.RtVal
	case isa.OpMUL:
		alu = idex.RsVal * idex.RtVal
	case isa.OpSLL:
		alu = idex.RsVal << (idex.RtVal & 0x1F)
	case isa.OpSRA:
		alu = uint32(int32(idex.RsVal) >> (idex.RtVal & 0x1F))
	case isa.OpSRL:
		alu = idex.RsVal >> (idex.RtVal & 0x1F)
	case isa.OpLW, isa.OpSW:
		alu = idex.RsVal + idex.RtVal
	case isa.OpJAL:
		alu = (idex.PC + 1) & isa.PCMask
	default:
		alu = 0
	}

	return ExecuteResult{
		Latch: EXMEMLatch{
			Valid:     true,
			PC:        idex.PC,
			Inst:      inst,
			ALUResult: alu,
			StoreVal:  idex.StoreVal,
			Dest:      idex.Dest,
			RegWrite:  idex.RegWrite,
		},
	}
}

// DataCache is the subset of mesi.Cache's demand interface the Memory
// stage needs.
type DataCache interface {
	Read(addr uint32) (value uint32, completed bool)
	Write(addr uint32, value uint32) (completed bool)
}

// MemoryStage performs the data-cache access for loads and stores.
type MemoryStage struct {
	cache DataCache
}

// NewMemoryStage returns a Memory stage backed by cache.
func NewMemoryStage(cache DataCache) *MemoryStage {
	return &MemoryStage{cache: cache}
}

// MemoryResult is the outcome of one Memory invocation.
type MemoryResult struct {
	Stall bool
	Latch MEMWBLatch
}

// Memory runs the data-cache access for LW/SW, stalling the instruction in
// EX/MEM (and everything behind it) until the cache reports completion.
// Every other instruction passes through untouched.
func (s *MemoryStage) Memory(exmem EXMEMLatch) MemoryResult {
	if !exmem.Valid {
		return MemoryResult{}
	}

	latch := MEMWBLatch{
		Valid:    true,
		PC:       exmem.PC,
		Inst:     exmem.Inst,
		ALUResult: exmem.ALUResult,
		Dest:     exmem.Dest,
		RegWrite: exmem.RegWrite,
	}

	switch exmem.Inst.Opcode {
	case isa.OpLW:
		val, done := s.cache.Read(exmem.ALUResult)
		if !done {
			return MemoryResult{Stall: true}
		}
		latch.MemVal = val
	case isa.OpSW:
		if !s.cache.Write(exmem.ALUResult, exmem.StoreVal) {
			return MemoryResult{Stall: true}
		}
	}

	return MemoryResult{Latch: latch}
}

// WritebackStage retires the instruction in MEM/WB.
type WritebackStage struct{}

// WritebackResult is the outcome of one Writeback invocation.
type WritebackResult struct {
	Halted bool
}

// Writeback writes the selected result into regs, unless the retiring
// instruction is HALT, in which case it signals the core should stop.
func (WritebackStage) Writeback(memwb MEMWBLatch, regs *RegFile) WritebackResult {
	if !memwb.Valid {
		return WritebackResult{}
	}

	if memwb.Inst.Opcode == isa.OpHALT {
		return WritebackResult{Halted: true}
	}

	if memwb.RegWrite {
		value := memwb.ALUResult
		if memwb.Inst.Opcode == isa.OpLW {
			value = memwb.MemVal
		}
		regs.Write(memwb.Dest, value)
	}

	return WritebackResult{}
}
