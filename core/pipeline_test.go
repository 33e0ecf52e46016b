package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archsim-go/cmpsim/core"
	"github.com/archsim-go/cmpsim/isa"
)

func encode(op isa.Opcode, rd, rs, rt uint8, imm uint32) uint32 {
	return uint32(op)<<24 | uint32(rd)<<20 | uint32(rs)<<16 | uint32(rt)<<12 | (imm & 0xFFF)
}

// fakeCache always hits immediately, after an optional number of stall
// cycles, returning a fixed word for every address.
type fakeCache struct {
	stallsRemaining int
	word            uint32
	lastWriteAddr   uint32
	lastWriteVal    uint32
}

func (f *fakeCache) Read(addr uint32) (uint32, bool) {
	if f.stallsRemaining > 0 {
		f.stallsRemaining--
		return 0, false
	}
	return f.word, true
}

func (f *fakeCache) Write(addr uint32, v uint32) bool {
	if f.stallsRemaining > 0 {
		f.stallsRemaining--
		return false
	}
	f.lastWriteAddr = addr
	f.lastWriteVal = v
	return true
}

func run(c *core.Core, maxCycles int) {
	for i := 0; i < maxCycles && !c.Halted(); i++ {
		c.Tick()
	}
}

var _ = Describe("Core", func() {
	var (
		cache *fakeCache
		c     *core.Core
	)

	BeforeEach(func() {
		cache = &fakeCache{}
		c = core.New(0, cache)
	})

	Describe("sequential ALU program", func() {
		BeforeEach(func() {
			c.LoadProgram([]uint32{
				encode(isa.OpADD, 2, 1, 1, 10), // R2 = 10
				encode(isa.OpADD, 3, 1, 1, 20), // R3 = 20
				encode(isa.OpADD, 4, 1, 1, 30), // R4 = 30
				encode(isa.OpHALT, 0, 0, 0, 0),
			})
		})

		It("retires all four instructions and halts", func() {
			run(c, 50)
			Expect(c.Halted()).To(BeTrue())
			Expect(c.Stats().Instructions).To(Equal(uint64(4)))
		})

		It("produces correct register values", func() {
			run(c, 50)
			Expect(c.Regs.Read(2, 0)).To(Equal(uint32(10)))
			Expect(c.Regs.Read(3, 0)).To(Equal(uint32(20)))
			Expect(c.Regs.Read(4, 0)).To(Equal(uint32(30)))
		})
	})

	Describe("RAW hazard chain", func() {
		BeforeEach(func() {
			c.LoadProgram([]uint32{
				encode(isa.OpADD, 2, 1, 1, 10),   // R2 = 10
				encode(isa.OpADD, 3, 2, 1, 5),    // R3 = R2 + 5 (depends on R2)
				encode(isa.OpADD, 4, 3, 1, 3),    // R4 = R3 + 3 (depends on R3)
				encode(isa.OpHALT, 0, 0, 0, 0),
			})
		})

		It("stalls decode until the write lands, then produces correct results", func() {
			run(c, 50)
			Expect(c.Regs.Read(2, 0)).To(Equal(uint32(10)))
			Expect(c.Regs.Read(3, 0)).To(Equal(uint32(15)))
			Expect(c.Regs.Read(4, 0)).To(Equal(uint32(18)))
			Expect(c.Stats().DecodeStalls).To(BeNumerically(">", 0))
		})
	})

	Describe("load-use with a multi-cycle miss", func() {
		BeforeEach(func() {
			cache.word = 0x55
			cache.stallsRemaining = 3
			c.LoadProgram([]uint32{
				encode(isa.OpLW, 2, 1, 1, 0),  // R2 = mem[0]
				encode(isa.OpADD, 3, 2, 1, 1), // R3 = R2 + 1
				encode(isa.OpHALT, 0, 0, 0, 0),
			})
		})

		It("stalls the whole pipeline until the cache completes", func() {
			run(c, 50)
			Expect(c.Regs.Read(2, 0)).To(Equal(uint32(0x55)))
			Expect(c.Regs.Read(3, 0)).To(Equal(uint32(0x56)))
			Expect(c.Stats().MemStalls).To(Equal(uint64(3)))
		})
	})

	Describe("store", func() {
		It("issues the store with the address and data computed in Execute", func() {
			c.LoadProgram([]uint32{
				encode(isa.OpADD, 2, 1, 1, 7),   // R2 = 7 (address)
				encode(isa.OpADD, 3, 1, 1, 99),  // R3 = 99 (data)
				encode(isa.OpSW, 3, 2, 1, 0),    // mem[R2] = R3
				encode(isa.OpHALT, 0, 0, 0, 0),
			})
			run(c, 50)
			Expect(cache.lastWriteAddr).To(Equal(uint32(7)))
			Expect(cache.lastWriteVal).To(Equal(uint32(99)))
		})
	})

	Describe("conditional branch", func() {
		It("redirects fetch when taken", func() {
			c.LoadProgram([]uint32{
				encode(isa.OpADD, 2, 1, 1, 5), // 0: R2 = 5
				encode(isa.OpADD, 4, 1, 1, 4), // 1: R4 = 4 (branch target)
				encode(isa.OpBEQ, 4, 2, 1, 5), // 2: if R2==5 goto R4
				encode(isa.OpADD, 5, 1, 1, 111), // 3: skipped
				encode(isa.OpHALT, 0, 0, 0, 0),  // 4: target
			})
			run(c, 50)
			Expect(c.Regs.Read(5, 0)).To(Equal(uint32(0)))
		})
	})

	Describe("JAL", func() {
		It("deposits PC+1 into R15 and jumps to the target in rd", func() {
			c.LoadProgram([]uint32{
				encode(isa.OpADD, 4, 1, 1, 3),  // 0: R4 = 3 (jump target)
				encode(isa.OpJAL, 4, 1, 1, 0),  // 1: jump to R4, R15 = 2
				encode(isa.OpADD, 5, 1, 1, 1),  // 2: skipped
				encode(isa.OpHALT, 0, 0, 0, 0), // 3: target
			})
			run(c, 50)
			Expect(c.Regs.Read(isa.RegLink, 0)).To(Equal(uint32(2)))
			Expect(c.Regs.Read(5, 0)).To(Equal(uint32(0)))
		})
	})
})
