package system_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archsim-go/cmpsim/bus"
	"github.com/archsim-go/cmpsim/config"
	"github.com/archsim-go/cmpsim/isa"
	"github.com/archsim-go/cmpsim/mainmem"
	"github.com/archsim-go/cmpsim/system"
)

func encode(op isa.Opcode, rd, rs, rt uint8, imm uint32) uint32 {
	return uint32(op)<<24 | uint32(rd)<<20 | uint32(rs)<<16 | uint32(rt)<<12 | (imm & 0xFFF)
}

var justHalt = []uint32{encode(isa.OpHALT, 0, 0, 0, 0)}

var _ = Describe("System", func() {
	Describe("the single-ADD-then-HALT worked example", func() {
		It("matches cycles=6, instructions=2 for the core that runs it", func() {
			s := system.New(config.Default())
			s.LoadProgram(0, []uint32{
				encode(isa.OpADD, 2, 1, 1, 5), // R2 = 5 + 5
				encode(isa.OpHALT, 0, 0, 0, 0),
			})
			for i := 1; i < system.NumCores; i++ {
				s.LoadProgram(i, justHalt)
			}

			overran := s.Run()
			Expect(overran).To(BeFalse())
			Expect(s.AllHalted()).To(BeTrue())

			stats := s.Cores[0].Stats()
			Expect(stats.Cycles).To(Equal(uint64(6)))
			Expect(stats.Instructions).To(Equal(uint64(2)))
			Expect(s.Cores[0].Regs.Read(2, 0)).To(Equal(uint32(10)))
		})
	})

	Describe("a store followed by a load of the same address", func() {
		It("reads back what it just wrote, via one write miss and one read hit", func() {
			s := system.New(config.Default())
			s.LoadProgram(0, []uint32{
				encode(isa.OpADD, 2, 1, 1, 0),  // R2 = 0 (address)
				encode(isa.OpADD, 3, 1, 1, 50), // R3 = 100 (data)
				encode(isa.OpSW, 3, 2, 1, 0),   // mem[R2] = R3
				encode(isa.OpLW, 5, 2, 1, 0),   // R5 = mem[R2]
				encode(isa.OpHALT, 0, 0, 0, 0),
			})
			for i := 1; i < system.NumCores; i++ {
				s.LoadProgram(i, justHalt)
			}

			overran := s.Run()
			Expect(overran).To(BeFalse())

			Expect(s.Cores[0].Regs.Read(5, 0)).To(Equal(uint32(100)))

			cacheStats := s.Caches[0].Stats()
			Expect(cacheStats.WriteMisses).To(Equal(uint64(1)))
			Expect(cacheStats.ReadHits).To(Equal(uint64(1)))
		})
	})

	Describe("a cold load with no sharers", func() {
		It("fills from memory instead of spinning to the safety bound", func() {
			s := system.New(config.Default())
			s.LoadMemory([]uint32{0xDEADBEEF})
			s.LoadProgram(0, []uint32{
				encode(isa.OpLW, 2, 0, 1, 0), // R2 = mem[0]
				encode(isa.OpHALT, 0, 0, 0, 0),
			})
			for i := 1; i < system.NumCores; i++ {
				s.LoadProgram(i, justHalt)
			}

			overran := s.Run()
			Expect(overran).To(BeFalse())
			Expect(s.Cores[0].Regs.Read(2, 0)).To(Equal(uint32(0xDEADBEEF)))

			sawBusRd := false
			flushWords := 0
			for _, e := range s.BusTrace {
				if e.Cmd == bus.BusRd && e.Addr == 0 {
					sawBusRd = true
				}
				if e.Cmd == bus.Flush && e.Origin == bus.MemoryAgentID {
					flushWords++
				}
			}
			Expect(sawBusRd).To(BeTrue())
			Expect(flushWords).To(Equal(mainmem.BlockWords))
		})
	})

	Describe("Tick", func() {
		It("advances the cycle counter by exactly one", func() {
			s := system.New(config.Default())
			for i := 0; i < system.NumCores; i++ {
				s.LoadProgram(i, justHalt)
			}
			before := s.Cycle()
			s.Tick()
			Expect(s.Cycle()).To(Equal(before + 1))
		})
	})
})
