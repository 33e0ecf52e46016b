// Package main provides the entry point for cmpsim, a cycle-accurate
// four-core chip-multiprocessor simulator with MESI-coherent L1 caches, a
// snoopy shared bus, and a latency-modeled main memory.
//
// For the full CLI, use: go run ./cmd/cmpsim
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/spf13/afero"

	"github.com/archsim-go/cmpsim/config"
	"github.com/archsim-go/cmpsim/ioformat"
	"github.com/archsim-go/cmpsim/isa"
	"github.com/archsim-go/cmpsim/mainmem"
	"github.com/archsim-go/cmpsim/system"
)

var (
	configPath = flag.String("config", "", "Path to a JSON simulation config file")
	verbose    = flag.Bool("v", false, "Verbose output")
)

// fileSet names every input and output file the CLI reads or writes, in
// the fixed order spec.md §6 assigns to the 27-positional-argument form.
type fileSet struct {
	imem      [system.NumCores]string
	memin     string
	memout    string
	regout    [system.NumCores]string
	coretrace [system.NumCores]string
	bustrace  string
	dsram     [system.NumCores]string
	tsram     [system.NumCores]string
	stats     [system.NumCores]string
}

func defaultFileSet() fileSet {
	var fs fileSet
	for i := 0; i < system.NumCores; i++ {
		fs.imem[i] = fmt.Sprintf("imem%d.txt", i)
		fs.regout[i] = fmt.Sprintf("regout%d.txt", i)
		fs.coretrace[i] = fmt.Sprintf("core%dtrace.txt", i)
		fs.dsram[i] = fmt.Sprintf("dsram%d.txt", i)
		fs.tsram[i] = fmt.Sprintf("tsram%d.txt", i)
		fs.stats[i] = fmt.Sprintf("stats%d.txt", i)
	}
	fs.memin = "memin.txt"
	fs.memout = "memout.txt"
	fs.bustrace = "bustrace.txt"
	return fs
}

// fileSetFromArgs maps exactly 27 positional arguments, in the order 4
// imem paths, memin, memout, 4 regout, 4 coretrace, bustrace, 4 dsram, 4
// tsram, 4 stats, onto a fileSet.
func fileSetFromArgs(args []string) fileSet {
	var fs fileSet
	i := 0
	next := func() string { v := args[i]; i++; return v }

	for c := 0; c < system.NumCores; c++ {
		fs.imem[c] = next()
	}
	fs.memin = next()
	fs.memout = next()
	for c := 0; c < system.NumCores; c++ {
		fs.regout[c] = next()
	}
	for c := 0; c < system.NumCores; c++ {
		fs.coretrace[c] = next()
	}
	fs.bustrace = next()
	for c := 0; c < system.NumCores; c++ {
		fs.dsram[c] = next()
	}
	for c := 0; c < system.NumCores; c++ {
		fs.tsram[c] = next()
	}
	for c := 0; c < system.NumCores; c++ {
		fs.stats[c] = next()
	}
	return fs
}

func main() {
	flag.Parse()

	var files fileSet
	switch flag.NArg() {
	case 0:
		files = defaultFileSet()
	case 27:
		files = fileSetFromArgs(flag.Args())
	default:
		fmt.Fprintf(os.Stderr, "Usage: cmpsim [options] [27 file arguments]\n")
		fmt.Fprintf(os.Stderr, "With no arguments, default file names are used in the working directory.\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	os.Exit(run(afero.NewOsFs(), files))
}

// run executes one simulation end to end against fs, reporting the
// process exit code. Configuration errors (bad -config, unopenable input
// files) are reported to stderr and produce a non-zero exit before any
// cycle runs; a simulation overrun after the safety-cycle bound is an
// informational condition, not an error, and still exits 0.
func run(fs afero.Fs, files fileSet) int {
	runID := xid.New()
	if *verbose {
		fmt.Printf("cmpsim run %s starting\n", runID)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(fs, *configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cmpsim: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	s := system.New(cfg)

	for i := 0; i < system.NumCores; i++ {
		words, err := ioformat.ReadHexWords(fs, files.imem[i], isa.IMemWords)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cmpsim: reading %s: %v\n", files.imem[i], err)
			return 1
		}
		s.LoadProgram(i, words)
	}

	memWords, err := ioformat.ReadHexWords(fs, files.memin, mainmem.Size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cmpsim: reading %s: %v\n", files.memin, err)
		return 1
	}
	s.LoadMemory(memWords)

	if *verbose {
		fmt.Printf("cmpsim run %s: loaded %d cores, running\n", runID, system.NumCores)
	}

	overran := s.Run()

	if err := writeOutputs(fs, files, s); err != nil {
		fmt.Fprintf(os.Stderr, "cmpsim: %v\n", err)
		return 1
	}

	if overran {
		fmt.Printf("cmpsim: simulation exceeded the safety cycle bound (%d cycles); dumps written\n", cfg.SafetyCycleBound)
		return 0
	}

	if *verbose {
		fmt.Printf("cmpsim run %s: all cores halted at cycle %d\n", runID, s.Cycle())
	}
	return 0
}

func writeOutputs(fs afero.Fs, files fileSet, s *system.System) error {
	if err := ioformat.WriteMemout(fs, files.memout, s.Memory); err != nil {
		return err
	}
	if err := ioformat.WriteBusTrace(fs, files.bustrace, s.BusTrace); err != nil {
		return err
	}

	for i := 0; i < system.NumCores; i++ {
		regs := s.Cores[i].Regs.Snapshot()
		if err := ioformat.RegOut(fs, files.regout[i], regs); err != nil {
			return err
		}
		if err := ioformat.WriteCoreTrace(fs, files.coretrace[i], s.CoreTrace[i]); err != nil {
			return err
		}
		if err := ioformat.WriteDSRAM(fs, files.dsram[i], s.Caches[i]); err != nil {
			return err
		}
		if err := ioformat.WriteTSRAM(fs, files.tsram[i], s.Caches[i]); err != nil {
			return err
		}
		if err := ioformat.WriteStats(fs, files.stats[i], statsEntries(s, i)); err != nil {
			return err
		}
	}
	return nil
}

func statsEntries(s *system.System, i int) []ioformat.StatsEntry {
	core := s.Cores[i].Stats()
	cache := s.Caches[i].Stats()
	return []ioformat.StatsEntry{
		{Name: "cycles", Value: core.Cycles},
		{Name: "instructions", Value: core.Instructions},
		{Name: "read_hit", Value: cache.ReadHits},
		{Name: "write_hit", Value: cache.WriteHits},
		{Name: "read_miss", Value: cache.ReadMisses},
		{Name: "write_miss", Value: cache.WriteMisses},
		{Name: "decode_stall", Value: core.DecodeStalls},
		{Name: "mem_stall", Value: core.MemStalls},
	}
}
