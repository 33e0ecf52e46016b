// Package ioformat reads and writes the simulator's line-oriented hex text
// files: instruction memory and memin on the way in; memout, regout,
// dsram, tsram, stats, and the two trace files on the way out. All I/O
// goes through an afero.Fs so tests can run against an in-memory
// filesystem instead of touching disk.
package ioformat

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/archsim-go/cmpsim/mainmem"
	"github.com/archsim-go/cmpsim/mesi"
	"github.com/archsim-go/cmpsim/system"
)

// ReadHexWords reads up to max lines of 8-digit hex words from path. Lines
// that do not parse as hex are silently skipped, matching the reference
// simulator's tolerance of stray content; only the first max valid words
// are kept.
func ReadHexWords(fs afero.Fs, path string, max int) ([]uint32, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ioformat: opening %s: %w", path, err)
	}
	defer f.Close()

	words := make([]uint32, 0, max)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(words) < max {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseUint(line, 16, 32)
		if err != nil {
			continue
		}
		words = append(words, uint32(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ioformat: reading %s: %w", path, err)
	}
	return words, nil
}

func writeLines(fs afero.Fs, path string, write func(w *bufio.Writer) error) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("ioformat: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return err
	}
	return w.Flush()
}

// WriteHexWords writes one 8-digit uppercase hex word per line.
func WriteHexWords(fs afero.Fs, path string, words []uint32) error {
	return writeLines(fs, path, func(w *bufio.Writer) error {
		for _, word := range words {
			if _, err := fmt.Fprintf(w, "%08X\n", word); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteMemout writes main memory truncated to the highest nonzero word
// (inclusive), matching the reference dump's trailing-zero trimming. An
// all-zero memory still emits address 0, since the reference initializes
// its own high-water mark to 0 rather than -1.
func WriteMemout(fs afero.Fs, path string, mem *mainmem.Memory) error {
	last := 0
	for addr := 0; addr < mainmem.Size; addr++ {
		if mem.Word(uint32(addr)) != 0 {
			last = addr
		}
	}
	return writeLines(fs, path, func(w *bufio.Writer) error {
		for addr := 0; addr <= last; addr++ {
			if _, err := fmt.Fprintf(w, "%08X\n", mem.Word(uint32(addr))); err != nil {
				return err
			}
		}
		return nil
	})
}

// RegOut writes registers 2..15, one 8-digit hex word per line.
func RegOut(fs afero.Fs, path string, regs [16]uint32) error {
	return writeLines(fs, path, func(w *bufio.Writer) error {
		for r := 2; r < 16; r++ {
			if _, err := fmt.Fprintf(w, "%08X\n", regs[r]); err != nil {
				return err
			}
		}
		return nil
	})
}

// StatsEntry names one statistics counter.
type StatsEntry struct {
	Name  string
	Value uint64
}

// WriteStats writes one "name value" line per entry, in the given order.
func WriteStats(fs afero.Fs, path string, entries []StatsEntry) error {
	return writeLines(fs, path, func(w *bufio.Writer) error {
		for _, e := range entries {
			if _, err := fmt.Fprintf(w, "%s %d\n", e.Name, e.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteDSRAM writes the 64*8 data words of cache, in set-major, then
// word-offset order.
func WriteDSRAM(fs afero.Fs, path string, cache *mesi.Cache) error {
	return writeLines(fs, path, func(w *bufio.Writer) error {
		for s := 0; s < mesi.NumSets; s++ {
			for o := 0; o < mesi.BlockWords; o++ {
				if _, err := fmt.Fprintf(w, "%08X\n", cache.DumpData(s, o)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteTSRAM writes the 64 tag/state entries of cache, one per line,
// packed as (state in bits 13:12) | (tag in bits 11:0).
func WriteTSRAM(fs afero.Fs, path string, cache *mesi.Cache) error {
	return writeLines(fs, path, func(w *bufio.Writer) error {
		for s := 0; s < mesi.NumSets; s++ {
			if _, err := fmt.Fprintf(w, "%08X\n", cache.DumpTag(s)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteCoreTrace writes one line per traced cycle: decimal cycle, five
// stage fields (3-hex PC or "---"), then registers 2..15 as 8-hex words.
func WriteCoreTrace(fs afero.Fs, path string, entries []system.CoreTraceEntry) error {
	return writeLines(fs, path, func(w *bufio.Writer) error {
		for _, e := range entries {
			if _, err := fmt.Fprintf(w, "%d", e.Cycle); err != nil {
				return err
			}
			for _, stage := range []int{e.IF, e.ID, e.EX, e.MEM, e.WB} {
				if stage < 0 {
					if _, err := fmt.Fprint(w, " ---"); err != nil {
						return err
					}
					continue
				}
				if _, err := fmt.Fprintf(w, " %03X", stage); err != nil {
					return err
				}
			}
			for r := 2; r < 16; r++ {
				if _, err := fmt.Fprintf(w, " %08X", e.Regs[r]); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprint(w, " \n"); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteBusTrace writes one line per traced cycle: decimal cycle, 1-hex
// origin, 1-hex command, 6-hex address, 8-hex data, 1-hex shared flag.
func WriteBusTrace(fs afero.Fs, path string, entries []system.BusTraceEntry) error {
	return writeLines(fs, path, func(w *bufio.Writer) error {
		for _, e := range entries {
			sharedBit := 0
			if e.Shared {
				sharedBit = 1
			}
			if _, err := fmt.Fprintf(w, "%d %X %X %06X %08X %X\n", e.Cycle, e.Origin, uint8(e.Cmd), e.Addr, e.Data, sharedBit); err != nil {
				return err
			}
		}
		return nil
	})
}
