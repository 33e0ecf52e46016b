package main

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/archsim-go/cmpsim/ioformat"
	"github.com/archsim-go/cmpsim/isa"
	"github.com/archsim-go/cmpsim/system"
)

func encode(op isa.Opcode, rd, rs, rt uint8, imm uint32) uint32 {
	return uint32(op)<<24 | uint32(rd)<<20 | uint32(rs)<<16 | uint32(rt)<<12 | (imm & 0xFFF)
}

func writeImem(t *testing.T, fs afero.Fs, path string, words []uint32) {
	t.Helper()
	if err := ioformat.WriteHexWords(fs, path, words); err != nil {
		t.Fatal(err)
	}
}

func TestFileSetFromArgsMapsAllTwentySevenPositions(t *testing.T) {
	args := make([]string, 27)
	for i := range args {
		args[i] = string(rune('a' + i))
	}

	fs := fileSetFromArgs(args)

	want := fileSet{
		imem:      [4]string{"a", "b", "c", "d"},
		memin:     "e",
		memout:    "f",
		regout:    [4]string{"g", "h", "i", "j"},
		coretrace: [4]string{"k", "l", "m", "n"},
		bustrace:  "o",
		dsram:     [4]string{"p", "q", "r", "s"},
		tsram:     [4]string{"t", "u", "v", "w"},
		stats:     [4]string{"x", "y", "z", "{"},
	}
	if fs != want {
		t.Fatalf("fileSetFromArgs = %+v, want %+v", fs, want)
	}
}

func TestDefaultFileSetNames(t *testing.T) {
	fs := defaultFileSet()
	if fs.imem[0] != "imem0.txt" || fs.imem[3] != "imem3.txt" {
		t.Fatalf("unexpected imem names: %+v", fs.imem)
	}
	if fs.memin != "memin.txt" || fs.memout != "memout.txt" {
		t.Fatalf("unexpected memin/memout: %q %q", fs.memin, fs.memout)
	}
	if fs.coretrace[0] != "core0trace.txt" {
		t.Fatalf("coretrace[0] = %q, want core0trace.txt", fs.coretrace[0])
	}
	if fs.bustrace != "bustrace.txt" {
		t.Fatalf("bustrace = %q, want bustrace.txt", fs.bustrace)
	}
}

func TestRunEndToEndSingleAddThenHalt(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := defaultFileSet()

	writeImem(t, fs, files.imem[0], []uint32{
		encode(isa.OpADD, 2, 1, 1, 5),
		encode(isa.OpHALT, 0, 0, 0, 0),
	})
	justHalt := []uint32{encode(isa.OpHALT, 0, 0, 0, 0)}
	for i := 1; i < system.NumCores; i++ {
		writeImem(t, fs, files.imem[i], justHalt)
	}
	writeImem(t, fs, files.memin, nil)

	if code := run(fs, files); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}

	regout, err := afero.ReadFile(fs, files.regout[0])
	if err != nil {
		t.Fatal(err)
	}
	want := "0000000A\n"
	for i := 0; i < 13; i++ {
		want += "00000000\n"
	}
	if string(regout) != want {
		t.Fatalf("regout0 = %q, want %q", regout, want)
	}

	stats, err := afero.ReadFile(fs, files.stats[0])
	if err != nil {
		t.Fatal(err)
	}
	wantStats := "cycles 6\ninstructions 2\nread_hit 0\nwrite_hit 0\nread_miss 0\nwrite_miss 0\ndecode_stall 0\nmem_stall 0\n"
	if string(stats) != wantStats {
		t.Fatalf("stats0 = %q, want %q", stats, wantStats)
	}
}

func TestRunReportsConfigErrorForMissingImem(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := defaultFileSet()
	// no imem files written at all

	if code := run(fs, files); code == 0 {
		t.Fatal("run() = 0, want non-zero for unopenable input file")
	}
}
