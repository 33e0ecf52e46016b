// Package main provides a short pointer to the real entry point.
// cmpsim is a cycle-accurate four-core CMP simulator with MESI-coherent
// L1 caches, a snoopy shared bus, and a latency-modeled main memory.
//
// For the full CLI, use: go run ./cmd/cmpsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("cmpsim - cycle-accurate quad-core CMP simulator")
	fmt.Println("")
	fmt.Println("Usage: cmpsim [options] [27 file arguments]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to a JSON simulation config file")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/cmpsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: you provided arguments. Use 'go run ./cmd/cmpsim' instead.")
	}
}
