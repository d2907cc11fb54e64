// Command structplace is the CLI front end for the placement engine:
// greedy seeding, SA refinement, H-tree clock tree synthesis, and ECO
// netlist rewriting, each runnable on its own or chained end to end.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
