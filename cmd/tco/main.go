// Command tco computes truck total cost of ownership comparisons from the
// command line and manages the presets database.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
