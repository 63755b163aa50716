// Command contagion runs agent-based epidemic simulations.
package main

import (
	"fmt"
	"os"
)

func main() {
	// Cobra's own error printing is silenced, so failures surface here.
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
