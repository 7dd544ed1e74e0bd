// Command hfcausal runs the heart failure causal analysis described by a
// YAML configuration file.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
