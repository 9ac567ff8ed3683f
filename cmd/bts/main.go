// bts is the issue tracker that CrashLens files bugs into.
//
// It serves a JSON API over a SQLite database and can seed the database
// with generated demo bugs.
package main

import (
	"fmt"
	"os"
)

// Version is set via ldflags at build time.
var version = "dev"

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors leaves printing to us
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
