// Command hrflow serves the onboarding document API and runs packs from the
// command line.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
