// Command loom runs a pipeline YAML file as a dependency-ordered batch
// of child processes (spec §4.4/§4.5), or serves its streamed terminal
// protocol (spec §4.6/§6.3) over a websocket. See SPEC_FULL.md's CLI
// supplement for the full subcommand list.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
