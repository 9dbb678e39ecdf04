// Command stc is the IEC 61131-3 Structured Text platform's CLI: lex,
// parse, analyze, build and run a project, and serve a Debug Adapter
// Protocol session for it.
package main

import (
	"os"

	"github.com/stplatform/st-platform/cmd/stc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
