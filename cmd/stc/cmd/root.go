package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "stc",
	Short: "IEC 61131-3 Structured Text development platform",
	Long: `stc is a Go implementation of an IEC 61131-3 Structured Text
development platform: a lossless lexer and parser, a two-pass symbol
and type system, a semantic analyzer, a tree-walking interpreter with
an industrial task scheduler, a debug-control state machine, and a
Debug Adapter Protocol bridge.

It targets ST text programs directly; it is not a vendor IDE
replacement and does not import PLCopen XML projects.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
