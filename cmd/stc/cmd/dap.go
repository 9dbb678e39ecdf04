package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stplatform/st-platform/internal/config"
	"github.com/stplatform/st-platform/internal/dap"
)

var dapConfigPath string

var dapCmd = &cobra.Command{
	Use:   "dap-serve",
	Short: "Speak the Debug Adapter Protocol over stdio",
	Long: `dap-serve bridges stdin/stdout to the Debug Adapter Protocol:
launch/attach compiles the given ST sources, setBreakpoints/
stackTrace/variables/evaluate drive the interpreting runtime through
its single shared call stack, and continue/pause/next/stepIn/stepOut
drive the debug control state machine. Exactly one client connects per
process; an editor's DAP client spawns a fresh stc dap-serve per debug
session.`,
	Args: cobra.NoArgs,
	RunE: runDapServe,
}

func init() {
	rootCmd.AddCommand(dapCmd)
	dapCmd.Flags().StringVar(&dapConfigPath, "config", "", "project config file (defaults applied if omitted)")
}

func runDapServe(_ *cobra.Command, _ []string) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	proj := config.Default()
	if dapConfigPath != "" {
		loaded, err := config.Load(dapConfigPath)
		if err != nil {
			return err
		}
		proj = loaded
	}

	adapter := dap.NewAdapter(log, proj)
	return adapter.Serve(os.Stdin, os.Stdout)
}
