package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// testRootCmd returns the shared root command with every flag in the tree
// back at its default. Cobra keeps flag state across Execute calls, so a
// prior --help or --version run would otherwise short-circuit the next one.
func testRootCmd(t *testing.T) *cobra.Command {
	t.Helper()
	resetFlags(rootCmd)
	return rootCmd
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
