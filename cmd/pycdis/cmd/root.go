// Package cmd wires the pycdis inspector's cobra command tree, grounded
// in keurnel-assembler/cmd/cli/cmd's thin root-command-plus-subcommands
// shape: a bare *cobra.Command carrying only Use/Short/Long, with every
// subcommand registered from its own init().
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pycdis",
	Short: "Bytecode inspector",
	Long:  `pycdis compiles a built-in fixture program and inspects the resulting instruction sequences.`,
}

// Execute runs the root command, exiting non-zero on failure the way
// keurnel-assembler's own Execute does.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
