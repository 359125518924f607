// Package cmd defines and implements the CLI commands for the docdriver
// executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docdriver",
		Short: "Resumable batch automation against a remote notebook workspace",
		Long: `docdriver drives an authenticated browser session against a remote
notebook application in long unattended batches. It synchronizes documents
to local files and runs question datasets through the conversational
surface, checkpointing every item so an interrupted run resumes where it
left off.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; env vars with DOCDRIVER_ prefix override)")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newAskCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
