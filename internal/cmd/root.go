// Package cmd wires the chaptermark CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the chaptermark CLI
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chaptermark",
		Short: "Turn meeting recordings into chaptered videos",
		Long:  "Chaptermark - extracts audio, transcribes it, asks an AI model for chapter boundaries and action items, and embeds the chapters back into the recording",
	}

	rootCmd.AddCommand(NewProcessCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
