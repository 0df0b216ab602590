package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaptermark/chaptermark/pkg/config"
	"github.com/chaptermark/chaptermark/pkg/pipeline"
)

// NewProcessCmd creates the process command
func NewProcessCmd() *cobra.Command {
	var (
		outputDir    string
		skipExisting bool
		envFile      string
	)

	cmd := &cobra.Command{
		Use:   "process <recording>",
		Short: "Process a meeting recording into a chaptered output",
		Long:  "Runs the full pipeline on a recording: audio extraction, transcription, AI chapter analysis with fallback and review, subtitle generation, and chapter embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(ctx, envFile)
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if cmd.Flags().Changed("skip-existing") {
				cfg.SkipExisting = skipExisting
			}

			p, err := pipeline.New(ctx, cfg)
			if err != nil {
				return err
			}

			result, err := p.Run(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chapters (%d):\n", len(result.Chapters))
			for _, c := range result.Chapters {
				fmt.Fprintf(out, "  %s  %s\n", formatTimestamp(c.Timestamp), c.Title)
			}
			if len(result.Notes) > 0 {
				fmt.Fprintf(out, "Notes: %d (saved alongside the transcript)\n", len(result.Notes))
			}
			if result.SubtitlePath != "" {
				fmt.Fprintf(out, "Subtitles: %s\n", result.SubtitlePath)
			}
			if result.OutputPath != "" {
				fmt.Fprintf(out, "Output: %s\n", result.OutputPath)
			}
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "Warning: %s\n", warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for generated files (overrides OUTPUT_DIR)")
	cmd.Flags().BoolVarP(&skipExisting, "skip-existing", "s", false, "reuse existing extracted audio and transcripts")
	cmd.Flags().StringVar(&envFile, "env-file", "", "path to a .env file to load")

	return cmd
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
