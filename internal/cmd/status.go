package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaptermark/chaptermark/pkg/config"
	"github.com/chaptermark/chaptermark/pkg/orchestrator"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and backend availability",
		Long:  "Validates the configuration and probes every configured AI backend, reporting which are currently usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := config.Load(ctx, envFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Provider: %s (fallback enabled: %t)\n", cfg.Provider, cfg.EnableFallback)
			if cfg.EnableReview {
				fmt.Fprintf(out, "Review: %d passes over %v\n", cfg.ReviewPasses, cfg.ReviewModels)
			} else {
				fmt.Fprintln(out, "Review: disabled")
			}

			if problems := cfg.Problems(); len(problems) > 0 {
				fmt.Fprintln(out, "Configuration problems:")
				for _, problem := range problems {
					fmt.Fprintf(out, "  - %s\n", problem)
				}
				return nil
			}

			orch, err := orchestrator.New(ctx, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Backends:")
			for _, info := range orch.Backends(ctx) {
				state := "unavailable"
				if info.Available {
					state = "available"
				}
				fmt.Fprintf(out, "  %-8s %-12s model=%s (%s)\n", info.Name, info.Kind, info.Model, state)
			}

			if issues := orch.ValidateConfiguration(ctx); len(issues) > 0 {
				fmt.Fprintln(out, "Issues:")
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			} else {
				fmt.Fprintln(out, "All configured backends are available.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "path to a .env file to load")
	return cmd
}
