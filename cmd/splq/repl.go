package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/splq/splq/internal/catalog"
	"github.com/splq/splq/internal/repl"
)

// newReplCmd starts the interactive prompt: each line is analyzed and its
// report printed immediately.
func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive prompt with command-name completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			return repl.Run(&repl.Config{
				Completions: cat.Names(),
				Eval: func(line string) error {
					res, err := analyze(line, cfg)
					if err != nil {
						return err
					}
					return printReport(os.Stdout, res, cfg.OutputJSON)
				},
			})
		},
	}
}
