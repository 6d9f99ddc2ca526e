package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/splq/splq"
	"github.com/splq/splq/internal/cli"
)

// Version information
var (
	Version     = "0.3.0"   // Will be overridden by build-time ldflags
	BuildCommit = "unknown" // Will be overridden by build-time ldflags
)

var flagCfg = &cli.Config{}

func main() {
	root := &cobra.Command{
		Use:   "splq [query]",
		Short: "Static analyzer for SPL queries",
		Long: `splq parses an SPL query without executing it and reports the fields
it reads and emits, the field effect of every command, nested subsearches
and any syntax or argument problems.`,
		Version: fmt.Sprintf("%s (%s)", Version, BuildCommit),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runAnalyze,
	}
	root.Flags().StringVarP(&queryFile, "file", "f", "", "read the query from a file instead of the argument")
	root.PersistentFlags().StringArrayVarP(&flagCfg.MacroFiles, "macros", "m", nil, "macro definition file (repeatable)")
	root.PersistentFlags().BoolVarP(&flagCfg.Verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVarP(&flagCfg.Quiet, "quiet", "q", false, "suppress diagnostic output")
	root.Flags().BoolVar(&flagCfg.OutputJSON, "json", false, "emit the report as JSON")

	root.AddCommand(newCommandsCmd(), newReplCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

var queryFile string

func loadConfig() (*cli.Config, error) {
	fileCfg, err := cli.LoadConfig(cli.DefaultConfigPath())
	if err != nil {
		return nil, err
	}
	return fileCfg.Merge(flagCfg), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var query string
	switch {
	case queryFile != "":
		raw, err := os.ReadFile(queryFile)
		if err != nil {
			return fmt.Errorf("failed to read query file: %w", err)
		}
		query = string(raw)
	case len(args) == 1:
		query = args[0]
	default:
		return fmt.Errorf("no query given (pass it as an argument or with -f)")
	}

	res, err := analyze(query, cfg)
	if err != nil {
		return err
	}
	if err := printReport(cmd.OutOrStdout(), res, cfg.OutputJSON); err != nil {
		return err
	}
	if res.ErrorsCount > 0 {
		os.Exit(1)
	}
	return nil
}

func analyze(query string, cfg *cli.Config) (*splq.Result, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return splq.Analyze(query, &splq.Options{
		Verbose:     cfg.Verbose,
		PrintErrors: !cfg.Quiet,
		MacroFiles:  cfg.MacroFiles,
		Logger:      log,
	})
}
