package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/config"
	logpkg "github.com/kailas-cloud/shortlist/internal/logger"
	"github.com/kailas-cloud/shortlist/internal/version"
)

// cli holds state shared by subcommands once the root pre-run has loaded it.
type cli struct {
	env     string
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "shortlist",
		Short: "Rank candidate documents against a job description and query the pool",
		Long: `shortlist scores uploaded documents (resumes) against a job description,
stores them in a pool, and answers free-text questions about the best matches
with a generative model.

Example usage:
  shortlist serve                                        # Start the HTTP API
  shortlist ingest eng --jd jd.txt --glob "cvs/**/*.pdf" # Build the "eng" pool
  shortlist query eng -q "Who has Kafka experience?" -n 3`,
		Version:       version.String(),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.env, "env", config.GetEnv(), "environment (selects config/<env>.yaml)")
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "explicit config file (overrides --env lookup)")

	root.AddCommand(
		newServeCmd(c),
		newIngestCmd(c),
		newQueryCmd(c),
		newClearCmd(c),
	)
	return root
}

func (c *cli) load() error {
	var err error
	if c.cfgFile != "" {
		c.cfg, err = config.LoadFile(c.cfgFile)
	} else {
		c.cfg, err = config.Load(c.env)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	c.logger, err = logpkg.NewLogger(c.env, c.cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}
