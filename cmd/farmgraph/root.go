package main

import (
	"github.com/spf13/cobra"

	"farmgraph/internal/config"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "farmgraph",
		Short:         "Farm records and the facts derived from them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", config.DefaultPath, "YAML configuration file; missing files fall back to defaults and environment")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")
	flags.BoolVar(&a.trace, "trace", false, "print OpenTelemetry spans to stderr")

	root.AddCommand(
		seedCommand(a),
		completeLogCommand(a),
		factsCommand(a),
		exportFactsCommand(a),
		projectFactsCommand(a),
		vocabularyCommand(a),
	)
	return root
}
