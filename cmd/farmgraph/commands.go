package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"farmgraph/internal/core"
	"farmgraph/internal/export"
	"farmgraph/internal/graph"
)

func seedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create missing predicates from the vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.svc.SeedVocabulary(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d predicates, %d already present\n", len(report.Created), len(report.Existing))
			return err
		},
	}
}

func completeLogCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete-log <log-id>",
		Short: "Mark a log done and print the completion result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.svc.CompleteLog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().BoolVar(&a.exportOnComplete, "export", false, "export emitted facts to the blob store")
	cmd.Flags().BoolVar(&a.projectOnComplete, "project", false, "project emitted facts into Neo4j")
	return cmd
}

// factFlags binds the fact filter flags shared by facts and export-facts.
type factFlags struct {
	predicate, subject, object, log string
	since, until                    string
	limit                           int
}

func (f *factFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.predicate, "predicate", "", "predicate name")
	flags.StringVar(&f.subject, "subject", "", "subject asset id")
	flags.StringVar(&f.object, "object", "", "object asset or location id")
	flags.StringVar(&f.log, "log", "", "id of the log that produced the fact")
	flags.StringVar(&f.since, "since", "", "earliest observation time (RFC3339, inclusive)")
	flags.StringVar(&f.until, "until", "", "latest observation time (RFC3339, inclusive)")
	flags.IntVar(&f.limit, "limit", 0, "maximum number of facts; 0 means no limit")
}

func (f *factFlags) filter() (core.FactFilter, error) {
	filter := core.FactFilter{
		PredicateName: f.predicate,
		SubjectID:     f.subject,
		ObjectID:      f.object,
		LogID:         f.log,
		Limit:         f.limit,
	}
	var err error
	if filter.Since, err = parseTime("since", f.since); err != nil {
		return filter, err
	}
	if filter.Until, err = parseTime("until", f.until); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTime(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &t, nil
}

func (a *app) factBatch(cmd *cobra.Command, f *factFlags) (core.FactBatch, error) {
	filter, err := f.filter()
	if err != nil {
		return core.FactBatch{}, err
	}
	facts, err := a.svc.ListFacts(cmd.Context(), filter)
	if err != nil {
		return core.FactBatch{}, err
	}
	return a.svc.FactBatch(cmd.Context(), facts)
}

func factsCommand(a *app) *cobra.Command {
	var f factFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "List facts, newest observation first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := a.factBatch(cmd, &f)
			if err != nil {
				return err
			}
			if asJSON {
				_, err := export.WriteJSONL(cmd.OutOrStdout(), batch)
				return err
			}
			for _, fact := range batch.Facts {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), core.FactString(batch, fact)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON lines instead of text")
	return cmd
}

func exportFactsCommand(a *app) *cobra.Command {
	var f factFlags
	cmd := &cobra.Command{
		Use:   "export-facts",
		Short: "Write matching facts as JSON lines to the blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := a.factBatch(cmd, &f)
			if err != nil {
				return err
			}
			store, err := a.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			info, err := export.New(store).Export(cmd.Context(), batch)
			if err != nil {
				return err
			}
			a.logger.Info("facts exported", "key", info.Key, "facts", len(batch.Facts), "driver", string(store.Driver()))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d facts to %s\n", len(batch.Facts), info.Key)
			return err
		},
	}
	f.bind(cmd)
	return cmd
}

func projectFactsCommand(a *app) *cobra.Command {
	var f factFlags
	cmd := &cobra.Command{
		Use:   "project-facts",
		Short: "Upsert matching facts into the Neo4j graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := a.factBatch(cmd, &f)
			if err != nil {
				return err
			}
			client, err := a.openGraph(cmd.Context())
			if err != nil {
				return err
			}
			if err := graph.NewProjector(client).Project(cmd.Context(), batch); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "projected %d facts\n", len(batch.Facts))
			return err
		},
	}
	f.bind(cmd)
	return cmd
}

func vocabularyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocabulary",
		Short: "Inspect the predicate vocabulary",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Check the completion dispatch tables against the stored predicates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.svc.ValidateStoredVocabulary(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "vocabulary ok")
				return err
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored predicates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				predicates, err := a.svc.ListPredicates(cmd.Context(), core.PredicateFilter{})
				if err != nil {
					return err
				}
				for _, p := range predicates {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.Name, p.Kind, p.Unit); err != nil {
						return err
					}
				}
				return nil
			},
		},
	)
	return cmd
}
