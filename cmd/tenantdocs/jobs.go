package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/neomorfeo/tenantdocs/internal/adapter/sqlite"
	"github.com/neomorfeo/tenantdocs/internal/config"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

func newJobsCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Print the word count job run history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}

			history, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer history.Close()

			runs, err := history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to print (0 for all)")

	return cmd
}

func printRuns(w io.Writer, runs []domain.JobRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No job has been submitted.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tJOB\tINPUT\tOUTPUT\tARCHIVED\tSUBMITTED")
	for _, run := range runs {
		archived := "-"
		if run.ArchivedOutput != "" {
			archived = run.ArchivedOutput.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.RunID,
			run.JobName,
			run.InputPath,
			run.OutputPath,
			archived,
			run.SubmittedAt.UTC().Format(time.RFC3339),
		)
	}
	return tw.Flush()
}
