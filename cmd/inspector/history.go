package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"inspector/internal/storage"
)

func newLogsCmd(a *app) *cobra.Command {
	var (
		clearAll bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the activity log, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			if clearAll {
				return repo.ClearLogs(ctx)
			}
			entries, err := repo.ListLogs(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				fmt.Fprintf(a.stdout, "%s [%s] %s\n", e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Remove every entry")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect saved extraction results",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tROWS\tTIMESTAMP\tSOURCE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.ID, len(r.Rows), r.CreatedAt.Format(time.RFC3339), r.Source)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 for all)")

	var format string
	exp := &cobra.Command{
		Use:   "export <id>",
		Short: "Print the rows of a saved run",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return usagef("--format must be json or csv, got %q", format)
			}
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := repo.ListRuns(cmd.Context(), 0)
			if err != nil {
				return err
			}
			for _, r := range runs {
				if r.ID == args[0] {
					return a.writeRows(r.Rows, format)
				}
			}
			return fmt.Errorf("run %q: %w", args[0], storage.ErrNotFound)
		},
	}
	exp.Flags().StringVar(&format, "format", "json", "Output format: json or csv")

	cmd.AddCommand(list, exp)
	return cmd
}
