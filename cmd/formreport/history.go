package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/porticus-lab/go-form-report/internal/journal"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		filter journal.Filter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Journal.Enabled {
				return fmt.Errorf("the export journal is disabled in %s", a.configPath)
			}
			store, err := journal.Open(a.cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "no exports recorded")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSESSION\tREPORT\tFORMAT\tTARGET\tRESULT")
			for _, e := range entries {
				result := e.Location
				if e.Failure != "" {
					result = e.Failure + ": " + e.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.At.Local().Format(time.DateTime), shortID(e.Session), e.Report, e.Format, e.Target, result)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Report, "report", "", "Only show exports of this report kind")
	cmd.Flags().BoolVar(&filter.FailedOnly, "failed", false, "Only show failed exports")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of exports to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
