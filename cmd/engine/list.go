package main

import (
	"encoding/json"
	"fmt"

	"jobcollect-engine/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var listOpts struct {
	store.ListJobsOpts
	JSON bool
}

var listCmd = &cobra.Command{
	Use:   "list [--window 7d] [--sort collected] [--run <id>] [--json]",
	Short: "Lists collected jobs from the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(logrus.NewEntry(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		db, err := store.Open(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		jobs, err := store.ListJobs(cmd.Context(), db.Pool, listOpts.ListJobsOpts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if listOpts.JSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(jobs)
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Title", "Company", "Location", "Clearance", "Type", "Source", "Collected"})
		for _, j := range jobs {
			t.AppendRow(table.Row{
				truncate(j.Title, 48),
				truncate(j.Company, 28),
				truncate(j.Location, 28),
				j.ClearanceLevel,
				j.EmploymentType,
				string(j.SourceStrategy),
				j.CollectedAt,
			})
		}
		t.AppendFooter(table.Row{fmt.Sprintf("%d jobs", len(jobs))})
		t.Render()
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listOpts.Window, "window", "7d", "Collected within: 24h, 7d or all.")
	f.StringVar(&listOpts.Sort, "sort", "collected", "Sort by: collected, posted, company or title.")
	f.StringVar(&listOpts.RunID, "run", "", "Only jobs written by this run.")
	f.StringVar(&listOpts.Strategy, "source", "", "Only jobs from this source strategy.")
	f.IntVar(&listOpts.Limit, "limit", 50, "Maximum rows.")
	f.BoolVar(&listOpts.JSON, "json", false, "Print JSON instead of a table.")
	rootCmd.AddCommand(listCmd)
}
