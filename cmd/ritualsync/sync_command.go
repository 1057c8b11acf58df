package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ritualsync/internal/pipeline"
	"ritualsync/internal/syncengine"
	"ritualsync/internal/textutil"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var direction string
	var dryRun bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local document with the external table",
		Long: `Reconcile the local document with the external table.

to_local imports rows (filtered by sync.publish_status) into the local document.
to_external pushes every local record to the external table. Neither direction
deletes anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := syncengine.ParseDirection(direction)
			if err != nil {
				return err
			}
			runner, err := ctx.runner()
			if err != nil {
				return err
			}
			report, err := runner.Sync(cmd.Context(), pipeline.SyncRequest{Direction: dir, DryRun: dryRun})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}
			printSyncReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", "", "Sync direction: to_external or to_local")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the changes without writing either side")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("direction")
	return cmd
}

func printSyncReport(cmd *cobra.Command, report syncengine.Report) {
	out := cmd.OutOrStdout()
	title := "Sync " + textutil.Label(string(report.Direction))
	if report.DryRun {
		title += " (dry run)"
	}
	rows := [][]string{
		{"Local records loaded", fmt.Sprint(report.Loaded.Local)},
		{"External rows loaded", fmt.Sprint(report.Loaded.External)},
		{"Updated", fmt.Sprint(report.Updated)},
		{"Created", fmt.Sprint(report.Created)},
	}
	if report.Direction == syncengine.ToLocal {
		rows = append(rows, []string{"Retained (local only)", fmt.Sprint(report.Retained)})
	}
	rows = append(rows,
		[]string{"Skipped", fmt.Sprint(report.Skipped)},
		[]string{"Failed batches", fmt.Sprint(report.FailedBatches)},
	)
	fmt.Fprintln(out, renderTable(tableSpec{
		title:   title,
		headers: []string{"Metric", "Count"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight},
	}))
	if len(report.FailedIDs) > 0 {
		fmt.Fprintf(out, "Failed record ids: %s\n", strings.Join(report.FailedIDs, ", "))
	}
}
