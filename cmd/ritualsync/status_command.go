package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"ritualsync/internal/localstore"
	"ritualsync/internal/ritual"
	"ritualsync/internal/textutil"
)

type statusSummary struct {
	Path         string         `json:"path"`
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
	MissingSteps int            `json:"missingSteps"`
	MissingTitle int            `json:"missingTitle"`
	LoveTypes    map[string]int `json:"loveTypes"`
}

const noStatus = "(none)"

func summarizeRecords(path string, records []ritual.Record) statusSummary {
	s := statusSummary{
		Path:      path,
		Total:     len(records),
		ByStatus:  make(map[string]int),
		LoveTypes: make(map[string]int),
	}
	for _, rec := range records {
		status := string(rec.SyncStatus)
		if status == "" {
			status = noStatus
		}
		s.ByStatus[status]++
		if len(rec.Steps()) == 0 {
			s.MissingSteps++
		}
		if rec.Title() == "" {
			s.MissingTitle++
		}
		for _, lt := range rec.Get(ritual.FieldLoveTypes).List() {
			s.LoveTypes[lt]++
		}
	}
	return s
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the local document by sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			records, err := localstore.New(cfg.Paths.LocalStore, logger).Load(cmd.Context())
			if err != nil {
				return err
			}
			summary := summarizeRecords(cfg.Paths.LocalStore, records)
			if jsonOut {
				return writeJSON(cmd, summary)
			}
			printStatus(cmd, summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the summary as JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, s statusSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Local document: %s\n", s.Path)

	var rows [][]string
	for _, status := range ritual.Statuses() {
		rows = append(rows, []string{textutil.Label(string(status)), fmt.Sprint(s.ByStatus[string(status)])})
	}
	if n := s.ByStatus[noStatus]; n > 0 {
		rows = append(rows, []string{"No Status", fmt.Sprint(n)})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		headers: []string{"Status", "Records"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight},
		footer:  []string{"Total", fmt.Sprint(s.Total)},
	}))
	fmt.Fprintf(out, "Missing steps: %d, missing title: %d\n", s.MissingSteps, s.MissingTitle)

	if len(s.LoveTypes) == 0 {
		return
	}
	types := make([]string, 0, len(s.LoveTypes))
	for lt := range s.LoveTypes {
		types = append(types, lt)
	}
	sort.Slice(types, func(i, j int) bool {
		if s.LoveTypes[types[i]] != s.LoveTypes[types[j]] {
			return s.LoveTypes[types[i]] > s.LoveTypes[types[j]]
		}
		return types[i] < types[j]
	})
	loveRows := make([][]string, 0, len(types))
	for _, lt := range types {
		loveRows = append(loveRows, []string{textutil.Label(lt), fmt.Sprint(s.LoveTypes[lt])})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		headers: []string{"Love Type", "Records"},
		rows:    loveRows,
		aligns:  []columnAlignment{alignLeft, alignRight},
	}))
}
