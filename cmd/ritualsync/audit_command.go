package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ritualsync/internal/audit"
	"ritualsync/internal/ritual"
	"ritualsync/internal/textutil"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the enrichment audit log",
	}
	auditCmd.AddCommand(newAuditListCommand(ctx))
	return auditCmd
}

func newAuditListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded generation calls, newest last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := audit.New(cfg.Paths.AuditLog).List(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			if jsonOut {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No audit entries")
				return nil
			}
			fmt.Fprintln(out, renderTable(auditTable(entries)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show only the most recent N entries (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print entries as JSON")
	return cmd
}

func auditTable(entries []ritual.AuditEntry) tableSpec {
	rows := make([][]string, 0, len(entries))
	var tokens int
	var cost float64
	for _, e := range entries {
		tokens += e.Usage.TotalTokens
		cost += e.Usage.CostUSD
		runID := e.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			runID,
			fmt.Sprint(e.BatchIndex),
			e.PromptVariant,
			e.Usage.Model,
			fmt.Sprint(e.Usage.TotalTokens),
			textutil.Truncate(strings.Join(e.RecordIDs, ", "), 40),
		})
	}
	return tableSpec{
		headers: []string{"Time", "Run", "Batch", "Prompt", "Model", "Tokens", "Records"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
		footer:  []string{fmt.Sprintf("%d %s", len(entries), textutil.Plural(len(entries), "entry", "entries")), "", "", "", "", fmt.Sprint(tokens), fmt.Sprintf("$%.4f", cost)},
	}
}
