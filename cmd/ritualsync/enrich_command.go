package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ritualsync/internal/pipeline"
	"ritualsync/internal/textutil"
)

type enrichSummary struct {
	RunID         string   `json:"runId"`
	Source        string   `json:"source"`
	PromptVariant string   `json:"promptVariant"`
	DryRun        bool     `json:"dryRun,omitempty"`
	Selected      int      `json:"selected"`
	Batches       int      `json:"batches"`
	Enriched      int      `json:"enriched"`
	Failed        int      `json:"failed"`
	Excluded      int      `json:"excluded"`
	FailedBatches int      `json:"failedBatches"`
	TotalTokens   int      `json:"totalTokens"`
	CostUSD       float64  `json:"costUsd"`
	Planned       []string `json:"plannedIds,omitempty"`
	FailedIDs     []string `json:"failedIds,omitempty"`
	ExcludedIDs   []string `json:"excludedIds,omitempty"`
	DurationMS    int64    `json:"durationMs"`
}

func summarizeEnrichment(result pipeline.EnrichResult) enrichSummary {
	out := result.Outcome
	return enrichSummary{
		RunID:         result.RunID,
		Source:        string(result.Source),
		PromptVariant: result.Variant,
		DryRun:        result.DryRun,
		Selected:      out.Selected,
		Batches:       out.Batches,
		Enriched:      out.Enriched,
		Failed:        out.Failed,
		Excluded:      out.Excluded,
		FailedBatches: out.FailedBatches,
		TotalTokens:   out.Usage.TotalTokens,
		CostUSD:       out.Usage.CostUSD,
		Planned:       result.Planned,
		FailedIDs:     out.FailedIDs,
		ExcludedIDs:   out.ExcludedIDs,
		DurationMS:    result.Duration.Milliseconds(),
	}
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var (
		source    string
		batchSize int
		start     int
		end       int
		selection string
		variant   string
		dryRun    bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Generate ritual details for eligible records in batches",
		Long: `Generate ritual details for eligible records in batches.

Each batch is sent to the LLM as one request. A successful batch moves its
records to REVIEW and is committed before the next one starts; a failed batch
moves them to enrichment.failure_status. Interrupting the run keeps every
committed batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := pipeline.ParseSource(source)
			if err != nil {
				return err
			}
			runner, err := ctx.runner()
			if err != nil {
				return err
			}
			result, err := runner.Enrich(cmd.Context(), pipeline.EnrichRequest{
				Source:        src,
				BatchSize:     batchSize,
				Start:         start,
				End:           end,
				Selection:     selection,
				PromptVariant: variant,
				DryRun:        dryRun,
			})
			summary := summarizeEnrichment(result)
			if err != nil {
				if summary.Batches > 0 && !jsonOut {
					printEnrichSummary(cmd, summary)
				}
				return err
			}
			if jsonOut {
				return writeJSON(cmd, summary)
			}
			printEnrichSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "local", "Records to enrich: local or external")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per LLM request (default enrichment.batch_size)")
	cmd.Flags().IntVar(&start, "start", 0, "First external row to consider, 1-based (external source only)")
	cmd.Flags().IntVar(&end, "end", 0, "Last external row to consider, inclusive (external source only)")
	cmd.Flags().StringVar(&selection, "selection", "", "Eligibility rule: status or missing_steps (default enrichment.selection)")
	cmd.Flags().StringVar(&variant, "prompt", "", "Embedded prompt variant (default enrichment.prompt_variant)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the planned batches without calling the LLM")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the summary as JSON")
	return cmd
}

func printEnrichSummary(cmd *cobra.Command, s enrichSummary) {
	out := cmd.OutOrStdout()
	title := fmt.Sprintf("Enrichment (%s, %s)", textutil.Label(s.Source), s.PromptVariant)
	if s.DryRun {
		title += " dry run"
		fmt.Fprintln(out, renderTable(tableSpec{
			title:   title,
			headers: []string{"Metric", "Count"},
			rows: [][]string{
				{"Selected", fmt.Sprint(s.Selected)},
				{"Would enrich", fmt.Sprint(len(s.Planned))},
				{"Excluded (no title)", fmt.Sprint(s.Excluded)},
				{"Batches", fmt.Sprint(s.Batches)},
			},
			aligns: []columnAlignment{alignLeft, alignRight},
		}))
		return
	}
	rows := [][]string{
		{"Selected", fmt.Sprint(s.Selected)},
		{"Batches", fmt.Sprint(s.Batches)},
		{"Enriched", fmt.Sprint(s.Enriched)},
		{"Failed", fmt.Sprint(s.Failed)},
		{"Excluded (no title)", fmt.Sprint(s.Excluded)},
		{"Tokens", fmt.Sprint(s.TotalTokens)},
	}
	if s.CostUSD > 0 {
		rows = append(rows, []string{"Cost (USD)", fmt.Sprintf("%.4f", s.CostUSD)})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		title:   title,
		headers: []string{"Metric", "Count"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight},
	}))
	if len(s.FailedIDs) > 0 {
		fmt.Fprintf(out, "Failed record ids: %s\n", strings.Join(s.FailedIDs, ", "))
	}
	if len(s.ExcludedIDs) > 0 {
		fmt.Fprintf(out, "Excluded record ids: %s\n", strings.Join(s.ExcludedIDs, ", "))
	}
	fmt.Fprintf(out, "Run id: %s\n", s.RunID)
}
