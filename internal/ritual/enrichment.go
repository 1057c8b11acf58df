package ritual

import (
	"strings"
	"time"
)

// EnrichmentResult is one generated field-set, matched to its input record by
// position.
type EnrichmentResult struct {
	TagLine         string   `json:"tagLine"`
	Description     string   `json:"description"`
	HowItHelps      string   `json:"howItHelps"`
	Steps           []string `json:"steps"`
	LoveTypes       []string `json:"loveTypes"`
	RelationalNeeds []string `json:"relationalNeeds"`
	RitualTones     []string `json:"ritualTones"`
	RitualMode      string   `json:"ritualMode,omitempty"`
	TimeTaken       string   `json:"timeTaken"`
	SemanticSummary string   `json:"semanticSummary"`
}

// Fields returns the enrichment-related fields carried by the result. Steps
// are normalized; an empty ritual mode or time taken is omitted so a seeded
// value survives.
func (e EnrichmentResult) Fields() map[Field]Value {
	out := map[Field]Value{
		FieldTagLine:         StringValue(strings.TrimSpace(e.TagLine)),
		FieldDescription:     StringValue(strings.TrimSpace(e.Description)),
		FieldHowItHelps:      StringValue(strings.TrimSpace(e.HowItHelps)),
		FieldSteps:           ListValue(NormalizeSteps(e.Steps)),
		FieldLoveTypes:       ListValue(nonNil(e.LoveTypes)),
		FieldRelationalNeeds: ListValue(nonNil(e.RelationalNeeds)),
		FieldRitualTones:     ListValue(nonNil(e.RitualTones)),
		FieldSemanticSummary: StringValue(strings.TrimSpace(e.SemanticSummary)),
	}
	if mode := strings.TrimSpace(e.RitualMode); mode != "" {
		out[FieldRitualMode] = StringValue(mode)
	}
	if taken := strings.TrimSpace(e.TimeTaken); taken != "" {
		out[FieldTimeTaken] = StringValue(taken)
	}
	return out
}

// Apply overwrites the record's enrichment-related fields from the result.
func (e EnrichmentResult) Apply(r *Record) {
	for f, v := range e.Fields() {
		r.Set(f, v)
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// Usage is the receipt returned with every generation call.
type Usage struct {
	Model            string  `json:"model,omitempty"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	CostUSD          float64 `json:"costUsd,omitempty"`
}

// Add returns the element-wise sum of two receipts.
func (u Usage) Add(other Usage) Usage {
	out := Usage{
		Model:            u.Model,
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		CostUSD:          u.CostUSD + other.CostUSD,
	}
	if out.Model == "" {
		out.Model = other.Model
	}
	return out
}

// AuditEntry records one generation call that returned results. Entries are
// append-only.
type AuditEntry struct {
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	RunID         string             `json:"runId,omitempty"`
	BatchIndex    int                `json:"batchIndex"`
	BatchSize     int                `json:"batchSize"`
	PromptVariant string             `json:"promptVariant"`
	Usage         Usage              `json:"usageReceipt"`
	RecordIDs     []string           `json:"recordIds"`
	Results       []EnrichmentResult `json:"resultingRecords"`
	// Error is set when the response was rejected and nothing was merged.
	Error string `json:"error,omitempty"`
}
