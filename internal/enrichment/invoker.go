package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"ritualsync/internal/logging"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
	"ritualsync/internal/services/llm"
)

// Invoker generates one result per ritual block in batchPayload, in order.
// It fails for the whole batch or not at all.
type Invoker interface {
	Generate(ctx context.Context, systemPrompt, batchPayload string) ([]ritual.EnrichmentResult, ritual.Usage, error)
}

type jsonCompleter interface {
	CompleteJSONWithUsage(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error)
}

// LLMInvoker generates results with a JSON-mode chat completion.
type LLMInvoker struct {
	client jsonCompleter
	logger *slog.Logger
}

// NewLLMInvoker wraps an LLM client.
func NewLLMInvoker(client *llm.Client, logger *slog.Logger) *LLMInvoker {
	return &LLMInvoker{client: client, logger: logging.NewComponentLogger(logger, "llm-invoker")}
}

// Generate sends the batch and decodes the {"rituals": [...]} response.
// Vocabulary values outside the closed sets are dropped with a warning.
func (i *LLMInvoker) Generate(ctx context.Context, systemPrompt, batchPayload string) ([]ritual.EnrichmentResult, ritual.Usage, error) {
	completion, err := i.client.CompleteJSONWithUsage(ctx, systemPrompt, batchPayload)
	if err != nil {
		return nil, ritual.Usage{}, services.Wrap(services.ErrTransport, "llm", "generate", "", err)
	}
	usage := ritual.Usage{
		Model:            completion.Usage.Model,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
		TotalTokens:      completion.Usage.TotalTokens,
		CostUSD:          completion.Usage.CostUSD,
	}
	raw, err := decodeResponse(completion.Content)
	if err != nil {
		return nil, usage, services.Wrap(services.ErrDecode, "llm", "generate", "parse rituals payload", err)
	}
	logger := logging.WithContext(ctx, i.logger)
	results := make([]ritual.EnrichmentResult, 0, len(raw))
	for pos, r := range raw {
		results = append(results, r.normalize(logger, pos+1))
	}
	return results, usage, nil
}

type batchResponse struct {
	Rituals []rawResult `json:"rituals"`
}

func decodeResponse(content string) ([]rawResult, error) {
	var envelope batchResponse
	envErr := llm.DecodeLLMJSON(content, &envelope)
	if envErr == nil && envelope.Rituals != nil {
		return envelope.Rituals, nil
	}
	var bare []rawResult
	if err := llm.DecodeLLMJSON(content, &bare); err == nil {
		return bare, nil
	}
	if envErr != nil {
		return nil, envErr
	}
	return nil, fmt.Errorf(`response has no "rituals" array`)
}

// flexList accepts either a JSON array of strings or a single string.
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = flexList{single}
	return nil
}

type rawResult struct {
	TagLine         string   `json:"tagLine"`
	Description     string   `json:"description"`
	HowItHelps      string   `json:"howItHelps"`
	Steps           flexList `json:"steps"`
	LoveTypes       flexList `json:"loveTypes"`
	RelationalNeeds flexList `json:"relationalNeeds"`
	RitualTones     flexList `json:"ritualTones"`
	RitualMode      string   `json:"ritualMode"`
	TimeTaken       string   `json:"timeTaken"`
	SemanticSummary string   `json:"semanticSummary"`
}

func (r rawResult) normalize(logger *slog.Logger, position int) ritual.EnrichmentResult {
	steps := []string(r.Steps)
	if len(steps) == 1 && strings.Contains(steps[0], "\n") {
		steps = strings.Split(steps[0], "\n")
	}
	out := ritual.EnrichmentResult{
		TagLine:         strings.TrimSpace(r.TagLine),
		Description:     strings.TrimSpace(r.Description),
		HowItHelps:      strings.TrimSpace(r.HowItHelps),
		Steps:           ritual.NormalizeSteps(steps),
		SemanticSummary: strings.TrimSpace(r.SemanticSummary),
	}
	out.LoveTypes = vocabList(logger, position, ritual.FieldLoveTypes, r.LoveTypes)
	out.RelationalNeeds = vocabList(logger, position, ritual.FieldRelationalNeeds, r.RelationalNeeds)
	out.RitualTones = vocabList(logger, position, ritual.FieldRitualTones, r.RitualTones)
	out.RitualMode = vocabSingle(logger, position, ritual.FieldRitualMode, r.RitualMode)
	out.TimeTaken = vocabSingle(logger, position, ritual.FieldTimeTaken, r.TimeTaken)
	return out
}

func vocabList(logger *slog.Logger, position int, f ritual.Field, items flexList) []string {
	var terms []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			terms = append(terms, strings.TrimSpace(part))
		}
	}
	kept, rejected := ritual.SplitTerms(f, terms)
	if len(rejected) > 0 {
		logging.WarnWithContext(logger, "generated values outside vocabulary", "llm_vocabulary_rejected",
			logging.Int("position", position),
			logging.String("field", string(f)),
			logging.Strings("values", rejected),
			logging.String(logging.FieldErrorHint, "tighten the system prompt vocabulary section"),
			logging.String(logging.FieldImpact, "values dropped from the result"),
		)
	}
	if kept == nil {
		kept = []string{}
	}
	return kept
}

func vocabSingle(logger *slog.Logger, position int, f ritual.Field, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	canonical, ok := ritual.CanonicalTerm(f, value)
	if !ok {
		logging.WarnWithContext(logger, "generated value outside vocabulary", "llm_vocabulary_rejected",
			logging.Int("position", position),
			logging.String("field", string(f)),
			logging.String("value", value),
			logging.String(logging.FieldImpact, "value left empty"),
		)
		return ""
	}
	return canonical
}
