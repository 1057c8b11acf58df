package testsupport

import (
	"context"
	"fmt"
	"sync"

	"ritualsync/internal/ritual"
)

// FakeInvoker returns one canned result per "Ritual N:" block of the batch
// payload. Calls listed in FailCalls (1-based) fail instead.
type FakeInvoker struct {
	FailCalls map[int]bool

	mu       sync.Mutex
	payloads []string
}

// Generate implements enrichment.Invoker.
func (f *FakeInvoker) Generate(ctx context.Context, _ string, payload string) ([]ritual.EnrichmentResult, ritual.Usage, error) {
	if err := ctx.Err(); err != nil {
		return nil, ritual.Usage{}, err
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	call := len(f.payloads)
	f.mu.Unlock()

	if f.FailCalls[call] {
		return nil, ritual.Usage{}, fmt.Errorf("fake invoker: call %d rejected", call)
	}
	n := len(ritualMarker.FindAllString(payload, -1))
	results := make([]ritual.EnrichmentResult, n)
	for i := range results {
		results[i] = ritual.EnrichmentResult{
			TagLine:         fmt.Sprintf("Tagline %d.%d", call, i+1),
			Description:     "A short shared practice.",
			HowItHelps:      "Builds connection.",
			Steps:           []string{"Sit together", "Share one thing"},
			LoveTypes:       []string{string(ritual.LoveCare)},
			RelationalNeeds: []string{string(ritual.NeedConnection)},
			RitualTones:     []string{string(ritual.ToneWarm)},
			RitualMode:      string(ritual.ModeTogether),
			TimeTaken:       string(ritual.TimeShort),
			SemanticSummary: "connection care",
		}
	}
	return results, ritual.Usage{Model: "fake", PromptTokens: 10 * n, CompletionTokens: 5 * n, TotalTokens: 15 * n}, nil
}

// Payloads returns every batch payload received, in call order.
func (f *FakeInvoker) Payloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}
