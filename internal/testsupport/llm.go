package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
)

var ritualMarker = regexp.MustCompile(`(?m)^Ritual \d+:$`)

// LLMServer is a fake chat completion endpoint.
type LLMServer struct {
	*httptest.Server
	calls atomic.Int32
}

// Calls returns the number of completion requests served.
func (s *LLMServer) Calls() int {
	return int(s.calls.Load())
}

// NewLLMServer serves one canned enrichment per "Ritual N:" block in the
// user prompt; a prompt without any block gets {"ok":true} for health
// checks. When fail reports true for a 1-based call number, the server
// answers 400 instead.
func NewLLMServer(t testing.TB, fail func(call int) bool) *LLMServer {
	t.Helper()

	srv := &LLMServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := int(srv.calls.Add(1))
		if fail != nil && fail(call) {
			http.Error(w, `{"error":{"message":"rejected"}}`, http.StatusBadRequest)
			return
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var user string
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}
		n := len(ritualMarker.FindAllString(user, -1))
		rituals := make([]map[string]any, n)
		for i := range rituals {
			rituals[i] = map[string]any{
				"tagLine":         fmt.Sprintf("Tagline %d", i+1),
				"description":     "A short shared practice.",
				"howItHelps":      "Builds connection.",
				"steps":           []string{"Sit together", "Share one thing"},
				"loveTypes":       []string{"CARE"},
				"relationalNeeds": []string{"CONNECTION"},
				"ritualTones":     []string{"WARM"},
				"ritualMode":      "TOGETHER",
				"timeTaken":       "SHORT",
				"semanticSummary": "connection care",
			}
		}
		body := map[string]any{"rituals": rituals}
		if n == 0 {
			body["ok"] = true
		}
		content, _ := json.Marshal(body)
		resp := map[string]any{
			"model": "test-model",
			"choices": []any{
				map[string]any{"message": map[string]any{"content": string(content)}},
			},
			"usage": map[string]any{
				"prompt_tokens":     100 * n,
				"completion_tokens": 50 * n,
				"total_tokens":      150 * n,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}
