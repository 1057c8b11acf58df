// Package llm provides an OpenRouter-compatible chat client that requests
// JSON-only completions.
//
// The enrichment pipeline sends a system prompt describing the ritual schema
// and a user prompt carrying a batch of ritual records; the model answers with
// a JSON object. CompleteJSONWithUsage also returns the provider's token and
// cost accounting so each batch can be audited.
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, referer, title and
// timeout. An empty base_url targets the OpenRouter chat completions endpoint.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). A Retry-After header overrides the computed delay. Context
// cancellation aborts retries immediately.
//
// Errors carry services markers: rejected credentials are ErrConfiguration,
// empty completions are ErrDecode and everything else is ErrTransport.
//
// DecodeLLMJSON tolerates code fences and prose around the JSON payload.
package llm
