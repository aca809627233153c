package api

// GenerateRequest is the body of POST /v1/generate. Unset sampling fields
// fall back to the server defaults.
type GenerateRequest struct {
	Prompt        string   `json:"prompt"`
	MaxNewTokens  *int     `json:"max_new_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	RepeatWindow  *int     `json:"repeat_window,omitempty"`
	// NoCache forces a fresh run even when an identical request was served.
	NoCache bool `json:"no_cache,omitempty"`
}

type Generation struct {
	ID        string       `json:"id"`
	Object    string       `json:"object"`
	CreatedAt int64        `json:"created_at"`
	Prompt    string       `json:"prompt"`
	Text      string       `json:"text"`
	Tokens    []int        `json:"tokens,omitempty"`
	Stop      string       `json:"stop_reason"`
	Sampling  SamplingEcho `json:"sampling"`
	Usage     Usage        `json:"usage"`
	Cached    bool         `json:"cached"`
}

// SamplingEcho reports the configuration a generation actually ran with.
type SamplingEcho struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	Seed          int64    `json:"seed"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	RepeatWindow  int      `json:"repeat_window"`
	MaxNewTokens  int      `json:"max_new_tokens"`
}

type Usage struct {
	PromptTokens    int     `json:"prompt_tokens"`
	GeneratedTokens int     `json:"generated_tokens"`
	PrefillMillis   float64 `json:"prefill_ms"`
	DecodeMillis    float64 `json:"decode_ms"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Engines int    `json:"engines"`
	Stored  int    `json:"stored"`
}
