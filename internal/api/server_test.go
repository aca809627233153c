package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/ssmgen/internal/inference"
	"github.com/samcharles93/ssmgen/internal/logits"
)

func newToyPool(t *testing.T, size int) *Pool {
	t.Helper()
	backend, err := inference.Loader{Model: inference.ToyModelName, ToySeed: 3, ToyHidden: 16}.Load()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	maxTokens := 12
	pool, err := NewPool(size, func() (*inference.Engine, error) { return backend.NewEngine() },
		inference.GenDefaults{MaxNewTokens: &maxTokens})
	if err != nil {
		t.Fatal(err)
	}
	return pool
}

func newTestEcho(gen Generator, opts ...ServerOption) *echo.Echo {
	server := NewServer(NewGenerationStore(0), gen, opts...)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeGeneration(t *testing.T, rec *httptest.ResponseRecorder) Generation {
	t.Helper()
	var gen Generation
	if err := json.Unmarshal(rec.Body.Bytes(), &gen); err != nil {
		t.Fatalf("decode generation: %v body=%s", err, rec.Body.String())
	}
	return gen
}

func TestGenerateGetDeleteLifecycle(t *testing.T) {
	t.Parallel()

	e := newTestEcho(newToyPool(t, 1))
	createRec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hello","max_new_tokens":5}`)
	if createRec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", createRec.Code, createRec.Body.String())
	}
	created := decodeGeneration(t, createRec)
	if !strings.HasPrefix(created.ID, "gen_") {
		t.Fatalf("unexpected id %q", created.ID)
	}
	if created.Usage.PromptTokens != 5 || created.Usage.GeneratedTokens < 1 || created.Usage.GeneratedTokens > 5 {
		t.Fatalf("unexpected usage %+v", created.Usage)
	}
	if !strings.HasPrefix(created.Text, "hello") {
		t.Fatalf("text %q does not start with the prompt", created.Text)
	}
	if created.Sampling.Seed != logits.DefaultSeed || created.Sampling.MaxNewTokens != 5 {
		t.Fatalf("unexpected sampling echo %+v", created.Sampling)
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/generations/"+created.ID, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d body=%s", getRec.Code, getRec.Body.String())
	}
	if got := decodeGeneration(t, getRec); got.Text != created.Text {
		t.Fatalf("stored text %q != %q", got.Text, created.Text)
	}

	delRec := doJSON(t, e, http.MethodDelete, "/v1/generations/"+created.ID, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d body=%s", delRec.Code, delRec.Body.String())
	}
	if !strings.Contains(delRec.Body.String(), `"deleted":true`) {
		t.Fatalf("delete response missing deleted=true: %s", delRec.Body.String())
	}

	getDeletedRec := doJSON(t, e, http.MethodGet, "/v1/generations/"+created.ID, "")
	if getDeletedRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d body=%s", getDeletedRec.Code, getDeletedRec.Body.String())
	}
}

func TestGenerateServesRepeatsFromCache(t *testing.T) {
	t.Parallel()

	e := newTestEcho(newToyPool(t, 1))
	body := `{"prompt":"abc","temperature":0.8,"top_p":0.9,"seed":11}`
	first := decodeGeneration(t, doJSON(t, e, http.MethodPost, "/v1/generate", body))
	second := decodeGeneration(t, doJSON(t, e, http.MethodPost, "/v1/generate", body))
	if first.Cached || !second.Cached {
		t.Fatalf("cached flags: first=%v second=%v", first.Cached, second.Cached)
	}
	if second.ID != first.ID || second.Text != first.Text {
		t.Fatalf("cache hit returned a different generation")
	}

	fresh := decodeGeneration(t, doJSON(t, e, http.MethodPost, "/v1/generate",
		`{"prompt":"abc","temperature":0.8,"top_p":0.9,"seed":11,"no_cache":true}`))
	if fresh.Cached || fresh.ID == first.ID {
		t.Fatal("no_cache request was served from the store")
	}
	if fresh.Text != first.Text {
		t.Fatalf("same seed produced %q then %q", first.Text, fresh.Text)
	}
}

func TestGenerateValidationErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(newToyPool(t, 1))
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, "request body is empty"},
		{"malformed", `{"prompt":`, ""},
		{"unknown field", `{"prompt":"x","stream":true}`, "stream"},
		{"empty prompt", `{"prompt":""}`, "empty prompt"},
		{"negative temperature", `{"prompt":"x","temperature":-1}`, "temperature"},
		{"top_p out of range", `{"prompt":"x","top_p":1.5}`, "top_p"},
		{"penalty below one", `{"prompt":"x","repeat_penalty":0.5}`, "repeat_penalty"},
		{"zero budget", `{"prompt":"x","max_new_tokens":0}`, "max_new_tokens"},
		{"zero penalty", `{"prompt":"x","repeat_penalty":0}`, "repeat_penalty"},
		{"zero window", `{"prompt":"x","repeat_window":0}`, "repeat_window"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/v1/generate", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Fatalf("body %s does not mention %q", rec.Body.String(), tc.want)
			}
		})
	}
}

type errGenerator struct{ err error }

func (g errGenerator) Resolve(opts inference.RequestOptions) logits.SamplingConfig {
	return inference.ResolveRequest(opts, inference.GenDefaults{})
}

func (g errGenerator) Run(context.Context, string, logits.SamplingConfig) (*inference.Result, error) {
	return nil, g.err
}

func TestGenerateMapsErrorKinds(t *testing.T) {
	t.Parallel()

	kind := func(k error) error { return &inference.Error{Kind: k, Op: "test"} }
	cases := []struct {
		err  error
		want int
	}{
		{kind(inference.ErrConfig), http.StatusBadRequest},
		{kind(inference.ErrEncoding), http.StatusBadRequest},
		{kind(inference.ErrEmptyPrompt), http.StatusBadRequest},
		{kind(inference.ErrBusy), http.StatusTooManyRequests},
		{kind(inference.ErrCancelled), http.StatusServiceUnavailable},
		{kind(inference.ErrModel), http.StatusInternalServerError},
		{kind(inference.ErrDecoding), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		e := newTestEcho(errGenerator{err: tc.err})
		rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"x"}`)
		if rec.Code != tc.want {
			t.Fatalf("%v: got %d body=%s", tc.err, rec.Code, rec.Body.String())
		}
	}
}

func TestGenerateRateLimited(t *testing.T) {
	t.Parallel()

	e := newTestEcho(newToyPool(t, 1), WithRateLimit(rate.NewLimiter(rate.Every(time.Hour), 1)))
	if rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"a"}`); rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d body=%s", rec.Code, rec.Body.String())
	}
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"b"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body=%s", rec.Code, rec.Body.String())
	}
	// lookups are not limited
	if rec := doJSON(t, e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", rec.Code)
	}
}

func TestHealthReportsEngines(t *testing.T) {
	t.Parallel()

	e := newTestEcho(newToyPool(t, 3))
	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Engines != 3 || health.Version == "" {
		t.Fatalf("unexpected health %+v", health)
	}
}
