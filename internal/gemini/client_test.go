package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/metrics"
)

type fakeGemini struct {
	mu       sync.Mutex
	status   int
	body     string
	requests []string
	paths    []string
	keys     []string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, string(raw))
	f.paths = append(f.paths, r.URL.Path)
	f.keys = append(f.keys, r.Header.Get("x-goog-api-key"))
	status, body := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func textResponse(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[` +
		`{"text":"thinking...","thought":true},` +
		`{"text":` + quote(text) + `}]},"finishReason":"STOP"}],` +
		`"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":7,"totalTokenCount":12}}`
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}

func newTestClient(t *testing.T, server *httptest.Server, keys ...string) (*Client, *metrics.Store) {
	t.Helper()
	if len(keys) == 0 {
		keys = []string{"test-key"}
	}
	cfg := &config.Config{Gemini: config.GeminiConfig{
		APIKeys:        keys,
		DefaultModel:   "gemini-3-flash-preview",
		TimeoutSeconds: 5,
	}}
	store := metrics.NewStore()
	client, err := NewClient(cfg, store, nil, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client, store
}

func TestClientChatStripsThoughts(t *testing.T) {
	fake := &fakeGemini{body: textResponse("Salom! Qanday yordam bera olaman?")}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, store := newTestClient(t, server)
	temperature := float32(0.7)
	text, model, err := client.Chat(context.Background(), Request{
		Prompt:       "Salom",
		SystemPrompt: "Siz yordamchisiz.",
		Task:         config.TaskReply,
		Temperature:  &temperature,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Salom! Qanday yordam bera olaman?" {
		t.Fatalf("unexpected text: %q", text)
	}
	if model != "gemini-3-flash-preview" {
		t.Fatalf("unexpected model: %s", model)
	}

	if len(fake.requests) != 1 {
		t.Fatalf("expected exactly one call, got %d", len(fake.requests))
	}
	if !strings.Contains(fake.paths[0], "gemini-3-flash-preview:generateContent") {
		t.Fatalf("unexpected path: %s", fake.paths[0])
	}
	body := fake.requests[0]
	for _, want := range []string{"Salom", "Siz yordamchisiz.", `"temperature"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("request body missing %q: %s", want, body)
		}
	}
	if strings.Contains(body, "application/json") {
		t.Fatalf("free-text request must not ask for json: %s", body)
	}

	if got := store.Snapshot()["total_calls"]; got != 1 {
		t.Fatalf("expected 1 recorded call, got %v", got)
	}
	if got := store.UsageTotals().InputTokens; got != 5 {
		t.Fatalf("expected 5 input tokens, got %d", got)
	}
}

func TestClientStructuredSendsSchema(t *testing.T) {
	payload := `{"title":"Inception","genre":"Fantastika","year":"2010","description":"Tush ichida tush.","hashtags":["#kino"]}`
	fake := &fakeGemini{body: textResponse(payload)}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, _ := newTestClient(t, server)
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"title": map[string]any{"type": "string"}},
		"required":   []string{"title"},
	}
	parsed, _, err := client.Structured(context.Background(), Request{Prompt: "Inception", Task: config.TaskCaption}, schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed["title"] != "Inception" {
		t.Fatalf("unexpected parsed payload: %+v", parsed)
	}

	body := fake.requests[0]
	if !strings.Contains(body, "application/json") {
		t.Fatalf("expected json mime type in request: %s", body)
	}
	if !strings.Contains(body, `"required":["title"]`) {
		t.Fatalf("expected schema in request: %s", body)
	}
}

func TestClientStructuredErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty text", textResponse("  "), ErrEmptyResponse},
		{"no candidates", `{"candidates":[]}`, ErrEmptyResponse},
		{"not json", textResponse("Inception is a film"), ErrMalformedJSON},
		{"json null", textResponse("null"), ErrMalformedJSON},
		{"json array", textResponse(`["a"]`), ErrMalformedJSON},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(&fakeGemini{body: tc.body})
			defer server.Close()

			client, _ := newTestClient(t, server)
			_, _, err := client.Structured(context.Background(), Request{Prompt: "x", Task: config.TaskCaption}, map[string]any{"type": "object"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClientTransportError(t *testing.T) {
	fake := &fakeGemini{status: http.StatusBadRequest, body: `{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, store := newTestClient(t, server)
	_, _, err := client.Chat(context.Background(), Request{Prompt: "Salom", Task: config.TaskReply})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("transport failure misclassified: %v", err)
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected no retries, got %d calls", len(fake.requests))
	}
	if got := store.Snapshot()["total_errors"]; got != 1 {
		t.Fatalf("expected 1 recorded error, got %v", got)
	}
}

func TestClientRotatesKeys(t *testing.T) {
	fake := &fakeGemini{body: textResponse("ok")}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, _ := newTestClient(t, server, "key-a", "key-b")
	for range 3 {
		if _, _, err := client.Chat(context.Background(), Request{Prompt: "x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	want := []string{"key-a", "key-b", "key-a"}
	for i, key := range want {
		if fake.keys[i] != key {
			t.Fatalf("call %d used key %q, want %q", i, fake.keys[i], key)
		}
	}
	if len(client.clients) != 2 {
		t.Fatalf("expected one genai client per key, got %d", len(client.clients))
	}
}

func TestClientMissingAPIKey(t *testing.T) {
	cfg := &config.Config{Gemini: config.GeminiConfig{DefaultModel: "gemini-3-flash-preview"}}
	client, err := NewClient(cfg, metrics.NewStore(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := client.Chat(context.Background(), Request{Prompt: "x"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewClientRequiresDependencies(t *testing.T) {
	if _, err := NewClient(nil, metrics.NewStore(), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := NewClient(&config.Config{}, nil, nil); err == nil {
		t.Fatalf("expected error for nil metrics")
	}
}

func TestNormalizeThinkingLevel(t *testing.T) {
	level, ok := normalizeThinkingLevel("low")
	if !ok || level != genai.ThinkingLevelLow {
		t.Fatalf("unexpected thinking level")
	}
	if _, ok := normalizeThinkingLevel("none"); ok {
		t.Fatalf("expected none to be disabled")
	}
	if _, ok := normalizeThinkingLevel("unknown"); ok {
		t.Fatalf("expected unknown to be disabled")
	}
}

func TestBuildGenerateConfig(t *testing.T) {
	client := &Client{cfg: &config.Config{Gemini: config.GeminiConfig{
		MaxOutputTokens: 1024,
		Thinking:        config.ThinkingConfig{LevelDefault: "low", LevelReply: "none"},
	}}}

	temperature := float32(0.7)
	cfg := client.buildGenerateConfig(Request{SystemPrompt: "sys", Task: config.TaskReply, Temperature: &temperature}, "", nil)
	if cfg.Temperature == nil || *cfg.Temperature != 0.7 {
		t.Fatalf("expected temperature override")
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "sys" {
		t.Fatalf("expected system instruction")
	}
	if cfg.ThinkingConfig != nil {
		t.Fatalf("expected thinking disabled for reply")
	}
	if cfg.ResponseMIMEType != "" || cfg.ResponseJsonSchema != nil {
		t.Fatalf("unexpected structured settings on free-text call")
	}

	schema := map[string]any{"type": "object"}
	cfg = client.buildGenerateConfig(Request{Task: config.TaskCaption}, mimeTypeJSON, schema)
	if cfg.Temperature != nil {
		t.Fatalf("expected model default temperature")
	}
	if cfg.ResponseMIMEType != mimeTypeJSON || cfg.ResponseJsonSchema == nil {
		t.Fatalf("expected structured settings")
	}
	if cfg.ThinkingConfig == nil || cfg.ThinkingConfig.ThinkingLevel != genai.ThinkingLevelLow {
		t.Fatalf("expected low thinking for caption")
	}
	if cfg.MaxOutputTokens != 1024 {
		t.Fatalf("unexpected max tokens: %d", cfg.MaxOutputTokens)
	}
}

func TestExtractParts(t *testing.T) {
	texts, thoughts := extractParts(nil)
	if texts != nil || thoughts != nil {
		t.Fatalf("expected nil parts for nil response")
	}

	response := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "answer"},
						{Text: "thought", Thought: true},
						{Text: ""},
						nil,
					},
				},
			},
		},
	}
	texts, thoughts = extractParts(response)
	if len(texts) != 1 || texts[0] != "answer" {
		t.Fatalf("unexpected texts: %v", texts)
	}
	if len(thoughts) != 1 || thoughts[0] != "thought" {
		t.Fatalf("unexpected thoughts: %v", thoughts)
	}
}

func TestExtractUsage(t *testing.T) {
	response := &genai.GenerateContentResponse{
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:        10,
			CandidatesTokenCount:    20,
			ThoughtsTokenCount:      3,
			TotalTokenCount:         33,
			CachedContentTokenCount: 4,
		},
	}
	u := extractUsage(response)
	if u.InputTokens != 10 || u.OutputTokens != 23 || u.TotalTokens != 33 || u.ReasoningTokens != 3 || u.CachedTokens != 4 {
		t.Fatalf("unexpected usage: %+v", u)
	}
}

func TestResolveModel(t *testing.T) {
	cfg := &config.Config{
		Gemini: config.GeminiConfig{
			DefaultModel: "gemini-3-flash-preview",
			CaptionModel: "gemini-3-pro-preview",
		},
	}
	client := &Client{cfg: cfg}

	model, err := client.resolveModel("", config.TaskCaption)
	if err != nil || model != "gemini-3-pro-preview" {
		t.Fatalf("expected caption model, got model=%s err=%v", model, err)
	}

	model, err = client.resolveModel("gemini-2.5-flash", config.TaskCaption)
	if err != nil || model != "gemini-2.5-flash" {
		t.Fatalf("expected override model, got model=%s err=%v", model, err)
	}

	model, err = client.resolveModel("gpt-4o", config.TaskReply)
	if !errors.Is(err, ErrInvalidModel) || model != "gpt-4o" {
		t.Fatalf("expected invalid model error, got model=%s err=%v", model, err)
	}

	emptyClient := &Client{cfg: &config.Config{}}
	if _, err := emptyClient.resolveModel("", config.TaskReply); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected empty invalid model, got err=%v", err)
	}
}
