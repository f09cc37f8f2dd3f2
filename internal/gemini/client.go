package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/llm"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/metrics"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/telemetry"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/usage"
)

const mimeTypeJSON = "application/json"

var (
	// ErrMissingAPIKey is returned when no Gemini API key is configured.
	ErrMissingAPIKey = errors.New("missing gemini api key")
	// ErrInvalidModel is returned for empty or non-Gemini model names.
	ErrInvalidModel = errors.New("invalid model")
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrMalformedJSON is returned when a structured response is not a JSON object.
	ErrMalformedJSON = errors.New("malformed structured response")
)

// Request is one generateContent call.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Task         string
	// Temperature overrides the model default when set.
	Temperature *float32
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different Gemini endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// Client calls Gemini. It is built once at startup and shared by all generators.
type Client struct {
	cfg           *config.Config
	metrics       *metrics.Store
	usageRecorder *usage.Recorder
	tracer        trace.Tracer
	baseURL       string
	mu            sync.Mutex
	clients       map[string]*genai.Client
	apiKeys       []string
	apiKeyIdx     int
}

// NewClient creates the Gemini client. usageRecorder may be nil.
func NewClient(cfg *config.Config, metricsStore *metrics.Store, usageRecorder *usage.Recorder, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if metricsStore == nil {
		return nil, errors.New("metrics store is nil")
	}
	c := &Client{
		cfg:           cfg,
		metrics:       metricsStore,
		usageRecorder: usageRecorder,
		tracer:        telemetry.Tracer(),
		clients:       make(map[string]*genai.Client),
		apiKeys:       cfg.Gemini.APIKeys,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chat returns the model text with thought parts removed, and the resolved model.
func (c *Client) Chat(ctx context.Context, req Request) (string, string, error) {
	result, model, err := c.ChatWithUsage(ctx, req)
	if err != nil {
		return "", model, err
	}
	return result.Text, model, nil
}

// ChatWithUsage returns the model text together with token usage and reasoning.
func (c *Client) ChatWithUsage(ctx context.Context, req Request) (llm.ChatResult, string, error) {
	response, model, err := c.generate(ctx, req, "", nil)
	if err != nil {
		return llm.ChatResult{}, model, err
	}

	textParts, thoughtParts := extractParts(response)
	reasoning := strings.Join(thoughtParts, "\n")
	return llm.ChatResult{
		Text:         strings.Join(textParts, ""),
		Usage:        extractUsage(response),
		Reasoning:    reasoning,
		HasReasoning: reasoning != "",
	}, model, nil
}

// Structured asks for application/json constrained by schema and decodes the
// payload into a generic object.
func (c *Client) Structured(ctx context.Context, req Request, schema map[string]any) (map[string]any, string, error) {
	response, model, err := c.generate(ctx, req, mimeTypeJSON, schema)
	if err != nil {
		return nil, model, err
	}

	textParts, _ := extractParts(response)
	payload := strings.TrimSpace(strings.Join(textParts, ""))
	if payload == "" {
		return nil, model, ErrEmptyResponse
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, model, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	if parsed == nil {
		return nil, model, fmt.Errorf("%w: not an object", ErrMalformedJSON)
	}

	return parsed, model, nil
}

func (c *Client) recordUsage(ctx context.Context, task string, u llm.Usage) {
	if c.usageRecorder == nil {
		return
	}
	c.usageRecorder.Record(
		ctx,
		usage.OperationForTask(task),
		int64(u.InputTokens),
		int64(u.OutputTokens),
		int64(u.ReasoningTokens),
	)
}

// generate performs exactly one generateContent call and records metrics and usage.
func (c *Client) generate(
	ctx context.Context,
	req Request,
	responseMimeType string,
	responseSchema map[string]any,
) (*genai.GenerateContentResponse, string, error) {
	ctx, span := c.tracer.Start(ctx, "gemini.generate", trace.WithAttributes(
		attribute.String("gemini.task", req.Task),
		attribute.Bool("gemini.structured", responseSchema != nil),
	))
	defer span.End()

	start := time.Now()
	response, model, err := c.call(ctx, req, responseMimeType, responseSchema)
	span.SetAttributes(attribute.String("gemini.model", model))
	if err != nil {
		c.metrics.RecordError(time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, model, err
	}

	u := extractUsage(response)
	c.metrics.RecordSuccess(time.Since(start), u)
	c.recordUsage(ctx, req.Task, u)
	span.SetAttributes(
		attribute.Int("gemini.input_tokens", u.InputTokens),
		attribute.Int("gemini.output_tokens", u.OutputTokens),
	)
	return response, model, nil
}

func (c *Client) call(
	ctx context.Context,
	req Request,
	responseMimeType string,
	responseSchema map[string]any,
) (*genai.GenerateContentResponse, string, error) {
	model, err := c.resolveModel(req.Model, req.Task)
	if err != nil {
		return nil, model, err
	}

	client, err := c.selectClient(ctx)
	if err != nil {
		return nil, model, err
	}

	genConfig := c.buildGenerateConfig(req, responseMimeType, responseSchema)
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	response, err := client.Models.GenerateContent(ctx, model, contents, genConfig)
	if err != nil {
		return nil, model, fmt.Errorf("generate content: %w", err)
	}
	return response, model, nil
}

// selectClient rotates API keys round-robin; one genai client per key, created lazily.
func (c *Client) selectClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.apiKeys) == 0 {
		return nil, ErrMissingAPIKey
	}

	key := c.apiKeys[c.apiKeyIdx%len(c.apiKeys)]
	c.apiKeyIdx++
	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	timeout := time.Duration(c.cfg.Gemini.TimeoutSeconds) * time.Second
	httpOptions := genai.HTTPOptions{
		BaseURL: c.baseURL,
	}
	if timeout > 0 {
		httpOptions.Timeout = genai.Ptr(timeout)
	}
	client, err := genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	c.clients[key] = client
	return client, nil
}

func (c *Client) resolveModel(modelOverride string, task string) (string, error) {
	model := strings.TrimSpace(modelOverride)
	if model == "" {
		model = c.cfg.Gemini.ModelForTask(task)
	}
	if model == "" {
		return "", ErrInvalidModel
	}
	if !isGeminiModel(model) {
		return model, ErrInvalidModel
	}
	return model, nil
}

func (c *Client) buildGenerateConfig(
	req Request,
	responseMimeType string,
	responseSchema map[string]any,
) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{}
	if c.cfg.Gemini.MaxOutputTokens > 0 {
		genConfig.MaxOutputTokens = int32(c.cfg.Gemini.MaxOutputTokens)
	}
	if req.Temperature != nil {
		genConfig.Temperature = genai.Ptr(*req.Temperature)
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if responseMimeType != "" {
		genConfig.ResponseMIMEType = responseMimeType
	}
	if responseSchema != nil {
		genConfig.ResponseJsonSchema = responseSchema
	}

	if thinkingLevel, ok := normalizeThinkingLevel(c.cfg.Gemini.Thinking.Level(req.Task)); ok {
		genConfig.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingLevel:   thinkingLevel,
		}
	}

	return genConfig
}

func normalizeThinkingLevel(level string) (genai.ThinkingLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return genai.ThinkingLevelLow, true
	case "medium":
		return genai.ThinkingLevelMedium, true
	case "high":
		return genai.ThinkingLevelHigh, true
	case "minimal":
		return genai.ThinkingLevelMinimal, true
	default:
		return "", false
	}
}

// extractParts splits the first candidate into answer text and thought text.
func extractParts(response *genai.GenerateContentResponse) ([]string, []string) {
	if response == nil || len(response.Candidates) == 0 {
		return nil, nil
	}
	content := response.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(content.Parts))
	thoughts := make([]string, 0)
	for _, part := range content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			thoughts = append(thoughts, part.Text)
			continue
		}
		texts = append(texts, part.Text)
	}
	return texts, thoughts
}

func extractUsage(response *genai.GenerateContentResponse) llm.Usage {
	if response == nil || response.UsageMetadata == nil {
		return llm.Usage{}
	}
	meta := response.UsageMetadata
	return llm.Usage{
		InputTokens:     int(meta.PromptTokenCount),
		OutputTokens:    int(meta.CandidatesTokenCount) + int(meta.ThoughtsTokenCount),
		TotalTokens:     int(meta.TotalTokenCount),
		ReasoningTokens: int(meta.ThoughtsTokenCount),
		CachedTokens:    int(meta.CachedContentTokenCount),
	}
}

func isGeminiModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gemini-")
}
