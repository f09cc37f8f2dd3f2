// Package caption turns a movie title into a schema-validated caption record.
package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/domain/kino"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/gemini"
)

// Failure classifies why no caption was produced.
type Failure string

const (
	FailureNone      Failure = ""
	FailureTransport Failure = "transport"
	FailureEmpty     Failure = "empty_response"
	FailureSchema    Failure = "schema_violation"
)

// StructuredClient is the Gemini surface the generator needs.
type StructuredClient interface {
	Structured(ctx context.Context, req gemini.Request, schema map[string]any) (map[string]any, string, error)
}

// Prompter renders the caption instruction.
type Prompter interface {
	CaptionUser(title string, language string) (string, error)
}

// OutcomeRecorder counts generation outcomes.
type OutcomeRecorder interface {
	RecordGeneration(operation string, outcome string)
}

// Result is the outcome of one Generate call. Caption is the zero value unless OK.
type Result struct {
	Caption kino.Caption
	OK      bool
	Failure Failure
	Err     error
	Model   string
}

// Option customizes a Generator.
type Option func(*Generator)

// WithOutcomeRecorder reports every outcome to rec.
func WithOutcomeRecorder(rec OutcomeRecorder) Option {
	return func(g *Generator) {
		g.outcomes = rec
	}
}

// Generator produces captions. It holds no mutable state and is safe for concurrent use.
type Generator struct {
	client   StructuredClient
	prompts  Prompter
	language string
	logger   *slog.Logger
	outcomes OutcomeRecorder
}

// NewGenerator wires a Generator.
func NewGenerator(client StructuredClient, prompts Prompter, cfg config.CaptionConfig, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	language := cfg.Language
	if language == "" {
		language = "Uzbek"
	}
	g := &Generator{
		client:   client,
		prompts:  prompts,
		language: language,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate makes exactly one structured call for title. It never panics and
// never returns a partially populated caption. title is used as given.
func (g *Generator) Generate(ctx context.Context, title string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = g.fail(ctx, title, FailureTransport, fmt.Errorf("caption generation panic: %v", r), result.Model)
		}
	}()

	instruction, err := g.prompts.CaptionUser(title, g.language)
	if err != nil {
		return g.fail(ctx, title, FailureTransport, fmt.Errorf("build caption prompt: %w", err), "")
	}

	payload, model, err := g.client.Structured(ctx, gemini.Request{
		Prompt: instruction,
		Task:   config.TaskCaption,
	}, kino.CaptionSchema())
	if err != nil {
		return g.fail(ctx, title, classify(err), err, model)
	}
	if payload == nil {
		return g.fail(ctx, title, FailureEmpty, gemini.ErrEmptyResponse, model)
	}

	caption, err := decodeCaption(payload)
	if err != nil {
		return g.fail(ctx, title, FailureSchema, err, model)
	}

	g.record("generated")
	g.logger.DebugContext(ctx, "caption_generated", "title", title, "model", model)
	return Result{Caption: caption, OK: true, Failure: FailureNone, Model: model}
}

func (g *Generator) fail(ctx context.Context, title string, failure Failure, err error, model string) Result {
	g.record("failed_" + string(failure))
	g.logger.WarnContext(ctx, "caption_generation_failed",
		"failure", string(failure),
		"title", title,
		"model", model,
		"err", err,
	)
	return Result{OK: false, Failure: failure, Err: err, Model: model}
}

func (g *Generator) record(outcome string) {
	if g.outcomes != nil {
		g.outcomes.RecordGeneration("caption", outcome)
	}
}

func classify(err error) Failure {
	switch {
	case errors.Is(err, gemini.ErrEmptyResponse):
		return FailureEmpty
	case errors.Is(err, gemini.ErrMalformedJSON):
		return FailureSchema
	default:
		return FailureTransport
	}
}
