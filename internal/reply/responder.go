// Package reply produces short persona replies to channel users.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/gemini"
)

// Outcome of one reply attempt.
type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeEmpty     Outcome = "empty"
	OutcomeFailed    Outcome = "failed"
)

// ChatClient is the Gemini surface the responder needs.
type ChatClient interface {
	Chat(ctx context.Context, req gemini.Request) (string, string, error)
}

// Prompter returns the persona instruction.
type Prompter interface {
	ReplySystem() (string, error)
}

// OutcomeRecorder counts generation outcomes.
type OutcomeRecorder interface {
	RecordGeneration(operation string, outcome string)
}

// Fallbacks are the user-facing texts shown instead of a model reply.
type Fallbacks struct {
	// Empty is shown when the model answered with no text.
	Empty string
	// Busy is shown when the call failed.
	Busy string
}

// DefaultFallbacks returns the stock Uzbek fallbacks.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		Empty: config.DefaultFallbackEmpty,
		Busy:  config.DefaultFallbackBusy,
	}
}

func (f Fallbacks) withDefaults() Fallbacks {
	defaults := DefaultFallbacks()
	if strings.TrimSpace(f.Empty) == "" {
		f.Empty = defaults.Empty
	}
	if strings.TrimSpace(f.Busy) == "" {
		f.Busy = defaults.Busy
	}
	return f
}

// Result is the tagged outcome of Generate. Text is set only for OutcomeGenerated.
type Result struct {
	Text    string
	Outcome Outcome
	Err     error
	Model   string
}

// Display maps the result to text safe to show a user. Never empty.
func (r Result) Display(fallbacks Fallbacks) string {
	fallbacks = fallbacks.withDefaults()
	switch r.Outcome {
	case OutcomeGenerated:
		if strings.TrimSpace(r.Text) != "" {
			return r.Text
		}
		return fallbacks.Empty
	case OutcomeEmpty:
		return fallbacks.Empty
	default:
		return fallbacks.Busy
	}
}

// Option customizes a Responder.
type Option func(*Responder)

// WithOutcomeRecorder reports every outcome to rec.
func WithOutcomeRecorder(rec OutcomeRecorder) Option {
	return func(r *Responder) {
		r.outcomes = rec
	}
}

// Responder is stateless and safe for concurrent use.
type Responder struct {
	client      ChatClient
	prompts     Prompter
	temperature float32
	fallbacks   Fallbacks
	logger      *slog.Logger
	outcomes    OutcomeRecorder
}

// NewResponder wires a Responder.
func NewResponder(client ChatClient, prompts Prompter, cfg config.ReplyConfig, logger *slog.Logger, opts ...Option) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Responder{
		client:      client,
		prompts:     prompts,
		temperature: float32(cfg.Temperature),
		fallbacks:   Fallbacks{Empty: cfg.FallbackEmpty, Busy: cfg.FallbackBusy}.withDefaults(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fallbacks returns the configured fallback texts.
func (r *Responder) Fallbacks() Fallbacks {
	return r.fallbacks
}

// Generate makes exactly one chat call with message as the user turn, verbatim.
// Whitespace-only model text counts as empty. It never panics.
func (r *Responder) Generate(ctx context.Context, message string) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = r.failed(ctx, fmt.Errorf("reply generation panic: %v", rec), result.Model)
		}
	}()

	system, err := r.prompts.ReplySystem()
	if err != nil {
		return r.failed(ctx, fmt.Errorf("build reply prompt: %w", err), "")
	}

	temperature := r.temperature
	text, model, err := r.client.Chat(ctx, gemini.Request{
		Prompt:       message,
		SystemPrompt: system,
		Task:         config.TaskReply,
		Temperature:  &temperature,
	})
	if err != nil {
		return r.failed(ctx, err, model)
	}
	if strings.TrimSpace(text) == "" {
		r.record(OutcomeEmpty)
		r.logger.InfoContext(ctx, "reply_empty_response", "model", model)
		return Result{Outcome: OutcomeEmpty, Model: model}
	}

	r.record(OutcomeGenerated)
	return Result{Text: text, Outcome: OutcomeGenerated, Model: model}
}

// Reply returns the model reply or the matching fallback. Never empty.
func (r *Responder) Reply(ctx context.Context, message string) string {
	return r.Generate(ctx, message).Display(r.fallbacks)
}

func (r *Responder) failed(ctx context.Context, err error, model string) Result {
	r.record(OutcomeFailed)
	r.logger.WarnContext(ctx, "reply_generation_failed", "model", model, "err", err)
	return Result{Outcome: OutcomeFailed, Err: err, Model: model}
}

func (r *Responder) record(outcome Outcome) {
	if r.outcomes != nil {
		r.outcomes.RecordGeneration("reply", string(outcome))
	}
}
