package gemini

import (
	"context"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/llm"
)

// LLM is the Gemini call surface used by the generators and handlers.
type LLM interface {
	Chat(ctx context.Context, req Request) (string, string, error)
	ChatWithUsage(ctx context.Context, req Request) (llm.ChatResult, string, error)
	Structured(ctx context.Context, req Request, schema map[string]any) (map[string]any, string, error)
}

var _ LLM = (*Client)(nil)
