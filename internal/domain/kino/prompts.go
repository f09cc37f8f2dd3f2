package kino

import (
	"embed"
	"fmt"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/prompt"
)

//go:embed prompts/*.yml
var promptsFS embed.FS

const (
	promptCaption = "caption"
	promptReply   = "reply"
)

// Prompts is the kino prompt set.
type Prompts struct {
	bundle *prompt.Bundle
}

// NewPrompts loads the embedded prompt files.
func NewPrompts() (*Prompts, error) {
	bundle, err := prompt.LoadBundle(promptsFS, "prompts", "kino")
	if err != nil {
		return nil, fmt.Errorf("load kino prompts: %w", err)
	}
	p := &Prompts{bundle: bundle}
	if _, err := p.ReplySystem(); err != nil {
		return nil, err
	}
	if _, err := p.CaptionUser("Dune", "Uzbek"); err != nil {
		return nil, err
	}
	return p, nil
}

// CaptionUser renders the caption instruction for title in language. The
// title is embedded verbatim.
func (p *Prompts) CaptionUser(title string, language string) (string, error) {
	return p.bundle.Render(promptCaption, "user", map[string]string{
		"title":    title,
		"language": language,
	})
}

// ReplySystem returns the assistant persona instruction.
func (p *Prompts) ReplySystem() (string, error) {
	return p.bundle.Text(promptReply, "system")
}
