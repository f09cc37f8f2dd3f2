// Package guard scores user text against prompt-injection rulepacks.
package guard

import (
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/cache"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

// InjectionGuard evaluates input against compiled rulepacks. Safe for concurrent use.
type InjectionGuard struct {
	cfg    config.GuardConfig
	logger *slog.Logger
	packs  []compiledPack
	cache  *cache.TTLCache[string, Evaluation]
	group  singleflight.Group
}

// NewGuard loads the embedded default rulepack, or every pack in
// GUARD_RULEPACKS_DIR when that is set.
func NewGuard(cfg *config.Config, logger *slog.Logger) (*InjectionGuard, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	var fsys fs.FS
	if dir := strings.TrimSpace(cfg.Guard.RulepacksDir); dir != "" {
		fsys = os.DirFS(dir)
	}
	return NewGuardFS(cfg.Guard, fsys, logger)
}

// NewGuardFS builds a guard from the packs in fsys; nil means the embedded default.
func NewGuardFS(cfg config.GuardConfig, fsys fs.FS, logger *slog.Logger) (*InjectionGuard, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	guard := &InjectionGuard{
		cfg:    cfg,
		logger: logger,
		cache:  cache.NewTTLCache[string, Evaluation](cfg.CacheMaxSize, cacheTTL),
	}
	if !cfg.Enabled {
		return guard, nil
	}

	if fsys == nil {
		fsys = defaultRulepackFS()
	}
	guard.packs = loadRulepacks(fsys, logger)
	if len(guard.packs) == 0 {
		return nil, errors.New("guard enabled but no rulepack could be loaded")
	}
	logger.Info("guard_ready", "packs", len(guard.packs), "threshold", guard.threshold())
	return guard, nil
}

// Evaluate scores input. A disabled guard never blocks.
func (g *InjectionGuard) Evaluate(input string) Evaluation {
	if g == nil || !g.cfg.Enabled {
		return Evaluation{Threshold: math.Inf(1)}
	}

	if cached, ok := g.cache.Get(input); ok {
		return cached
	}

	value, _, _ := g.group.Do(input, func() (any, error) {
		result := g.evaluateInternal(input)
		g.cache.Set(input, result)
		return result, nil
	})

	if evaluation, ok := value.(Evaluation); ok {
		return evaluation
	}
	return Evaluation{Threshold: g.threshold()}
}

// EnsureSafe returns a *BlockedError for malicious input.
func (g *InjectionGuard) EnsureSafe(input string) error {
	evaluation := g.Evaluate(input)
	if evaluation.Malicious() {
		return &BlockedError{Score: evaluation.Score, Threshold: evaluation.Threshold}
	}
	return nil
}

// IsMalicious reports whether input would be blocked.
func (g *InjectionGuard) IsMalicious(input string) bool {
	return g.Evaluate(input).Malicious()
}

// threshold: configured value, else the strictest pack threshold.
func (g *InjectionGuard) threshold() float64 {
	if g.cfg.Threshold > 0 {
		return g.cfg.Threshold
	}
	maxThreshold := 0.0
	for _, pack := range g.packs {
		maxThreshold = max(maxThreshold, pack.Threshold)
	}
	if maxThreshold > 0 {
		return maxThreshold
	}
	return defaultThreshold
}

func (g *InjectionGuard) evaluateInternal(input string) Evaluation {
	threshold := g.threshold()

	if containsSuspiciousBase64(input) {
		g.logger.Warn("guard_base64_payload_blocked", "input", trimForLog(input))
		return Evaluation{
			Score:     threshold,
			Hits:      []Match{{ID: "base64_payload", Weight: threshold}},
			Threshold: threshold,
		}
	}

	text := stripEmoji(input)
	score, hits := g.evaluatePacks(normalizeText(text), plainText(text))
	evaluation := Evaluation{Score: score, Hits: hits, Threshold: threshold}
	if evaluation.Malicious() {
		g.logger.Warn("guard_blocked", "score", score, "hits", len(hits), "input", trimForLog(input))
	}
	return evaluation
}

// evaluatePacks matches every variant; a rule counts once however many variants hit it.
func (g *InjectionGuard) evaluatePacks(variants ...string) (float64, []Match) {
	total := 0.0
	hits := make([]Match, 0)
	fired := make(map[string]struct{})
	fire := func(id string, weight float64) {
		if weight <= 0 {
			return
		}
		if _, done := fired[id]; done {
			return
		}
		fired[id] = struct{}{}
		total += weight
		hits = append(hits, Match{ID: id, Weight: weight})
	}

	for _, text := range variants {
		lower := strings.ToLower(text)
		for _, pack := range g.packs {
			for _, rule := range pack.RegexRules {
				if rule.Pattern.MatchString(text) {
					fire(rule.ID, rule.Weight)
				}
			}

			if pack.PhraseMatcher == nil {
				continue
			}
			for _, index := range pack.PhraseMatcher.MatchThreadSafe([]byte(lower)) {
				if index < 0 || index >= len(pack.PhraseRules) {
					continue
				}
				rule := pack.PhraseRules[index]
				fire(rule.ID, rule.Weight)
			}
		}
	}

	return total, hits
}
