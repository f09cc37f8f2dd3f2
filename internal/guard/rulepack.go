package guard

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"
)

//go:embed rulepacks/*.yml
var embeddedRulepacks embed.FS

const defaultThreshold = 0.7

type rawRulepack struct {
	Version     int       `yaml:"version"`
	Threshold   float64   `yaml:"threshold"`
	Normalizers []string  `yaml:"normalizers"`
	Rules       []rawRule `yaml:"rules"`
}

type rawRule struct {
	ID      string   `yaml:"id"`
	Type    string   `yaml:"type"`
	Pattern string   `yaml:"pattern"`
	Phrases []string `yaml:"phrases"`
	Weight  float64  `yaml:"weight"`
}

type regexRule struct {
	ID      string
	Pattern *regexp.Regexp
	Weight  float64
}

type phraseRule struct {
	ID     string
	Weight float64
}

type compiledPack struct {
	Threshold     float64
	RegexRules    []regexRule
	PhraseMatcher *ahocorasick.Matcher
	Phrases       []string
	// PhraseRules is parallel to Phrases.
	PhraseRules []phraseRule
}

func defaultRulepackFS() fs.FS {
	sub, err := fs.Sub(embeddedRulepacks, "rulepacks")
	if err != nil {
		panic(fmt.Sprintf("embedded rulepacks: %v", err))
	}
	return sub
}

// loadRulepacks compiles every *.yml/*.yaml at the root of fsys. Broken packs are skipped.
func loadRulepacks(fsys fs.FS, logger *slog.Logger) []compiledPack {
	paths := findRulepackFiles(fsys)
	if len(paths) == 0 {
		logger.Warn("rulepacks_not_found")
		return nil
	}

	packs := make([]compiledPack, 0, len(paths))
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			logger.Warn("rulepack_read_failed", "path", path, "err", err)
			continue
		}

		var raw rawRulepack
		if err := yaml.Unmarshal(data, &raw); err != nil {
			logger.Warn("rulepack_parse_failed", "path", path, "err", err)
			continue
		}

		pack, err := compileRulepack(raw, logger)
		if err != nil {
			logger.Warn("rulepack_compile_failed", "path", path, "err", err)
			continue
		}
		packs = append(packs, pack)
	}

	return packs
}

func findRulepackFiles(fsys fs.FS) []string {
	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	return files
}

func compileRulepack(raw rawRulepack, logger *slog.Logger) (compiledPack, error) {
	if raw.Version == 0 {
		raw.Version = 1
	}
	if raw.Version != 1 {
		return compiledPack{}, fmt.Errorf("unsupported rulepack version %d", raw.Version)
	}
	if raw.Threshold == 0 {
		raw.Threshold = defaultThreshold
	}

	var regexes []regexRule
	var phrases []string
	var phraseRules []phraseRule

	for _, rule := range raw.Rules {
		switch strings.ToLower(strings.TrimSpace(rule.Type)) {
		case "regex":
			if rule.ID == "" || rule.Pattern == "" {
				return compiledPack{}, fmt.Errorf("invalid regex rule %q", rule.ID)
			}
			pattern, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				logger.Warn("rulepack_regex_invalid", "rule_id", rule.ID, "err", err)
				continue
			}
			regexes = append(regexes, regexRule{ID: rule.ID, Pattern: pattern, Weight: rule.Weight})
		case "phrases":
			if rule.ID == "" || len(rule.Phrases) == 0 {
				return compiledPack{}, fmt.Errorf("invalid phrases rule %q", rule.ID)
			}
			for _, phrase := range rule.Phrases {
				value := foldApostrophes(strings.ToLower(strings.TrimSpace(phrase)))
				if value == "" {
					continue
				}
				phrases = append(phrases, value)
				phraseRules = append(phraseRules, phraseRule{ID: rule.ID, Weight: rule.Weight})
			}
		default:
			return compiledPack{}, fmt.Errorf("unknown rule type: %s", rule.Type)
		}
	}

	var matcher *ahocorasick.Matcher
	if len(phrases) > 0 {
		matcher = ahocorasick.NewStringMatcher(phrases)
	}

	return compiledPack{
		Threshold:     raw.Threshold,
		RegexRules:    regexes,
		PhraseMatcher: matcher,
		Phrases:       phrases,
		PhraseRules:   phraseRules,
	}, nil
}
