package privacy

import (
	"fmt"
	"strings"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Masker runs the scan, resolve and redact pipeline over a fixed registry.
// It holds no per-call state and is safe for concurrent use.
type Masker struct {
	registry *Registry
	logger   *logger.Logger
	config   config.PrivacyConfig
}

// New creates a masker for the categories enabled in the configuration
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Masker, error) {
	var (
		base *Registry
		err  error
	)
	if cfg.MatchTimeout > 0 {
		base, err = NewRegistry(DefaultRuleDefs(), WithMatchTimeout(cfg.MatchTimeout))
	} else {
		base, err = DefaultRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compile detection rules: %w", err)
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		categories = []string{AllCategories}
	}
	registry, err := base.Select(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to configure categories: %w", err)
	}

	log.Info("Privacy masker initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("total_rules", base.Len()),
		zap.Strings("categories", registry.Categories()),
		zap.Duration("match_timeout", cfg.MatchTimeout),
	)

	return NewWithRegistry(registry, cfg, log), nil
}

// NewWithRegistry creates a masker over an already compiled registry
func NewWithRegistry(registry *Registry, cfg config.PrivacyConfig, log *logger.Logger) *Masker {
	return &Masker{
		registry: registry,
		logger:   log,
		config:   cfg,
	}
}

// Mask replaces every detected entity with its [category] tag. Empty or clean text is
// returned unchanged with an empty entity list. An error means nothing was masked.
func (m *Masker) Mask(text string) (*Result, error) {
	if !m.config.Enabled || text == "" {
		return &Result{MaskedText: text, Entities: []Entity{}}, nil
	}

	candidates, err := m.registry.Scan(text)
	if err != nil {
		return nil, err
	}

	accepted := Resolve(candidates)
	result := Redact(text, accepted)

	if len(result.Entities) > 0 {
		m.logger.Debug("PII detected and masked",
			zap.Int("candidates", len(candidates)),
			zap.Int("entities", len(result.Entities)),
			zap.Any("categories", Summarize(result.Entities)),
		)
	}

	return &result, nil
}

// Categories returns the active categories in registry order
func (m *Masker) Categories() []string {
	return m.registry.Categories()
}

// Enabled reports whether masking is switched on
func (m *Masker) Enabled() bool {
	return m.config.Enabled
}

// Summarize counts entities per category, in order of first appearance
func Summarize(entities []Entity) []CategoryCount {
	counts := make([]CategoryCount, 0)
	index := make(map[string]int)
	for _, entity := range entities {
		i, ok := index[entity.Classification]
		if !ok {
			i = len(counts)
			index[entity.Classification] = i
			counts = append(counts, CategoryCount{Category: entity.Classification})
		}
		counts[i].Count++
	}
	return counts
}

// ScrubHeaders returns a copy of headers with sensitive values replaced, for logging
func (m *Masker) ScrubHeaders(headers map[string][]string) map[string][]string {
	if !m.config.HeaderScrubbing.Enabled {
		return headers
	}

	scrubbed := make(map[string][]string, len(headers))
	for key, values := range headers {
		if m.isSensitiveHeader(key) {
			scrubbed[key] = []string{"[REDACTED]"}
			continue
		}
		scrubbed[key] = values
	}

	return scrubbed
}

// isSensitiveHeader checks if a header should be scrubbed
func (m *Masker) isSensitiveHeader(header string) bool {
	headerLower := strings.ToLower(header)

	for _, sensitiveHeader := range m.config.HeaderScrubbing.Headers {
		if strings.Contains(headerLower, strings.ToLower(sensitiveHeader)) {
			return true
		}
	}

	return false
}
