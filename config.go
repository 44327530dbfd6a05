package stratum

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable parameters of the compaction engine. The
// zero value is not usable; start from [DefaultConfig] or [LoadConfig].
type Config struct {
	// Model is the model identifier used to look up the context window
	// size when MaxContextSize is 0 (e.g. "anthropic/claude-sonnet-4").
	Model string `yaml:"model"`

	// MaxContextSize is the context budget in estimated tokens. When 0,
	// the budget is resolved from the model context-window registry via
	// [Config.ContextWindowFor].
	MaxContextSize int `yaml:"max_context_size"`

	// Threshold is the fraction of the budget at which compaction
	// triggers. Default 0.70; higher thresholds risk degraded quality
	// from lost-in-the-middle effects.
	Threshold float64 `yaml:"threshold"`

	// KeepVerbatimTurns is how many of the most recent turns keep full
	// detail. Default 3.
	KeepVerbatimTurns int `yaml:"keep_verbatim_turns"`

	// KeyPointTurns is the recency band (counted from the end of the
	// window) whose turns are reduced to key points rather than
	// summarized. Turns older than this are summarize-eligible.
	// Default 10.
	KeyPointTurns int `yaml:"key_point_turns"`

	// TrimHead and TrimTail are the number of characters kept at each
	// end when trimming verbose content. Defaults 400 and 200.
	TrimHead int `yaml:"trim_head"`
	TrimTail int `yaml:"trim_tail"`

	// SummarizerTimeout bounds each external summarizer call. A timeout
	// is treated as a SummarizerFailure with trim fallback, not a
	// session failure. Default 30s.
	SummarizerTimeout time.Duration `yaml:"summarizer_timeout"`

	// ContextWindows overrides or extends the built-in model
	// context-window registry.
	ContextWindows map[string]int `yaml:"context_windows"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:         0.70,
		KeepVerbatimTurns: 3,
		KeyPointTurns:     10,
		TrimHead:          400,
		TrimTail:          200,
		SummarizerTimeout: 30 * time.Second,
	}
}

// LoadConfig reads a YAML config file. Unknown fields are rejected.
// Fields left unset fall back to their [DefaultConfig] values.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig parses YAML config bytes. Unknown fields are rejected.
func ParseConfig(raw []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("stratum: threshold must be in (0, 1], got %v", c.Threshold)
	}
	if c.MaxContextSize < 0 {
		return fmt.Errorf("stratum: max_context_size must be >= 0, got %d", c.MaxContextSize)
	}
	if c.KeepVerbatimTurns < 0 || c.KeyPointTurns < c.KeepVerbatimTurns {
		return fmt.Errorf(
			"stratum: turn bands invalid: keep_verbatim_turns=%d key_point_turns=%d",
			c.KeepVerbatimTurns, c.KeyPointTurns,
		)
	}
	if c.TrimHead < 0 || c.TrimTail < 0 {
		return fmt.Errorf("stratum: trim_head/trim_tail must be >= 0")
	}
	return nil
}

// EffectiveMaxSize resolves the context budget: an explicit
// MaxContextSize wins, otherwise the model registry decides.
func (c Config) EffectiveMaxSize() int {
	if c.MaxContextSize > 0 {
		return c.MaxContextSize
	}
	return c.ContextWindowFor(c.Model)
}

// ContextWindowFor returns the context window size in tokens for a
// model identifier.
//
// Priority:
//
//  1. Explicit entry in Config.ContextWindows
//  2. Built-in registry lookup
//  3. Partial match against the registry (either direction)
//  4. Conservative default (100k)
func (c Config) ContextWindowFor(model string) int {
	if size, ok := c.ContextWindows[model]; ok {
		return size
	}
	if size, ok := modelContextWindows[model]; ok {
		return size
	}
	lower := strings.ToLower(model)
	if lower != "" {
		// Sorted iteration keeps partial-match results deterministic.
		keys := make([]string, 0, len(modelContextWindows))
		for key := range modelContextWindows {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			keyLower := strings.ToLower(key)
			if strings.Contains(lower, keyLower) || strings.Contains(keyLower, lower) {
				return modelContextWindows[key]
			}
		}
	}
	return defaultContextWindow
}

// defaultContextWindow is the conservative fallback for unknown models.
const defaultContextWindow = 100000

// modelContextWindows maps model identifiers to context window sizes in
// tokens. Override or extend via Config.ContextWindows.
var modelContextWindows = map[string]int{
	// Anthropic
	"anthropic/claude-opus-4":   200000,
	"anthropic/claude-sonnet-4": 200000,
	"anthropic/claude-haiku-4":  200000,
	"claude-3-5-sonnet":         200000,
	"claude-3-opus":             200000,
	"claude-3-haiku":            200000,
	// OpenAI
	"openai/gpt-4o":      128000,
	"openai/gpt-4o-mini": 128000,
	"openai/o1":          200000,
	"openai/o3":          200000,
	"gpt-4o":             128000,
	"gpt-4-turbo":        128000,
	// Google
	"google/gemini-2.5-pro":   1000000,
	"google/gemini-2.5-flash": 1000000,
	"gemini-2.5-pro":          1000000,
	// xAI
	"xai/grok-3": 131072,
	// DeepSeek
	"deepseek/deepseek-chat": 64000,
}
