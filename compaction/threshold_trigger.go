package compaction

import "github.com/rickchristie/stratum"

// ThresholdTrigger fires when the conversation window's estimated size
// reaches a fraction of the context budget. This is the default
// trigger semantics: compact at 70% of the budget; waiting longer
// risks degraded quality from lost-in-the-middle effects, compacting
// earlier wastes summarization calls.
//
// The trigger is a pure function of the window; an empty conversation
// never fires regardless of the fraction.
//
// # Example
//
//	trigger := compaction.NewThresholdTrigger(cfg).
//	    WithFraction(0.80)
type ThresholdTrigger struct {
	maxSize  int
	fraction float64
}

// NewThresholdTrigger creates a ThresholdTrigger using the config's
// effective context budget and threshold.
func NewThresholdTrigger(cfg stratum.Config) *ThresholdTrigger {
	return &ThresholdTrigger{
		maxSize:  cfg.EffectiveMaxSize(),
		fraction: cfg.Threshold,
	}
}

// WithFraction overrides the trigger fraction. Panics if the fraction
// is outside (0, 1].
func (t *ThresholdTrigger) WithFraction(fraction float64) *ThresholdTrigger {
	if fraction <= 0 || fraction > 1 {
		panic("stratum: ThresholdTrigger fraction must be in (0, 1]")
	}
	t.fraction = fraction
	return t
}

// WithMaxSize overrides the context budget.
func (t *ThresholdTrigger) WithMaxSize(maxSize int) *ThresholdTrigger {
	t.maxSize = maxSize
	return t
}

// ShouldCompact implements stratum.Trigger.
func (t *ThresholdTrigger) ShouldCompact(window stratum.Window, _ *stratum.SessionStats) bool {
	return stratum.ShouldCompact(window, t.maxSize, t.fraction)
}

// NotifyCompacted implements stratum.Trigger. The threshold trigger is
// stateless; after compaction the window naturally shrinks below the
// threshold, so nothing needs resetting.
func (t *ThresholdTrigger) NotifyCompacted(_ *stratum.SessionStats) {}

// Compile-time check.
var _ stratum.Trigger = (*ThresholdTrigger)(nil)
