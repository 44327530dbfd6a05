package compaction

import "github.com/rickchristie/stratum"

// MatchMode specifies how a stat threshold matches keys.
type MatchMode string

const (
	// MatchExactKey matches a single exact key.
	MatchExactKey MatchMode = "exact"

	// MatchKeyPrefix matches any key with the given prefix. Use for
	// thresholds across a key family (e.g.
	// stratum.KeyRecordsLoggedFor matches all record kinds).
	MatchKeyPrefix MatchMode = "prefix"
)

// StatThresholdTrigger fires when any configured stat threshold is
// exceeded. Supports both counter and gauge thresholds with different
// semantics.
//
// # Counter Thresholds (Delta-Based)
//
// Counters only go up, so the trigger tracks the counter value at the
// time of last compaction. It fires when:
//
//	currentValue - lastCompactionValue >= threshold
//
// When a compaction completes, ALL counter snapshots are updated to
// current values. This prevents re-triggering.
//
// # Gauge Thresholds (Absolute)
//
// Gauges can go up and down, so the trigger checks the current value
// directly against the threshold:
//
//	currentValue >= threshold
//
// No snapshot tracking is needed; gauges naturally reflect current
// state (e.g. stratum.KeyWindowSize drops once the caller replaces its
// history with the compacted text).
//
// # Example
//
//	trigger := compaction.NewStatThresholdTrigger().
//	    OnCounter(stratum.KeyRecordsLogged, 50).
//	    OnCounterPrefix(stratum.KeyRecordsLoggedFor, 30).
//	    OnGauge(stratum.KeyWindowSize, 70000)
//
// An empty conversation never fires, even when a threshold is
// exceeded.
type StatThresholdTrigger struct {
	counterThresholds []counterThreshold
	gaugeThresholds   []gaugeThreshold
}

type counterThreshold struct {
	key       stratum.StatKey
	matchMode MatchMode
	delta     int64
	lastValue map[string]int64
}

type gaugeThreshold struct {
	key       stratum.StatKey
	matchMode MatchMode
	value     float64
}

// NewStatThresholdTrigger creates a new StatThresholdTrigger.
func NewStatThresholdTrigger() *StatThresholdTrigger {
	return &StatThresholdTrigger{}
}

// OnCounter adds an exact-key counter threshold.
// Fires when (current - lastCompaction) >= delta.
func (t *StatThresholdTrigger) OnCounter(
	key stratum.StatKey,
	delta int64,
) *StatThresholdTrigger {
	t.counterThresholds = append(
		t.counterThresholds,
		counterThreshold{
			key:       key,
			matchMode: MatchExactKey,
			delta:     delta,
			lastValue: make(map[string]int64),
		},
	)
	return t
}

// OnCounterPrefix adds a prefix counter threshold.
// Fires when any key matching the prefix has
// (current - lastCompaction) >= delta.
func (t *StatThresholdTrigger) OnCounterPrefix(
	prefix stratum.StatKey,
	delta int64,
) *StatThresholdTrigger {
	t.counterThresholds = append(
		t.counterThresholds,
		counterThreshold{
			key:       prefix,
			matchMode: MatchKeyPrefix,
			delta:     delta,
			lastValue: make(map[string]int64),
		},
	)
	return t
}

// OnGauge adds an exact-key gauge threshold.
// Fires when currentValue >= value.
func (t *StatThresholdTrigger) OnGauge(
	key stratum.StatKey,
	value float64,
) *StatThresholdTrigger {
	t.gaugeThresholds = append(
		t.gaugeThresholds,
		gaugeThreshold{
			key:       key,
			matchMode: MatchExactKey,
			value:     value,
		},
	)
	return t
}

// OnGaugePrefix adds a prefix gauge threshold.
// Fires when any key matching the prefix has currentValue >= value.
func (t *StatThresholdTrigger) OnGaugePrefix(
	prefix stratum.StatKey,
	value float64,
) *StatThresholdTrigger {
	t.gaugeThresholds = append(
		t.gaugeThresholds,
		gaugeThreshold{
			key:       prefix,
			matchMode: MatchKeyPrefix,
			value:     value,
		},
	)
	return t
}

// ShouldCompact implements stratum.Trigger.
func (t *StatThresholdTrigger) ShouldCompact(
	window stratum.Window,
	stats *stratum.SessionStats,
) bool {
	if window.Empty() {
		return false
	}

	for i := range t.counterThresholds {
		ct := &t.counterThresholds[i]
		if t.counterExceeded(stats, ct) {
			return true
		}
	}

	for i := range t.gaugeThresholds {
		gt := &t.gaugeThresholds[i]
		if t.gaugeExceeded(stats, gt) {
			return true
		}
	}

	return false
}

func (t *StatThresholdTrigger) counterExceeded(
	stats *stratum.SessionStats,
	ct *counterThreshold,
) bool {
	switch ct.matchMode {
	case MatchExactKey:
		current := stats.GetCounter(ct.key)
		last := ct.lastValue[string(ct.key)]
		return current-last >= ct.delta
	case MatchKeyPrefix:
		prefix := string(ct.key)
		for key, current := range stats.Counters() {
			if len(key) >= len(prefix) &&
				key[:len(prefix)] == prefix {
				last := ct.lastValue[key]
				if current-last >= ct.delta {
					return true
				}
			}
		}
	}
	return false
}

func (t *StatThresholdTrigger) gaugeExceeded(
	stats *stratum.SessionStats,
	gt *gaugeThreshold,
) bool {
	switch gt.matchMode {
	case MatchExactKey:
		return stats.GetGauge(gt.key) >= gt.value
	case MatchKeyPrefix:
		prefix := string(gt.key)
		for key, val := range stats.Gauges() {
			if len(key) >= len(prefix) &&
				key[:len(prefix)] == prefix {
				if val >= gt.value {
					return true
				}
			}
		}
	}
	return false
}

// NotifyCompacted implements stratum.Trigger. Snapshots ALL counter
// values for delta tracking.
func (t *StatThresholdTrigger) NotifyCompacted(stats *stratum.SessionStats) {
	counters := stats.Counters()

	for i := range t.counterThresholds {
		ct := &t.counterThresholds[i]
		switch ct.matchMode {
		case MatchExactKey:
			ct.lastValue[string(ct.key)] = counters[string(ct.key)]
		case MatchKeyPrefix:
			prefix := string(ct.key)
			for key, val := range counters {
				if len(key) >= len(prefix) &&
					key[:len(prefix)] == prefix {
					ct.lastValue[key] = val
				}
			}
		}
	}
}

// Compile-time check.
var _ stratum.Trigger = (*StatThresholdTrigger)(nil)
