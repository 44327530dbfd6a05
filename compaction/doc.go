// Package compaction provides the standard Trigger and Strategy
// implementations for stratum sessions.
//
// # Triggers
//
//   - [ThresholdTrigger]: fires when the conversation window's
//     estimated size reaches a fraction of the context budget
//   - [StatThresholdTrigger]: fires when stat thresholds are exceeded
//     (counter deltas or gauge absolutes)
//
// # Strategies
//
//   - [Compactor]: the standard layered retention compactor. It applies
//     each layer's policy, the recency gradient over conversation
//     turns, and batched summarization with deterministic trim
//     fallback
package compaction
