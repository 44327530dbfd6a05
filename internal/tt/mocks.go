// Package tt provides test helpers and configurable mocks for the
// stratum test suites.
package tt

import (
	"context"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/rickchristie/stratum"
)

// -----------------------------------------------------------------------------
// MockSummarizer - implements stratum.Summarizer
// -----------------------------------------------------------------------------

// MockSummarizer is a configurable mock that implements
// stratum.Summarizer. Responses and errors are consumed in queue
// order; after the queue is exhausted further calls return a fixed
// default summary.
type MockSummarizer struct {
	mu        sync.Mutex
	responses []string
	errors    []error
	delay     time.Duration
	callCount int

	// Captured stores the text passed to each Summarize call.
	// Populated automatically on every call.
	Captured []string
}

// NewMockSummarizer creates a new MockSummarizer.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// AddResponse queues a summary to return.
func (m *MockSummarizer) AddResponse(summary string) *MockSummarizer {
	m.responses = append(m.responses, summary)
	return m
}

// AddError queues an error for the next call.
func (m *MockSummarizer) AddError(err error) *MockSummarizer {
	for len(m.responses) <= len(m.errors) {
		m.responses = append(m.responses, "")
	}
	m.errors = append(m.errors, err)
	return m
}

// WithDelay makes every call wait for d before responding. If the
// context expires first, the call returns ctx.Err(). Use this to
// exercise summarizer timeouts.
func (m *MockSummarizer) WithDelay(d time.Duration) *MockSummarizer {
	m.delay = d
	return m
}

// CallCount returns the number of times Summarize has been called.
func (m *MockSummarizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Summarize implements stratum.Summarizer.
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	idx := m.callCount
	m.callCount++
	m.Captured = append(m.Captured, text)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < len(m.errors) && m.errors[idx] != nil {
		return "", m.errors[idx]
	}
	if idx < len(m.responses) && m.responses[idx] != "" {
		return m.responses[idx], nil
	}
	return "mock summary", nil
}

// Compile-time check.
var _ stratum.Summarizer = (*MockSummarizer)(nil)

// -----------------------------------------------------------------------------
// MockModel - implements llms.Model
// -----------------------------------------------------------------------------

// MockModel is a configurable mock that implements llms.Model for
// LLMSummarizer tests.
type MockModel struct {
	responses []string
	errors    []error
	callCount int

	// CapturedPrompts stores the flattened text content of each
	// GenerateContent call.
	CapturedPrompts []string
}

// NewMockModel creates a new MockModel.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// AddResponse queues a completion to return.
func (m *MockModel) AddResponse(content string) *MockModel {
	m.responses = append(m.responses, content)
	return m
}

// AddError queues an error for the next call.
func (m *MockModel) AddError(err error) *MockModel {
	for len(m.responses) <= len(m.errors) {
		m.responses = append(m.responses, "")
	}
	m.errors = append(m.errors, err)
	return m
}

// CallCount returns the number of times GenerateContent has been called.
func (m *MockModel) CallCount() int {
	return m.callCount
}

// GenerateContent implements llms.Model.
func (m *MockModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	idx := m.callCount
	m.callCount++

	var prompt string
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				prompt += tc.Text
			}
		}
	}
	m.CapturedPrompts = append(m.CapturedPrompts, prompt)

	if idx < len(m.errors) && m.errors[idx] != nil {
		return nil, m.errors[idx]
	}

	content := "mock completion"
	if idx < len(m.responses) && m.responses[idx] != "" {
		content = m.responses[idx]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}, nil
}

// Call implements llms.Model.
func (m *MockModel) Call(
	ctx context.Context,
	prompt string,
	options ...llms.CallOption,
) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// Compile-time check.
var _ llms.Model = (*MockModel)(nil)

// -----------------------------------------------------------------------------
// MockTrigger - implements stratum.Trigger
// -----------------------------------------------------------------------------

// MockTrigger is a configurable mock that implements stratum.Trigger.
type MockTrigger struct {
	shouldCompact []bool
	callIdx       int
	notifiedCount int
}

// NewMockTrigger creates a new MockTrigger.
func NewMockTrigger() *MockTrigger {
	return &MockTrigger{}
}

// WithShouldCompact sets the sequence of ShouldCompact return values.
// Panics if exhausted.
func (t *MockTrigger) WithShouldCompact(values ...bool) *MockTrigger {
	t.shouldCompact = values
	return t
}

// ShouldCompact implements stratum.Trigger.
func (t *MockTrigger) ShouldCompact(_ stratum.Window, _ *stratum.SessionStats) bool {
	if t.callIdx >= len(t.shouldCompact) {
		panic("MockTrigger: exhausted ShouldCompact sequence")
	}
	result := t.shouldCompact[t.callIdx]
	t.callIdx++
	return result
}

// NotifyCompacted implements stratum.Trigger.
func (t *MockTrigger) NotifyCompacted(_ *stratum.SessionStats) {
	t.notifiedCount++
}

// NotifiedCount returns how many times NotifyCompacted was called.
func (t *MockTrigger) NotifiedCount() int {
	return t.notifiedCount
}

// Compile-time check.
var _ stratum.Trigger = (*MockTrigger)(nil)

// -----------------------------------------------------------------------------
// MockStrategy - implements stratum.Strategy
// -----------------------------------------------------------------------------

// MockStrategy is a configurable mock that implements
// stratum.Strategy.
type MockStrategy struct {
	compactFunc func(ctx context.Context, snap *stratum.Snapshot, s stratum.Summarizer) (*stratum.CompactionResult, error)
	callCount   int
}

// NewMockStrategy creates a new MockStrategy. By default Compact
// returns an empty no-op result.
func NewMockStrategy() *MockStrategy {
	return &MockStrategy{}
}

// WithCompactFunc sets the Compact implementation.
func (s *MockStrategy) WithCompactFunc(
	fn func(ctx context.Context, snap *stratum.Snapshot, sum stratum.Summarizer) (*stratum.CompactionResult, error),
) *MockStrategy {
	s.compactFunc = fn
	return s
}

// WithResult creates a strategy that always returns the given result.
func (s *MockStrategy) WithResult(result *stratum.CompactionResult) *MockStrategy {
	s.compactFunc = func(
		_ context.Context, _ *stratum.Snapshot, _ stratum.Summarizer,
	) (*stratum.CompactionResult, error) {
		return result, nil
	}
	return s
}

// WithError creates a strategy that always returns the given error.
func (s *MockStrategy) WithError(err error) *MockStrategy {
	s.compactFunc = func(
		_ context.Context, _ *stratum.Snapshot, _ stratum.Summarizer,
	) (*stratum.CompactionResult, error) {
		return nil, err
	}
	return s
}

// WithBlockUntil creates a strategy that blocks until release is
// closed, then returns an empty result. Use this to hold a compaction
// in flight while the test drives the session concurrently.
func (s *MockStrategy) WithBlockUntil(release <-chan struct{}) *MockStrategy {
	s.compactFunc = func(
		ctx context.Context, _ *stratum.Snapshot, _ stratum.Summarizer,
	) (*stratum.CompactionResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &stratum.CompactionResult{CompressionRatio: 1.0}, nil
	}
	return s
}

// Compact implements stratum.Strategy.
func (s *MockStrategy) Compact(
	ctx context.Context,
	snap *stratum.Snapshot,
	summarizer stratum.Summarizer,
) (*stratum.CompactionResult, error) {
	s.callCount++
	if s.compactFunc != nil {
		return s.compactFunc(ctx, snap, summarizer)
	}
	return &stratum.CompactionResult{CompressionRatio: 1.0}, nil
}

// CallCount returns how many times Compact was called.
func (s *MockStrategy) CallCount() int {
	return s.callCount
}

// Compile-time check.
var _ stratum.Strategy = (*MockStrategy)(nil)

// -----------------------------------------------------------------------------
// MockRecorder - implements stratum.Recorder
// -----------------------------------------------------------------------------

// MockRecorder captures every record handed to it, in order, for
// test verification.
type MockRecorder struct {
	mu sync.Mutex

	Entries   []stratum.MemoryEntry
	Actions   []stratum.ActionRecord
	Decisions []stratum.DecisionRecord
	Errors    []stratum.ErrorRecord
	Results   []*stratum.CompactionResult

	err        error
	actionHook func(record stratum.ActionRecord)
}

// NewMockRecorder creates a new MockRecorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{}
}

// WithError makes every Record call return err while still capturing
// the record.
func (r *MockRecorder) WithError(err error) *MockRecorder {
	r.err = err
	return r
}

// RecordEntry implements stratum.Recorder.
func (r *MockRecorder) RecordEntry(entry stratum.MemoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, entry)
	return r.err
}

// WithActionHook invokes hook on every RecordAction call, before the
// record is captured. The hook runs outside the recorder's lock.
func (r *MockRecorder) WithActionHook(hook func(record stratum.ActionRecord)) *MockRecorder {
	r.actionHook = hook
	return r
}

// RecordAction implements stratum.Recorder.
func (r *MockRecorder) RecordAction(record stratum.ActionRecord) error {
	if r.actionHook != nil {
		r.actionHook(record)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Actions = append(r.Actions, record)
	return r.err
}

// RecordDecision implements stratum.Recorder.
func (r *MockRecorder) RecordDecision(record stratum.DecisionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Decisions = append(r.Decisions, record)
	return r.err
}

// RecordError implements stratum.Recorder.
func (r *MockRecorder) RecordError(record stratum.ErrorRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, record)
	return r.err
}

// RecordResult implements stratum.Recorder.
func (r *MockRecorder) RecordResult(result *stratum.CompactionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, result)
	return r.err
}

// Compile-time check.
var _ stratum.Recorder = (*MockRecorder)(nil)
