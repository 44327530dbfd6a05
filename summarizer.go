package stratum

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Summarizer condenses a batch of text into a shorter summary. It is
// injected by the caller, never owned by the engine; this is what
// makes compaction unit-testable without live model access.
//
// A Summarizer may fail or time out. The compactor treats any error as
// a recoverable [SummarizerFailure]: the affected batch is trimmed
// deterministically instead, and the failure is recorded as a
// diagnostic rather than propagated.
//
// Implementations must honor ctx cancellation; the compactor applies
// the configured per-call timeout through it.
type Summarizer interface {
	// Summarize condenses text into a summary string.
	Summarize(ctx context.Context, text string) (string, error)
}

// SummarizerFunc adapts a plain function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// LLMSummarizer wraps a LangChainGo model as a [Summarizer]. The batch
// text is inserted into the prompt's single %s placeholder and sent as
// a one-shot call; the entire model output is the summary, no
// section parsing needed.
//
// Summarization is a simpler task than agent reasoning, so a cheaper
// model than the session's primary one is usually the right choice
// here.
//
// Example:
//
//	summarizer := stratum.NewLLMSummarizer(model).
//	    WithPrompt("Condense, keeping error messages verbatim:\n\n%s")
type LLMSummarizer struct {
	model  llms.Model
	prompt string
}

// NewLLMSummarizer creates an LLMSummarizer using
// [DefaultSummarizationPrompt].
func NewLLMSummarizer(model llms.Model) *LLMSummarizer {
	return &LLMSummarizer{
		model:  model,
		prompt: DefaultSummarizationPrompt,
	}
}

// WithPrompt sets a custom prompt. The prompt receives the batch text
// via fmt.Sprintf with one %s placeholder.
func (s *LLMSummarizer) WithPrompt(prompt string) *LLMSummarizer {
	s.prompt = prompt
	return s
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(
		ctx, s.model, fmt.Sprintf(s.prompt, text),
	)
	if err != nil {
		return "", fmt.Errorf("summarizer model call: %w", err)
	}
	summary := strings.TrimSpace(response)
	if summary == "" {
		return "", fmt.Errorf("summarizer model returned empty output")
	}
	return summary, nil
}

// DefaultSummarizationPrompt is the prompt used by [LLMSummarizer]
// unless overridden. It takes one fmt.Sprintf placeholder: the batch of
// text to condense.
//
// The prompt uses handoff framing (the summary is written for another
// agent instance that resumes the work), asks for named sections so the
// model is less likely to drop a category of information, and tells
// the model to preserve exact identifiers, which compress poorly under
// free-form summarization. It ends with anti-conclusion guardrails so
// the next instance doesn't read the summary as a finished session.
const DefaultSummarizationPrompt = `You are creating a continuation ` +
	`checkpoint for an AI agent. Another instance will resume this ` +
	`work using only your summary and the preserved layers around it. ` +
	`Condense the material below without losing critical details.

%s

Write a summary with these sections, with more detail for recent ` +
	`activity and less for older completed work:

### Background & Findings
Research findings, explored context, and conclusions reached.

### Current Thread
What was being discussed or worked on most recently; maximum detail.

Rules:
- Preserve exact identifiers: names, paths, values, error messages
- Do NOT include large verbatim text blocks; summarize and reference
- Do NOT write concluding language; the agent's work continues
- Write ONLY the summary sections, no preamble`

// Compile-time checks.
var (
	_ Summarizer = SummarizerFunc(nil)
	_ Summarizer = (*LLMSummarizer)(nil)
)
