package llm

import (
	"context"

	"github.com/lukasbauer/scribe/internal/templates"
)

// SummaryRequest is everything a summary depends on. Summaries are a pure
// function of this request and the model.
type SummaryRequest struct {
	Subject    string
	Disorders  []string
	Template   templates.Template
	Transcript string
}

// Message represents a conversation message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Summarizer defines the interface for text-generation providers.
type Summarizer interface {
	// Summarize produces a clinical note shaped by the request's template.
	Summarize(ctx context.Context, req SummaryRequest) (string, error)

	// Warmup verifies the provider is reachable and configured.
	Warmup(ctx context.Context) error
}

// SummarizationError reports a failed text-generation call.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return "summarization failed: " + e.Err.Error()
}

func (e *SummarizationError) Unwrap() error { return e.Err }
