package llm

import "context"

// Message is one role-tagged entry in the conversation sent to the
// completion endpoint (OpenAI chat format).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one structured completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	Tag         string // usage label for quota accounting
}

// Completer is the interface the pipeline depends on. Implementations must
// return the raw text content of the first choice or a classified error.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
