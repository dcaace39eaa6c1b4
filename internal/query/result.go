package query

import (
	"context"

	"github.com/Aman-CERP/pdfqa/internal/citation"
	"github.com/Aman-CERP/pdfqa/internal/index"
)

// State is the caller-visible state of a query.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// User-facing texts for unsuccessful queries.
const (
	FailedText  = "Sorry, I encountered an error processing your request."
	TimeoutText = "Sorry, the request timed out. Please try again."
)

// ChatMessage is a rendered transcript entry.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the answer to a result poll.
type Result struct {
	State State `json:"state"`
	// JobStatus is the raw backend status, for diagnostics.
	JobStatus index.JobStatus `json:"job_status,omitempty"`
	Messages  []ChatMessage   `json:"messages,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Answer returns the latest assistant message.
func (r Result) Answer() (ChatMessage, bool) {
	return LatestAssistant(r.Messages)
}

// LatestAssistant returns the last assistant message in msgs, which are
// ordered oldest first.
func LatestAssistant(msgs []ChatMessage) (ChatMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == string(index.RoleAssistant) {
			return msgs[i], true
		}
	}
	return ChatMessage{}, false
}

// MapMessages renders a job transcript. Assistant messages with content go
// through the citation processor; every other message keeps its first
// text block verbatim.
func MapMessages(ctx context.Context, proc *citation.Processor, msgs []index.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		var content string
		switch {
		case m.Role == index.RoleAssistant && len(m.Blocks) > 0:
			content = proc.Render(ctx, m)
		case len(m.Blocks) > 0:
			content = m.Blocks[0].Text
		}
		out = append(out, ChatMessage{Role: string(m.Role), Content: content})
	}
	return out
}
