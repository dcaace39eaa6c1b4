package ui

import (
	"context"

	"github.com/Aman-CERP/pdfqa/internal/query"
)

// Waiter shows that a question is being answered.
type Waiter interface {
	// Start begins display. The returned context is cancelled when the
	// user interrupts the wait.
	Start(ctx context.Context) context.Context

	// Update reports one poll of the result.
	Update(attempt int, r query.Result)

	// Stop ends display and restores the terminal.
	Stop()
}

// NewWaiter returns a spinner for interactive terminals and a plain
// writer otherwise.
func NewWaiter(cfg Config, label string) Waiter {
	if cfg.Interactive() {
		return NewTUIWaiter(cfg, label)
	}
	return NewPlainWaiter(cfg, label)
}
