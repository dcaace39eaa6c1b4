package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Aman-CERP/pdfqa/internal/query"
)

// PlainWaiter prints one line when waiting starts and one per change of
// state, for pipes and CI logs.
type PlainWaiter struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	last  query.State
}

// NewPlainWaiter creates a plain text waiter.
func NewPlainWaiter(cfg Config, label string) *PlainWaiter {
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}
	return &PlainWaiter{out: out, label: label}
}

// Start implements Waiter.
func (w *PlainWaiter) Start(ctx context.Context) context.Context {
	_, _ = fmt.Fprintf(w.out, "%s...\n", w.label)
	return ctx
}

// Update implements Waiter.
func (w *PlainWaiter) Update(attempt int, r query.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r.State == w.last || r.State == query.StateCompleted {
		w.last = r.State
		return
	}
	w.last = r.State
	_, _ = fmt.Fprintf(w.out, "[poll %d] %s\n", attempt+1, r.State)
}

// Stop implements Waiter.
func (w *PlainWaiter) Stop() {}

var _ Waiter = (*PlainWaiter)(nil)
