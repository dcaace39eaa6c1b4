package ui

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/pdfqa/internal/query"
)

// TUIWaiter shows an animated spinner using bubbletea.
type TUIWaiter struct {
	mu      sync.Mutex
	cfg     Config
	model   *waitModel
	program *tea.Program
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTUIWaiter creates a spinner waiter.
func NewTUIWaiter(cfg Config, label string) *TUIWaiter {
	m := newWaitModel(label, time.Now())
	if !cfg.UseColor() {
		m.styles = NoColorStyles()
		m.spinner.Style = lipgloss.NewStyle()
	}
	return &TUIWaiter{cfg: cfg, model: m, done: make(chan struct{})}
}

// Start implements Waiter.
func (w *TUIWaiter) Start(ctx context.Context) context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.program != nil {
		return ctx
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.model.onInterrupt = w.cancel

	var opts []tea.ProgramOption
	if f, ok := w.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	opts = append(opts, tea.WithContext(ctx))

	w.program = tea.NewProgram(w.model, opts...)
	go func() {
		defer close(w.done)
		_, _ = w.program.Run()
	}()
	return ctx
}

// Update implements Waiter.
func (w *TUIWaiter) Update(attempt int, r query.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.program != nil {
		w.program.Send(pollMsg{attempt: attempt, state: r.State})
	}
}

// Stop implements Waiter.
func (w *TUIWaiter) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.program == nil {
		return
	}
	w.program.Send(doneMsg{})

	// An unresponsive program must not hang the CLI.
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		w.program.Kill()
	}
	if w.cancel != nil {
		w.cancel()
	}
}

type pollMsg struct {
	attempt int
	state   query.State
}

type doneMsg struct{}

// waitModel is the bubbletea model for the wait spinner.
type waitModel struct {
	spinner     spinner.Model
	styles      Styles
	label       string
	attempt     int
	state       query.State
	started     time.Time
	now         func() time.Time
	done        bool
	interrupted bool
	onInterrupt func()
}

func newWaitModel(label string, started time.Time) *waitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &waitModel{
		spinner: s,
		styles:  DefaultStyles(),
		label:   label,
		state:   query.StatePending,
		started: started,
		now:     time.Now,
	}
}

// Init implements tea.Model.
func (m *waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.interrupted = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, tea.Quit
		}

	case pollMsg:
		m.attempt = msg.attempt
		m.state = msg.state
		return m, nil

	case doneMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *waitModel) View() string {
	if m.interrupted {
		return m.styles.Warning.Render("Cancelled.") + "\n"
	}
	if m.done {
		return ""
	}

	detail := fmt.Sprintf("%s · poll %d · %s", formatDuration(m.now().Sub(m.started)), m.attempt+1, m.state)
	return fmt.Sprintf("%s %s %s\n",
		m.spinner.View(),
		m.styles.Active.Render(m.label),
		m.styles.Dim.Render(detail))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}

var _ Waiter = (*TUIWaiter)(nil)
