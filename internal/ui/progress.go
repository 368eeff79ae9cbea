package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nibzard/clear-go/internal/parallel"
)

// NewProgress returns a progress bar when w is a terminal and a log-based
// reporter otherwise.
func NewProgress(w io.Writer, logger *log.Logger) parallel.Progress {
	if IsTTY(w) {
		return NewBar(w)
	}
	return parallel.NewLogProgress(logger)
}

// Bar renders batch progress as a bubbletea program. Each Start runs a new
// program that exits on Finish.
type Bar struct {
	out   io.Writer
	width int

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewBar creates a progress bar writing to out.
func NewBar(out io.Writer) *Bar {
	return &Bar{out: out, width: terminalWidth(out, 80)}
}

type advanceMsg struct{ done, total int }

type finishMsg struct{}

func (b *Bar) Start(label string, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()

	model := newProgressModel(label, total, b.width)
	b.program = tea.NewProgram(model,
		tea.WithOutput(b.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	b.done = make(chan struct{})
	go func(p *tea.Program, done chan struct{}) {
		defer close(done)
		_, _ = p.Run()
	}(b.program, b.done)
}

func (b *Bar) Advance(done, total int) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		p.Send(advanceMsg{done: done, total: total})
	}
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

func (b *Bar) stopLocked() {
	if b.program == nil {
		return
	}
	b.program.Send(finishMsg{})
	<-b.done
	b.program = nil
	b.done = nil
}

// progressModel is the bubbletea model behind Bar.
type progressModel struct {
	label   string
	done    int
	total   int
	started time.Time
	bar     progress.Model
}

func newProgressModel(label string, total, width int) progressModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = barWidth(width, label)
	return progressModel{label: label, total: total, started: time.Now(), bar: bar}
}

// barWidth leaves room for the label and counters on one line.
func barWidth(termWidth int, label string) int {
	w := termWidth - len(label) - 30
	if w < 10 {
		return 10
	}
	if w > 60 {
		return 60
	}
	return w
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case advanceMsg:
		m.done, m.total = msg.done, msg.total
		if m.total > 0 && m.done >= m.total {
			return m, tea.Quit
		}
	case finishMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m progressModel) View() string {
	elapsed := time.Since(m.started).Round(time.Second)
	return fmt.Sprintf("%s %s %s %s\n",
		styleText.Render(m.label),
		m.bar.ViewAs(m.percent()),
		styleSubtle.Render(fmt.Sprintf("%d/%d", m.done, m.total)),
		styleSubtle.Render(elapsed.String()),
	)
}
