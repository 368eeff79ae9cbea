package parallel

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Progress observes a batch. Advance is called once per finished task in
// completion order; it must not block for long.
type Progress interface {
	Start(label string, total int)
	Advance(done, total int)
	Finish()
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Start(string, int) {}

func (NopProgress) Advance(int, int) {}

func (NopProgress) Finish() {}

// LogProgress reports progress through a logger every Step completions.
type LogProgress struct {
	Logger *log.Logger
	// Step is the reporting interval. Zero reports roughly every 10%.
	Step int

	mu    sync.Mutex
	label string
	step  int
}

// NewLogProgress creates a log-based progress reporter.
func NewLogProgress(logger *log.Logger) *LogProgress {
	return &LogProgress{Logger: logger}
}

func (p *LogProgress) Start(label string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
	p.step = p.Step
	if p.step <= 0 {
		p.step = total / 10
		if p.step < 1 {
			p.step = 1
		}
	}
	p.logger().Info(label, "total", total)
}

func (p *LogProgress) Advance(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step <= 0 {
		p.step = 1
	}
	if done%p.step != 0 && done != total {
		return
	}
	p.logger().Info(p.label, "done", done, "total", total)
}

func (p *LogProgress) Finish() {}

func (p *LogProgress) logger() *log.Logger {
	if p.Logger == nil {
		return log.Default()
	}
	return p.Logger
}
