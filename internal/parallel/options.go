package parallel

import (
	"time"

	"github.com/charmbracelet/log"
)

// Defaults applied by Run.
const (
	DefaultMaxWorkers    = 10
	DefaultErrorPrefix   = "Error: "
	DefaultProgressLabel = "Processing tasks"
	DefaultTaskTimeout   = 300 * time.Second
)

// Option configures a Run call.
type Option func(*options)

type options struct {
	maxWorkers   int
	errorPrefix  string
	label        string
	taskTimeout  time.Duration
	inlineSingle bool
	progress     Progress
	logger       *log.Logger
}

func defaultOptions() options {
	return options{
		maxWorkers:  DefaultMaxWorkers,
		errorPrefix: DefaultErrorPrefix,
		label:       DefaultProgressLabel,
		taskTimeout: DefaultTaskTimeout,
		progress:    NopProgress{},
		logger:      log.Default(),
	}
}

func buildOptions(opts []Option) options {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.maxWorkers <= 0 {
		cfg.maxWorkers = DefaultMaxWorkers
	}
	if cfg.progress == nil {
		cfg.progress = NopProgress{}
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}
	return cfg
}

// WithMaxWorkers bounds the number of tasks executing at once.
// Non-positive values keep the default.
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		o.maxWorkers = n
	}
}

// WithErrorPrefix sets the prefix used by the string-encoded result form.
func WithErrorPrefix(prefix string) Option {
	return func(o *options) {
		o.errorPrefix = prefix
	}
}

// WithProgressLabel sets the label handed to the progress reporter.
func WithProgressLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithTaskTimeout sets the per-task budget. Zero or negative disables it.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *options) {
		o.taskTimeout = d
	}
}

// WithInlineSingleTask runs a lone task on the calling goroutine without a
// timeout or progress reporting. Errors and panics are still contained.
func WithInlineSingleTask(enabled bool) Option {
	return func(o *options) {
		o.inlineSingle = enabled
	}
}

// WithProgress sets the progress reporter.
func WithProgress(p Progress) Option {
	return func(o *options) {
		o.progress = p
	}
}

// WithLogger sets the logger used to report task failures.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
