package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nibzard/clear-go/internal/config"
)

// modelPlaceholder in cli args is replaced by the requested model name.
const modelPlaceholder = "{model}"

// waitDelay bounds how long output copying may outlive a killed process.
const waitDelay = 2 * time.Second

// cliProvider runs an external binary once per prompt.
type cliProvider struct {
	binary       string
	args         []string
	promptFormat config.PromptFormat
	model        string
	timeout      time.Duration
	workDir      string
}

func newCLI(_ context.Context, s Settings) (Provider, error) {
	binary := strings.TrimSpace(s.Provider.Binary)
	if binary == "" {
		return nil, fmt.Errorf("providers.cli.binary is required")
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	format := s.Provider.PromptFormat
	if format == "" {
		format = config.PromptFormatStdin
	}
	return &cliProvider{
		binary:       binary,
		args:         append([]string(nil), s.Provider.Args...),
		promptFormat: format,
		model:        s.Model,
		timeout:      timeout,
		workDir:      s.WorkDir,
	}, nil
}

func (p *cliProvider) Name() string {
	if p.model == "" {
		return "cli/" + p.binary
	}
	return "cli/" + p.binary + "/" + p.model
}

func (p *cliProvider) buildArgs(prompt string) []string {
	args := make([]string, 0, len(p.args)+1)
	for _, arg := range p.args {
		args = append(args, strings.ReplaceAll(arg, modelPlaceholder, p.model))
	}
	if p.promptFormat == config.PromptFormatArg {
		args = append(args, prompt)
	}
	return args
}

func (p *cliProvider) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := applyTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, p.buildArgs(prompt)...)
	if p.workDir != "" {
		cmd.Dir = p.workDir
	}
	if p.promptFormat != config.PromptFormatArg {
		cmd.Stdin = strings.NewReader(ensurePromptTerminator(prompt))
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s timeout after %s", p.binary, p.timeout)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s failed: %w: %s", p.binary, err, lastLine(msg))
		}
		return "", fmt.Errorf("%s failed: %w", p.binary, err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("%s: %w", p.binary, ErrEmptyResponse)
	}
	return out, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func ensurePromptTerminator(prompt string) string {
	if strings.HasSuffix(prompt, "\n") {
		return prompt
	}
	return prompt + "\n"
}

func applyTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
