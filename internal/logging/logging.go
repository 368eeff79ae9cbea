// Package logging writes console logs, JSONL run logs, and tail output.
package logging

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunLogger manages the JSONL log and stage summaries of one run.
type RunLogger struct {
	Dir     string
	RunID   string
	LogPath string
	file    *os.File
	writer  Writer
}

// NewRunLogger creates a per-project log directory and a JSONL file for a new run.
func NewRunLogger(baseDir, workDir string) (*RunLogger, error) {
	logDir, err := FindLogDir(baseDir, workDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	id := newRunID()
	logPath := filepath.Join(logDir, id+".jsonl")
	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	return &RunLogger{
		Dir:     logDir,
		RunID:   id,
		LogPath: logPath,
		file:    file,
		writer:  Synchronized(NewJSONLWriter(file)),
	}, nil
}

// Write appends an event to the run log. It is safe for concurrent use.
func (r *RunLogger) Write(event Event) error {
	if r == nil || r.writer == nil {
		return nil
	}
	return r.writer.Write(event)
}

// Close closes the log file.
func (r *RunLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// SummaryPath returns the path of a stage summary file for this run.
func (r *RunLogger) SummaryPath(stage string) string {
	if r == nil {
		return ""
	}
	return filepath.Join(r.Dir, fmt.Sprintf("%s-%s.summary.json", r.RunID, sanitizeLabel(stage)))
}

// WriteSummary writes v as indented JSON to the stage summary file.
func (r *RunLogger) WriteSummary(stage string, v any) error {
	path := r.SummaryPath(stage)
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s summary: %w", stage, err)
	}
	return os.WriteFile(path, data, 0644)
}

func resolveBaseDir(baseDir, workDir string) string {
	if filepath.IsAbs(baseDir) {
		return filepath.Clean(baseDir)
	}
	return filepath.Clean(filepath.Join(workDir, baseDir))
}

func resolveProjectRoot(workDir string) string {
	if workDir == "" {
		return "."
	}
	if _, err := exec.LookPath("git"); err == nil {
		cmd := exec.Command("git", "-C", workDir, "rev-parse", "--show-toplevel")
		if output, err := cmd.Output(); err == nil {
			root := strings.TrimSpace(string(output))
			if root != "" {
				return root
			}
		}
	}
	return workDir
}

func projectSlug(projectRoot string) string {
	return fmt.Sprintf("%s-%s", slugify(filepath.Base(projectRoot)), hashPath(projectRoot))
}

// slugify keeps letters, digits and ".-_", collapsing other runs to one "_".
func slugify(input string) string {
	return cleanName(input, "._-", true, "project")
}

// sanitizeLabel keeps letters, digits and "_" for use inside file names.
func sanitizeLabel(input string) string {
	return cleanName(input, "_", false, "run")
}

func cleanName(input, extra string, collapse bool, fallback string) string {
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		if isAlnum(c) || strings.IndexByte(extra, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		if collapse && strings.HasSuffix(b.String(), "_") {
			continue
		}
		b.WriteByte('_')
	}
	if name := strings.Trim(b.String(), "_"); name != "" {
		return name
	}
	return fallback
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func hashPath(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:8]
}

// newRunID returns <date>-<time>-<uuid prefix>. Sorting IDs sorts runs by start time.
func newRunID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// FindLogDir returns the log directory for a given work directory.
func FindLogDir(baseDir, workDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("log base dir is empty")
	}

	resolvedWorkDir := workDir
	if resolvedWorkDir == "" {
		resolvedWorkDir = "."
	}
	if abs, err := filepath.Abs(resolvedWorkDir); err == nil {
		resolvedWorkDir = abs
	}

	baseDir = resolveBaseDir(baseDir, resolvedWorkDir)
	projectRoot := resolveProjectRoot(resolvedWorkDir)
	return filepath.Join(baseDir, projectSlug(projectRoot)), nil
}

// FindLatestLog finds the latest JSONL log file in a directory.
// It returns "" when the directory does not exist or holds no logs.
func FindLatestLog(logDir string) (string, error) {
	runs, err := FindLogRuns(logDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	for _, run := range runs {
		if run.LogFile != "" {
			return run.LogFile, nil
		}
	}
	return "", nil
}

// TailLog copies the last n lines of a log file to w. With follow set it
// keeps copying appended data until ctx is done.
func TailLog(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n > 0 {
		if err := tailSeek(file, n); err != nil {
			return fmt.Errorf("seek to tail position: %w", err)
		}
	}

	if _, err := io.Copy(w, file); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := io.Copy(w, file); err != nil {
				return err
			}
		}
	}
}

// tailSeek positions file at the start of the n-th line from the end.
func tailSeek(file *os.File, n int) error {
	const chunk = 4096

	stat, err := file.Stat()
	if err != nil {
		return err
	}
	size := stat.Size()

	// A trailing newline terminates the last line rather than starting a new one.
	newlines := 0
	offset := size
	buf := make([]byte, chunk)
	for offset > 0 {
		readSize := int64(chunk)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize
		if _, err := file.ReadAt(buf[:readSize], offset); err != nil && err != io.EOF {
			return err
		}
		for i := readSize - 1; i >= 0; i-- {
			if buf[i] != '\n' || offset+i == size-1 {
				continue
			}
			newlines++
			if newlines == n {
				_, err := file.Seek(offset+i+1, io.SeekStart)
				return err
			}
		}
	}
	_, err = file.Seek(0, io.SeekStart)
	return err
}

// LogRun represents a single run with its associated files.
type LogRun struct {
	RunID        string
	ModTime      time.Time
	LogFile      string
	SummaryFiles []string
}

// FindLogRuns finds all runs in a directory, newest first.
func FindLogRuns(logDir string) ([]LogRun, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	runMap := make(map[string]*LogRun)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		runID, isSummary := extractRunID(name)
		if runID == "" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		run, ok := runMap[runID]
		if !ok {
			run = &LogRun{RunID: runID, ModTime: info.ModTime()}
			runMap[runID] = run
		}
		if info.ModTime().After(run.ModTime) {
			run.ModTime = info.ModTime()
		}

		fullPath := filepath.Join(logDir, name)
		if isSummary {
			run.SummaryFiles = append(run.SummaryFiles, fullPath)
		} else {
			run.LogFile = fullPath
		}
	}

	runs := make([]LogRun, 0, len(runMap))
	for _, run := range runMap {
		sort.Strings(run.SummaryFiles)
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].ModTime.Equal(runs[j].ModTime) {
			return runs[i].ModTime.After(runs[j].ModTime)
		}
		return runs[i].RunID > runs[j].RunID
	})
	return runs, nil
}

// extractRunID extracts the run ID from a log filename and reports whether
// the file is a stage summary.
// Formats: <date>-<time>-<id>.jsonl and <date>-<time>-<id>-<stage>.summary.json.
func extractRunID(filename string) (string, bool) {
	if base, ok := strings.CutSuffix(filename, ".jsonl"); ok {
		if strings.Count(base, "-") < 2 {
			return "", false
		}
		return base, false
	}
	if base, ok := strings.CutSuffix(filename, ".summary.json"); ok {
		parts := strings.Split(base, "-")
		if len(parts) >= 4 {
			return strings.Join(parts[:3], "-"), true
		}
	}
	return "", false
}
