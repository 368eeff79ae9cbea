package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/nibzard/clear-go/internal/config"
	"github.com/nibzard/clear-go/internal/utils"
)

// ErrNoExamples is returned when a dataset has a header but no rows.
var ErrNoExamples = errors.New("dataset has no examples")

// Store reads and writes datasets and run outputs on a filesystem.
type Store struct {
	fs afero.Fs
}

// NewStore creates a store on fs. A nil fs uses the OS filesystem.
func NewStore(fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs}
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

// LoadOptions controls how a dataset is read.
type LoadOptions struct {
	Columns config.ColumnsConfig

	// Extra lists display-only columns to keep.
	Extra []string

	// MaxExamples limits the number of rows read. Zero means all.
	MaxExamples int

	RequireResponse  bool
	RequireReference bool
}

// LoadOptionsFromConfig builds load options for the configured dataset.
func LoadOptionsFromConfig(cfg *config.Config) LoadOptions {
	return LoadOptions{
		Columns:          cfg.Columns,
		Extra:            utils.NormalizeNameList(cfg.InputColumns),
		MaxExamples:      cfg.MaxExamples,
		RequireResponse:  !cfg.PerformGeneration,
		RequireReference: cfg.ReferenceBased || cfg.EnhancedMCQ,
	}
}

// LoadExamples reads a dataset CSV.
//
// A missing id column, or an empty id cell, falls back to the row number.
// Duplicate ids are an error since outputs are keyed by id.
func (s *Store) LoadExamples(path string, opts LoadOptions) ([]Example, error) {
	rows, header, err := s.readCSV(path)
	if err != nil {
		return nil, err
	}

	idx := func(name string) int {
		if i, ok := header[name]; ok && name != "" {
			return i
		}
		return -1
	}
	idCol := idx(opts.Columns.ID)
	inputCol := idx(opts.Columns.Input)
	respCol := idx(opts.Columns.Response)
	refCol := idx(opts.Columns.Reference)

	var missing []string
	if inputCol < 0 {
		missing = append(missing, opts.Columns.Input)
	}
	if opts.RequireResponse && respCol < 0 {
		missing = append(missing, opts.Columns.Response)
	}
	if opts.RequireReference && refCol < 0 {
		missing = append(missing, opts.Columns.Reference)
	}
	for _, name := range opts.Extra {
		if idx(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing columns: %s", path, strings.Join(missing, ", "))
	}

	if opts.MaxExamples > 0 && len(rows) > opts.MaxExamples {
		rows = rows[:opts.MaxExamples]
	}

	examples := make([]Example, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		ex := Example{
			ID:        cell(row, idCol),
			Input:     cell(row, inputCol),
			Response:  cell(row, respCol),
			Reference: cell(row, refCol),
		}
		if ex.ID == "" {
			ex.ID = strconv.Itoa(i)
		}
		if prev, dup := seen[ex.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate id %q in rows %d and %d", path, ex.ID, prev+2, i+2)
		}
		seen[ex.ID] = i
		if len(opts.Extra) > 0 {
			ex.Extra = make(map[string]string, len(opts.Extra))
			for _, name := range opts.Extra {
				ex.Extra[name] = cell(row, idx(name))
			}
		}
		examples = append(examples, ex)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoExamples)
	}
	return examples, nil
}

// WriteGenerations writes generated responses to path.
func (s *Store) WriteGenerations(path string, examples []Example) error {
	extras := extraKeys(examples)
	header := append([]string{colID, colInput, colResponse, colReference}, extras...)
	header = append(header, colError)

	records := make([][]string, 0, len(examples))
	for _, ex := range examples {
		rec := []string{ex.ID, ex.Input, ex.Response, ex.Reference}
		for _, k := range extras {
			rec = append(rec, ex.Extra[k])
		}
		records = append(records, append(rec, ex.Error))
	}
	return s.writeCSV(path, header, records)
}

// ReadGenerations reads a file written by WriteGenerations.
func (s *Store) ReadGenerations(path string) ([]Example, error) {
	rows, header, err := s.readCSV(path)
	if err != nil {
		return nil, err
	}
	if _, ok := header[colID]; !ok {
		return nil, fmt.Errorf("%s: not a generations file", path)
	}
	examples := make([]Example, 0, len(rows))
	for _, row := range rows {
		examples = append(examples, exampleFromRow(row, header))
	}
	return examples, nil
}

// WriteEvaluations writes judge verdicts to path.
func (s *Store) WriteEvaluations(path string, evals []Evaluation) error {
	examples := make([]Example, len(evals))
	for i, ev := range evals {
		examples[i] = ev.Example
	}
	extras := extraKeys(examples)
	header := append([]string{colID, colInput, colResponse, colReference}, extras...)
	header = append(header, colScore, colText, colError, colGenError)

	records := make([][]string, 0, len(evals))
	for _, ev := range evals {
		rec := []string{ev.ID, ev.Input, ev.Response, ev.Reference}
		for _, k := range extras {
			rec = append(rec, ev.Extra[k])
		}
		score := ""
		if !ev.Failed() {
			score = formatScore(ev.Score)
		}
		records = append(records, append(rec, score, ev.Text, ev.Error, ev.Example.Error))
	}
	return s.writeCSV(path, header, records)
}

// ReadEvaluations reads a file written by WriteEvaluations.
func (s *Store) ReadEvaluations(path string) ([]Evaluation, error) {
	rows, header, err := s.readCSV(path)
	if err != nil {
		return nil, err
	}
	if _, ok := header[colScore]; !ok {
		return nil, fmt.Errorf("%s: not an evaluations file", path)
	}
	evals := make([]Evaluation, 0, len(rows))
	for i, row := range rows {
		ex := exampleFromRow(row, header)
		ev := Evaluation{
			Example: ex,
			Text:    cell(row, columnIndex(header, colText)),
			Error:   ex.Error,
		}
		ev.Example.Error = cell(row, columnIndex(header, colGenError))
		if raw := cell(row, header[colScore]); raw != "" {
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: bad score %q", path, i+2, raw)
			}
			ev.Score = score
		}
		evals = append(evals, ev)
	}
	return evals, nil
}

var outputColumns = map[string]bool{
	colID: true, colInput: true, colResponse: true, colReference: true,
	colError: true, colScore: true, colText: true, colGenError: true,
}

func columnIndex(header map[string]int, name string) int {
	if i, ok := header[name]; ok {
		return i
	}
	return -1
}

func exampleFromRow(row []string, header map[string]int) Example {
	col := func(name string) int { return columnIndex(header, name) }
	ex := Example{
		ID:        cell(row, col(colID)),
		Input:     cell(row, col(colInput)),
		Response:  cell(row, col(colResponse)),
		Reference: cell(row, col(colReference)),
		Error:     cell(row, col(colError)),
	}
	for name, i := range header {
		if outputColumns[name] {
			continue
		}
		if ex.Extra == nil {
			ex.Extra = map[string]string{}
		}
		ex.Extra[name] = cell(row, i)
	}
	return ex
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// readCSV returns data rows and a column-name index. Header names are trimmed.
func (s *Store) readCSV(path string) ([][]string, map[string]int, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	head, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, nil, fmt.Errorf("read %s header: %w", path, err)
	}
	header := make(map[string]int, len(head))
	for i, name := range head {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, header, nil
}

func (s *Store) writeCSV(path string, header []string, records [][]string) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
