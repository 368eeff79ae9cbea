package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"github.com/nibzard/clear-go/internal/data"
)

func score(v float64) *float64 { return &v }

func sampleAnalysis() *data.Analysis {
	return &data.Analysis{
		RunName:   "r1",
		Provider:  "openai",
		EvalModel: "judge-1",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Stats: data.Stats{
			Total: 4, Evaluated: 3, EvaluationFailed: 1,
			MeanScore: 0.6, MinScore: 0.2, MaxScore: 0.9,
			WithShortcomings: 2, NoIssuesDetected: 1,
		},
		Histogram: []data.Bucket{{Low: 0, High: 0.5, Count: 1}, {Low: 0.5, High: 1, Count: 2}},
		Shortcomings: []data.ShortcomingStat{
			{Text: "Misses units", Count: 2, Frequency: 2.0 / 3},
			{Text: "Too verbose", Count: 1, Frequency: 1.0 / 3},
		},
		Examples: []data.ExampleResult{
			{ID: "a", Input: "What is 2+2?", Response: "4", Score: score(0.9)},
			{ID: "b", Input: "Convert 1 km", Response: "1000", Score: score(0.2), Shortcomings: []string{"Misses units"}},
			{ID: "c", Input: "Explain gravity", Error: "Error: ID c: Task timed out after 1 seconds."},
			{ID: "d", Input: "Name a color", Response: "blue", Score: score(0.7), Shortcomings: []string{"Misses units", "Too verbose"}},
		},
		Warnings: []string{"mapping skipped for 1 example"},
	}
}

func ids(examples []data.ExampleResult) string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.ID
	}
	return strings.Join(out, ",")
}

func TestFilterExamples(t *testing.T) {
	examples := sampleAnalysis().Examples
	tests := []struct {
		filter Filter
		want   string
	}{
		{FilterAll, "c,b,d,a"},
		{FilterFailed, "c"},
		{FilterLowScore, "b"},
		{FilterWithShortcomings, "b,d"},
	}
	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			if got := ids(filterExamples(examples, tt.filter)); got != tt.want {
				t.Errorf("filterExamples = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildRows(t *testing.T) {
	examples := filterExamples(sampleAnalysis().Examples, FilterAll)
	rows := buildRows(examples, tableColumns(100))
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "c" || rows[0][1] != "ERR" {
		t.Errorf("failed example row = %v", rows[0])
	}
	if rows[2][1] != "0.70" || rows[2][2] != "2" {
		t.Errorf("scored example row = %v", rows[2])
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer sentence", 10, "a longe..."},
		{"héllo wörld", 6, "hél..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
	if got := oneLine("a\n  b\tc"); got != "a b c" {
		t.Errorf("oneLine = %q", got)
	}
}

func TestFrequencyBar(t *testing.T) {
	tests := []struct {
		f          float64
		wantFilled int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.7, 10},
		{-1, 0},
	}
	for _, tt := range tests {
		bar := frequencyBar(tt.f, 10)
		if got := strings.Count(bar, "█"); got != tt.wantFilled {
			t.Errorf("frequencyBar(%v) filled = %d, want %d", tt.f, got, tt.wantFilled)
		}
		if got := strings.Count(bar, "░"); got != 10-tt.wantFilled {
			t.Errorf("frequencyBar(%v) empty = %d, want %d", tt.f, got, 10-tt.wantFilled)
		}
	}
}

func TestRenderHistogram(t *testing.T) {
	if got := renderHistogram(nil); got != "" {
		t.Errorf("expected empty histogram, got %q", got)
	}
	if got := renderHistogram([]data.Bucket{{Count: 0}, {Count: 0}}); got != "" {
		t.Errorf("expected empty histogram for zero counts, got %q", got)
	}
	got := renderHistogram([]data.Bucket{{Count: 1}, {Count: 0}, {Count: 4}})
	if !strings.Contains(got, "█") || !strings.HasPrefix(got, "0 ") || !strings.HasSuffix(got, " 1") {
		t.Errorf("unexpected histogram %q", got)
	}
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary(sampleAnalysis())
	for _, want := range []string{"Examples: 4", "Evaluated: 3", "Evaluation failed: 1", "0.600", "With shortcomings: 2", "mapping skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderShortcomings(t *testing.T) {
	out := renderShortcomings(sampleAnalysis().Shortcomings, 10, 1)
	if !strings.Contains(out, "Misses units") || !strings.Contains(out, "66.7%") {
		t.Errorf("unexpected shortcomings view:\n%s", out)
	}
	if strings.Contains(out, "Too verbose") || !strings.Contains(out, "1 more") {
		t.Errorf("expected limit to apply:\n%s", out)
	}
	if out := renderShortcomings(nil, 10, 5); !strings.Contains(out, "None identified") {
		t.Errorf("unexpected empty view %q", out)
	}
}

func TestRenderDetail(t *testing.T) {
	ex := sampleAnalysis().Examples[2]
	out := renderDetail(ex, 0)
	if !strings.Contains(out, "Example c") || !strings.Contains(out, "timed out") {
		t.Errorf("unexpected detail:\n%s", out)
	}
	ex = sampleAnalysis().Examples[1]
	ex.Extra = map[string]string{"topic": "units"}
	out = renderDetail(ex, 0)
	for _, want := range []string{"0.20", "Convert 1 km", "topic", "- Misses units"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q:\n%s", want, out)
		}
	}
}

func newTestDashboard(t *testing.T) *dashboardModel {
	t.Helper()
	store := data.NewStore(afero.NewMemMapFs())
	if err := store.WriteAnalysis("/out/r1/analysis.json", sampleAnalysis()); err != nil {
		t.Fatal(err)
	}
	m := newDashboardModel(store, "/out/r1/analysis.json", 0)
	if cmd := m.Init(); cmd != nil {
		t.Log("init returned a command")
	}
	return m
}

func TestDashboardModel(t *testing.T) {
	m := newTestDashboard(t)
	if m.loadErr != nil {
		t.Fatalf("load: %v", m.loadErr)
	}
	if len(m.visible) != 4 {
		t.Fatalf("expected 4 visible examples, got %d", len(m.visible))
	}

	view := m.View()
	for _, want := range []string{"CLEAR Dashboard - r1", "judge-1", "Misses units", "Press h for help"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	if m.filter != FilterFailed || len(m.visible) != 1 {
		t.Errorf("filter 1: filter=%v visible=%d", m.filter, len(m.visible))
	}
	if !strings.Contains(m.View(), "Filter: failed") {
		t.Error("expected filter indicator")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.showDetail || !strings.Contains(m.View(), "Example c") {
		t.Error("enter should open the selected example")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.showDetail {
		t.Error("esc should close details")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("0")})
	if len(m.visible) != 4 {
		t.Errorf("expected filter cleared, got %d", len(m.visible))
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Error("expected help screen")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestDashboardReload(t *testing.T) {
	m := newTestDashboard(t)

	updated := sampleAnalysis()
	updated.Examples = updated.Examples[:1]
	if err := m.store.WriteAnalysis(m.path, updated); err != nil {
		t.Fatal(err)
	}
	m.changes = make(chan struct{})
	if _, cmd := m.Update(fileChangedMsg{}); cmd == nil {
		t.Error("expected watcher to be re-armed")
	}
	if len(m.visible) != 1 {
		t.Errorf("expected reload to pick up new analysis, got %d examples", len(m.visible))
	}

	if err := m.store.Fs().Remove(m.path); err != nil {
		t.Fatal(err)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if m.loadErr == nil || !strings.Contains(m.View(), "Error loading analysis") {
		t.Error("expected load error after the file disappears")
	}
}

func TestDashboardResize(t *testing.T) {
	m := newTestDashboard(t)
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	cols := m.table.Columns()
	if cols[3].Width != 160-38 {
		t.Errorf("input column width = %d", cols[3].Width)
	}
	if m.detail.Width != 156 {
		t.Errorf("detail width = %d", m.detail.Width)
	}
}
