package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/nibzard/clear-go/internal/data"
)

// Filter selects which examples the dashboard lists.
type Filter int

const (
	FilterAll Filter = iota
	FilterFailed
	FilterLowScore
	FilterWithShortcomings
)

// LowScoreThreshold is the score below which an example counts as low.
const LowScoreThreshold = 0.5

func (f Filter) String() string {
	switch f {
	case FilterFailed:
		return "failed"
	case FilterLowScore:
		return fmt.Sprintf("score < %.1f", LowScoreThreshold)
	case FilterWithShortcomings:
		return "with shortcomings"
	default:
		return "all"
	}
}

// DashboardOption configures the dashboard.
type DashboardOption func(*dashboardConfig)

type dashboardConfig struct {
	interval time.Duration
	watch    bool
	logger   *log.Logger
}

// WithRefreshInterval sets how often the dashboard reloads the analysis.
// Zero disables periodic reloads.
func WithRefreshInterval(d time.Duration) DashboardOption {
	return func(c *dashboardConfig) {
		c.interval = d
	}
}

// WithWatch reloads the analysis whenever the file changes on disk.
func WithWatch(enabled bool) DashboardOption {
	return func(c *dashboardConfig) {
		c.watch = enabled
	}
}

// WithDashboardLogger sets the logger for watcher errors.
func WithDashboardLogger(logger *log.Logger) DashboardOption {
	return func(c *dashboardConfig) {
		c.logger = logger
	}
}

// RunDashboard shows the analysis at path until the user quits.
func RunDashboard(ctx context.Context, store *data.Store, path string, opts ...DashboardOption) error {
	c := &dashboardConfig{interval: 5 * time.Second, watch: true, logger: log.Default()}
	for _, opt := range opts {
		opt(c)
	}

	if !IsTTY(os.Stdout) {
		return errors.New("dashboard requires a TTY")
	}
	if !store.Exists(path) {
		return fmt.Errorf("analysis not found at %s (run aggregate first)", path)
	}

	model := newDashboardModel(store, path, c.interval)
	if c.watch {
		if _, ok := store.Fs().(*afero.OsFs); ok {
			changes, stop, err := watchFile(path, c.logger)
			if err != nil {
				c.logger.Warn("File watching disabled", "error", err)
			} else {
				defer stop()
				model.changes = changes
			}
		}
	}

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchFile reports writes to path. The parent directory is watched so
// that files replaced by rename are still seen.
func watchFile(path string, logger *log.Logger) (<-chan struct{}, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	changes := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Debug("Watcher error", "error", err)
			}
		}
	}()
	return changes, func() { _ = watcher.Close() }, nil
}

type dashboardModel struct {
	store    *data.Store
	path     string
	interval time.Duration
	changes  <-chan struct{}

	analysis *data.Analysis
	loadErr  error
	loadedAt time.Time
	visible  []data.ExampleResult

	table      table.Model
	detail     viewport.Model
	showDetail bool
	showHelp   bool
	filter     Filter
	width      int
	height     int
}

type dashTickMsg time.Time

type fileChangedMsg struct{}

func newDashboardModel(store *data.Store, path string, interval time.Duration) *dashboardModel {
	t := table.New(
		table.WithColumns(tableColumns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(colorAccent).Bold(true)
	styles.Selected = styles.Selected.Foreground(colorText).Background(colorBarRest).Bold(false)
	t.SetStyles(styles)

	return &dashboardModel{
		store:    store,
		path:     path,
		interval: interval,
		table:    t,
		detail:   viewport.New(100, 10),
		width:    100,
		height:   30,
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	m.refresh()
	var cmds []tea.Cmd
	if m.interval > 0 {
		cmds = append(cmds, dashTickCmd(m.interval))
	}
	if m.changes != nil {
		cmds = append(cmds, waitForChange(m.changes))
	}
	return tea.Batch(cmds...)
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			if m.showDetail || m.showHelp {
				m.showDetail, m.showHelp = false, false
				return m, nil
			}
			return m, tea.Quit
		case "r", "f5":
			m.refresh()
			return m, nil
		case "h", "?":
			m.showHelp = !m.showHelp
			return m, nil
		case "enter":
			if len(m.visible) > 0 {
				m.showDetail = !m.showDetail
				m.updateDetail()
			}
			return m, nil
		case "0":
			m.setFilter(FilterAll)
			return m, nil
		case "1":
			m.setFilter(FilterFailed)
			return m, nil
		case "2":
			m.setFilter(FilterLowScore)
			return m, nil
		case "3":
			m.setFilter(FilterWithShortcomings)
			return m, nil
		}
		var cmd tea.Cmd
		if m.showDetail {
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	case dashTickMsg:
		m.refresh()
		return m, dashTickCmd(m.interval)
	case fileChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	var b strings.Builder
	writeDashTitle(&b, m.analysis)

	if m.showHelp {
		writeDashHelp(&b)
		writeDashFooter(&b, m.interval, m.changes != nil)
		return b.String()
	}
	if m.loadErr != nil {
		b.WriteString(styleBad.Render("Error loading analysis:") + "\n")
		b.WriteString("  " + m.loadErr.Error() + "\n\n")
		writeDashFooter(&b, m.interval, m.changes != nil)
		return b.String()
	}
	if m.analysis == nil {
		b.WriteString("Loading...\n\n")
		writeDashFooter(&b, m.interval, m.changes != nil)
		return b.String()
	}

	if m.showDetail {
		b.WriteString(styleBox.Render(m.detail.View()) + "\n")
		b.WriteString(styleSubtle.Render("enter/esc to close | arrows to scroll") + "\n")
		return b.String()
	}

	b.WriteString(renderSummary(m.analysis))
	b.WriteString("\n")
	b.WriteString(renderShortcomings(m.analysis.Shortcomings, barSpace(m.width), 8))
	b.WriteString("\n")
	if m.filter != FilterAll {
		fmt.Fprintf(&b, "Filter: %s (0 to clear)\n", m.filter)
	}
	b.WriteString(m.table.View() + "\n\n")
	writeDashFooter(&b, m.interval, m.changes != nil)
	return b.String()
}

func (m *dashboardModel) resize(width, height int) {
	m.width, m.height = width, height
	m.table.SetColumns(tableColumns(width))
	rows := height - 24
	if rows < 5 {
		rows = 5
	}
	m.table.SetHeight(rows)
	m.detail.Width = width - 4
	m.detail.Height = height - 6
	m.updateDetail()
}

func (m *dashboardModel) refresh() {
	a, err := m.store.ReadAnalysis(m.path)
	if err != nil {
		m.loadErr = err
		return
	}
	m.loadErr = nil
	m.analysis = a
	m.loadedAt = time.Now()
	m.applyFilter()
}

func (m *dashboardModel) setFilter(f Filter) {
	m.filter = f
	m.showDetail = false
	m.applyFilter()
}

func (m *dashboardModel) applyFilter() {
	if m.analysis == nil {
		m.visible = nil
		m.table.SetRows(nil)
		return
	}
	m.visible = filterExamples(m.analysis.Examples, m.filter)
	m.table.SetRows(buildRows(m.visible, m.table.Columns()))
	if m.table.Cursor() >= len(m.visible) {
		m.table.SetCursor(0)
	}
	m.updateDetail()
}

func (m *dashboardModel) updateDetail() {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		m.detail.SetContent("")
		return
	}
	m.detail.SetContent(renderDetail(m.visible[i], m.detail.Width))
	m.detail.GotoTop()
}

func dashTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return fileChangedMsg{}
	}
}

// filterExamples returns the examples matching f, lowest score first.
// Failed examples sort before scored ones.
func filterExamples(examples []data.ExampleResult, f Filter) []data.ExampleResult {
	out := make([]data.ExampleResult, 0, len(examples))
	for _, ex := range examples {
		switch f {
		case FilterFailed:
			if ex.Score != nil {
				continue
			}
		case FilterLowScore:
			if ex.Score == nil || *ex.Score >= LowScoreThreshold {
				continue
			}
		case FilterWithShortcomings:
			if len(ex.Shortcomings) == 0 {
				continue
			}
		}
		out = append(out, ex)
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Score, out[j].Score
		switch {
		case si == nil && sj == nil:
			return false
		case si == nil:
			return true
		case sj == nil:
			return false
		}
		return *si < *sj
	})
	return out
}

func tableColumns(width int) []table.Column {
	input := width - 8 - 12 - 8 - 10
	if input < 20 {
		input = 20
	}
	return []table.Column{
		{Title: "ID", Width: 12},
		{Title: "Score", Width: 6},
		{Title: "Issues", Width: 6},
		{Title: "Input", Width: input},
	}
}

func buildRows(examples []data.ExampleResult, columns []table.Column) []table.Row {
	inputWidth := 40
	if len(columns) == 4 {
		inputWidth = columns[3].Width
	}
	rows := make([]table.Row, 0, len(examples))
	for _, ex := range examples {
		rows = append(rows, table.Row{
			truncate(ex.ID, 12),
			scoreCell(ex.Score),
			fmt.Sprintf("%d", len(ex.Shortcomings)),
			truncate(oneLine(ex.Input), inputWidth),
		})
	}
	return rows
}

func scoreCell(score *float64) string {
	if score == nil {
		return "ERR"
	}
	return fmt.Sprintf("%.2f", *score)
}

func renderSummary(a *data.Analysis) string {
	var b strings.Builder
	s := a.Stats
	b.WriteString(styleSection.Render("Summary") + "\n")
	fmt.Fprintf(&b, "  Examples: %d  Evaluated: %d  Generation failed: %d  Evaluation failed: %d\n",
		s.Total, s.Evaluated, s.GenerationFailed, s.EvaluationFailed)
	if s.Evaluated > 0 {
		fmt.Fprintf(&b, "  Mean score: %s  Min: %.2f  Max: %.2f\n",
			scoreStyle(s.MeanScore).Render(fmt.Sprintf("%.3f", s.MeanScore)), s.MinScore, s.MaxScore)
	}
	if len(a.Shortcomings) > 0 {
		fmt.Fprintf(&b, "  With shortcomings: %d  No issues: %d", s.WithShortcomings, s.NoIssuesDetected)
		if s.MappingFailed > 0 {
			fmt.Fprintf(&b, "  Mapping failed: %d", s.MappingFailed)
		}
		b.WriteString("\n")
	}
	for _, w := range a.Warnings {
		b.WriteString("  " + styleWarn.Render("! "+w) + "\n")
	}
	if line := renderHistogram(a.Histogram); line != "" {
		b.WriteString("  Scores: " + line + "\n")
	}
	return b.String()
}

var sparks = []rune("▁▂▃▄▅▆▇█")

// renderHistogram draws bucket counts as a sparkline, low scores on the left.
func renderHistogram(buckets []data.Bucket) string {
	maxCount := 0
	for _, bk := range buckets {
		if bk.Count > maxCount {
			maxCount = bk.Count
		}
	}
	if maxCount == 0 {
		return ""
	}
	var b strings.Builder
	for _, bk := range buckets {
		if bk.Count == 0 {
			b.WriteRune(' ')
			continue
		}
		level := bk.Count * (len(sparks) - 1) / maxCount
		b.WriteRune(sparks[level])
	}
	return "0 " + styleBarFill.Render(b.String()) + " 1"
}

func renderShortcomings(list []data.ShortcomingStat, width, limit int) string {
	var b strings.Builder
	b.WriteString(styleSection.Render("Shortcomings") + "\n")
	if len(list) == 0 {
		b.WriteString(styleSubtle.Render("  None identified.") + "\n")
		return b.String()
	}
	for i, sc := range list {
		if i == limit {
			b.WriteString(styleSubtle.Render(fmt.Sprintf("  ... %d more", len(list)-limit)) + "\n")
			break
		}
		fmt.Fprintf(&b, "  %s %5.1f%%  %s\n", frequencyBar(sc.Frequency, width), sc.Frequency*100, sc.Text)
	}
	return b.String()
}

func barSpace(width int) int {
	w := width / 5
	if w < 10 {
		return 10
	}
	if w > 30 {
		return 30
	}
	return w
}

// frequencyBar renders f in [0, 1] as a bar of the given width.
func frequencyBar(f float64, width int) string {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	filled := int(f*float64(width) + 0.5)
	return styleBarFill.Render(strings.Repeat("█", filled)) +
		styleBarRest.Render(strings.Repeat("░", width-filled))
}

func renderDetail(ex data.ExampleResult, width int) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("Example "+ex.ID) + "\n\n")
	if ex.Score != nil {
		b.WriteString("Score: " + scoreStyle(*ex.Score).Render(scoreCell(ex.Score)) + "\n\n")
	}
	if ex.Error != "" {
		b.WriteString(styleBad.Render("Error: ") + ex.Error + "\n\n")
	}
	writeField(&b, "Input", ex.Input)
	writeField(&b, "Response", ex.Response)
	writeField(&b, "Reference", ex.Reference)
	if len(ex.Extra) > 0 {
		keys := make([]string, 0, len(ex.Extra))
		for k := range ex.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeField(&b, k, ex.Extra[k])
		}
	}
	writeField(&b, "Evaluation", ex.Evaluation)
	if len(ex.Shortcomings) > 0 {
		b.WriteString(styleSection.Render("Shortcomings") + "\n")
		for _, sc := range ex.Shortcomings {
			b.WriteString("  - " + sc + "\n")
		}
	}
	if width <= 0 {
		return b.String()
	}
	return styleText.Width(width).Render(b.String())
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(styleSection.Render(name) + "\n")
	b.WriteString(value + "\n\n")
}

func writeDashTitle(b *strings.Builder, a *data.Analysis) {
	title := "CLEAR Dashboard"
	if a != nil && a.RunName != "" {
		title += " - " + a.RunName
	}
	b.WriteString(styleTitle.Render(title) + "\n")
	if a != nil {
		meta := fmt.Sprintf("provider %s | judge %s", a.Provider, a.EvalModel)
		if a.GenModel != "" {
			meta += " | generator " + a.GenModel
		}
		b.WriteString(styleSubtle.Render(meta) + "\n")
	}
	b.WriteString("\n")
}

func writeDashHelp(b *strings.Builder) {
	b.WriteString(styleSection.Render("Keyboard Shortcuts") + "\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Reload analysis\n")
	b.WriteString("  up/down      Select example\n")
	b.WriteString("  enter        Toggle example details\n")
	b.WriteString("  h, ?         Toggle this help screen\n")
	b.WriteString("  1            Show failed examples\n")
	b.WriteString("  2            Show low scores\n")
	b.WriteString("  3            Show examples with shortcomings\n")
	b.WriteString("  0            Clear filter\n\n")
}

func writeDashFooter(b *strings.Builder, interval time.Duration, watching bool) {
	footer := "Press h for help | q to quit"
	if watching {
		footer += " | Watching for changes"
	} else if interval > 0 {
		footer += fmt.Sprintf(" | Refreshing every %s", interval)
	}
	b.WriteString(styleSubtle.Render(footer) + "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
