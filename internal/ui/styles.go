package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("205")
	colorSubtle  = lipgloss.Color("241")
	colorGood    = lipgloss.Color("42")
	colorBad     = lipgloss.Color("160")
	colorWarn    = lipgloss.Color("214")
	colorText    = lipgloss.Color("252")
	colorBarFill = lipgloss.Color("75")
	colorBarRest = lipgloss.Color("237")

	styleTitle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleSection = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Underline(true)
	styleSubtle  = lipgloss.NewStyle().Foreground(colorSubtle)
	styleText    = lipgloss.NewStyle().Foreground(colorText)
	styleGood    = lipgloss.NewStyle().Foreground(colorGood)
	styleBad     = lipgloss.NewStyle().Foreground(colorBad).Bold(true)
	styleWarn    = lipgloss.NewStyle().Foreground(colorWarn)
	styleBarFill = lipgloss.NewStyle().Foreground(colorBarFill)
	styleBarRest = lipgloss.NewStyle().Foreground(colorBarRest)

	styleBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(0, 1)
)

// scoreStyle colours a score: green from 0.7, orange from 0.4, red below.
func scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 0.7:
		return styleGood
	case score >= 0.4:
		return styleWarn
	default:
		return styleBad
	}
}
