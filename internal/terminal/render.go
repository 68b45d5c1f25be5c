// Package terminal renders the diagnosis screen for the command line.
package terminal

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/example/plantdoc/internal/controller"
	"github.com/example/plantdoc/internal/view"
)

const barWidth = 30

var (
	bandColors = map[string]lipgloss.Color{
		"red":    lipgloss.Color("#DC2626"),
		"orange": lipgloss.Color("#EA580C"),
		"yellow": lipgloss.Color("#CA8A04"),
		"green":  lipgloss.Color("#16A34A"),
	}
	bandIcons = map[string]string{
		"alert-triangle": "▲",
		"alert-circle":   "●",
		"check-circle":   "✔",
	}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#166534"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A"))
	cardStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#86EFAC")).
			Padding(0, 1)
	warnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FCA5A5")).
			Foreground(lipgloss.Color("#B91C1C")).
			Padding(0, 1)
	noteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#92400E")).Italic(true)
)

// Render draws the results screen, or the error message when the state is
// still on the upload page.
func Render(state controller.UploadState) string {
	page := view.Build(state)
	if page.Results == nil {
		if page.Upload.ErrorMessage != "" {
			return warnStyle.Render(page.Upload.ErrorMessage)
		}
		return labelStyle.Render("No diagnosis available.")
	}
	return renderResults(page.Results)
}

func renderResults(r *view.ResultsView) string {
	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(bandColors[r.Band]).
		Render(fmt.Sprintf("%s %s", bandIcons[r.Icon], r.Severity))

	diag := lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render("Detected Disease"),
		r.Disease,
		"",
		labelStyle.Render("Severity Level"),
		badge,
		"",
		labelStyle.Render("Confidence"),
		fmt.Sprintf("%s %s%%", ConfidenceBar(r.ConfidenceWidth, barWidth), r.Confidence),
	)

	var advice string
	if r.IsPlant {
		advice = cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Treatment Recommendations"), r.Treatment))
	} else {
		advice = warnStyle.Render(lipgloss.JoinVertical(lipgloss.Left, "⚠ Not a Plant", r.Treatment))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Analysis Results"),
		cardStyle.Render(diag),
		advice,
		noteStyle.Render("Note: "+r.Advisory),
	)
}

// ConfidenceBar draws width cells, filled in proportion to percent (0-100).
func ConfidenceBar(percent float64, width int) string {
	filled := int(math.Round(percent / 100 * float64(width)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

