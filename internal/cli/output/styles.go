package output

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status icons.
const (
	IconSuccess = "✓"
	IconFailed  = "✗"
	IconWarning = "!"
	IconSkipped = "-"
	IconPending = "·"
)

// Styles holds the lipgloss styles of the text mode.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
	ModelPath lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSkipped lipgloss.Style
}

// NewStyles builds styles bound to w. Without color every style renders
// plain text.
func NewStyles(w io.Writer, color bool) *Styles {
	re := lipgloss.NewRenderer(w)
	if color {
		re.SetColorProfile(termenv.EnvColorProfile())
	} else {
		re.SetColorProfile(termenv.Ascii)
	}

	green := lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#4ade80"}
	red := lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}
	yellow := lipgloss.AdaptiveColor{Light: "#a16207", Dark: "#facc15"}
	blue := lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#60a5fa"}
	gray := lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}

	return &Styles{
		Header1:   re.NewStyle().Bold(true).Foreground(blue),
		Header2:   re.NewStyle().Bold(true),
		Bold:      re.NewStyle().Bold(true),
		Muted:     re.NewStyle().Foreground(gray),
		Success:   re.NewStyle().Foreground(green),
		Warning:   re.NewStyle().Foreground(yellow),
		Error:     re.NewStyle().Foreground(red),
		Info:      re.NewStyle().Foreground(blue),
		ModelPath: re.NewStyle().Foreground(blue),

		StatusSuccess: re.NewStyle().Foreground(green).Bold(true),
		StatusFailed:  re.NewStyle().Foreground(red).Bold(true),
		StatusWarning: re.NewStyle().Foreground(yellow).Bold(true),
		StatusSkipped: re.NewStyle().Foreground(gray),
	}
}

// StatusStyle picks the style for a model, test or run status.
func (s *Styles) StatusStyle(status string) lipgloss.Style {
	switch strings.ToLower(status) {
	case "success", "pass", "completed":
		return s.StatusSuccess
	case "failed", "fail", "error":
		return s.StatusFailed
	case "warn", "cancelled", "running":
		return s.StatusWarning
	default:
		return s.StatusSkipped
	}
}

// StatusIcon returns the icon of a status.
func StatusIcon(status string) string {
	switch strings.ToLower(status) {
	case "success", "pass", "completed":
		return IconSuccess
	case "failed", "fail", "error":
		return IconFailed
	case "warn", "cancelled":
		return IconWarning
	case "skipped":
		return IconSkipped
	default:
		return IconPending
	}
}

var titleCaser = cases.Title(language.English)

// StatusLabel renders a status for display, e.g. "Success".
func StatusLabel(status string) string {
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}
