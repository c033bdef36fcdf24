package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

// Colors
var (
	colorMuted    = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#8B949E"}
	colorText     = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#E6EDF3"}
	colorAccent   = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	colorAdded    = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	colorDeleted  = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	colorWarning  = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	colorCursorBg = lipgloss.AdaptiveColor{Light: "#DDF4FF", Dark: "#1F2D3D"}
	colorWordAdd  = lipgloss.AdaptiveColor{Light: "#ABF2BC", Dark: "#1F5F2F"}
	colorWordDel  = lipgloss.AdaptiveColor{Light: "#FFC1C0", Dark: "#6E2424"}
)

var (
	tabStyle       = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true).Underline(true).Padding(0, 1)
	contextStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	statusStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle     = lipgloss.NewStyle().Foreground(colorDeleted)
	warningStyle   = lipgloss.NewStyle().Foreground(colorWarning)

	fileHeaderStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	hunkStyle       = lipgloss.NewStyle().Foreground(colorAccent)
	addStyle        = lipgloss.NewStyle().Foreground(colorAdded)
	delStyle        = lipgloss.NewStyle().Foreground(colorDeleted)
	ctxStyle        = lipgloss.NewStyle().Foreground(colorText)
	noteStyle       = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	cursorStyle     = lipgloss.NewStyle().Background(colorCursorBg)
	wordAddStyle    = lipgloss.NewStyle().Foreground(colorAdded).Background(colorWordAdd)
	wordDelStyle    = lipgloss.NewStyle().Foreground(colorDeleted).Background(colorWordDel)
	lineNoStyle     = lipgloss.NewStyle().Foreground(colorMuted)
)

var statusLetters = map[contracts.FileStatus]string{
	contracts.StatusAdded:     "A",
	contracts.StatusDeleted:   "D",
	contracts.StatusModified:  "M",
	contracts.StatusRenamed:   "R",
	contracts.StatusUntracked: "?",
}

func statusStyleFor(status contracts.FileStatus) lipgloss.Style {
	switch status {
	case contracts.StatusAdded, contracts.StatusUntracked:
		return addStyle
	case contracts.StatusDeleted:
		return delStyle
	case contracts.StatusRenamed:
		return hunkStyle
	}
	return warningStyle
}
