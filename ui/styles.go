package ui

import "github.com/charmbracelet/lipgloss"

var (
	fuchsia   = lipgloss.Color("#EE6FF8")
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	subtleFg  = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	warnFg    = lipgloss.Color("214")
	errorFg   = lipgloss.Color("196")

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(darkGreen).
			Padding(0, 1)

	spinnerStyle = lipgloss.NewStyle().Foreground(fuchsia)
	authorStyle  = lipgloss.NewStyle().Foreground(mintGreen).Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleFg)
	warnStyle    = lipgloss.NewStyle().Foreground(warnFg)

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(errorFg).
			Padding(0, 1)
)
