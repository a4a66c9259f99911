package banner

import (
	"github.com/charmbracelet/lipgloss"
)

const asciiArt = `
███╗   ██╗ ██████╗ ██████╗ ███████╗██████╗
████╗  ██║██╔═══██╗██╔══██╗██╔════╝██╔══██╗
██╔██╗ ██║██║   ██║██║  ██║█████╗  ██║  ██║
██║╚██╗██║██║   ██║██║  ██║██╔══╝  ██║  ██║
██║ ╚████║╚██████╔╝██████╔╝███████╗██████╔╝
╚═╝  ╚═══╝ ╚═════╝ ╚═════╝ ╚══════╝╚═════╝
`

const tagline = "Host-local process supervisor"

const description = `
  noded supervises a fleet of long-lived child processes: bounded
  crash-restart with exponential backoff, resource-budget recycling,
  file-watch restarts, and zero-downtime cluster reload.

  Quick Start:
  $ noded daemon            # Start the supervising daemon
  $ noded start app.js      # Start a managed process
  $ noded list --watch      # Watch the fleet live

  Learn more: noded --help
`

// Render returns the formatted banner.
func Render() string {
	colorPrimary := lipgloss.Color("#89b4fa")
	colorMuted := lipgloss.Color("#6c7086")
	colorAccent := lipgloss.Color("#f38ba8")

	logo := lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		Render(asciiArt)

	tag := lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true).
		Render(tagline)

	desc := lipgloss.NewStyle().
		Foreground(colorMuted).
		Render(description)

	divider := lipgloss.NewStyle().
		Foreground(colorMuted).
		Render("─────────────────────────────────────────────────────────────────")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		divider,
		"              "+logo,
		"",
		"                    "+tag,
		desc,
		divider,
		"",
	)
}

// RenderCompact returns just the logo without the description.
func RenderCompact() string {
	colorPrimary := lipgloss.Color("#89b4fa")
	colorAccent := lipgloss.Color("#f38ba8")

	logo := lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		Render(asciiArt)

	tag := lipgloss.NewStyle().
		Foreground(colorAccent).
		Render("⚡ " + tagline)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		"              "+logo,
		"",
		"                    "+tag,
		"",
	)
}
