package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#00FF87")
	colorError   = lipgloss.Color("#FF5F87")
	colorWarning = lipgloss.Color("#FFD700")
	colorInfo    = lipgloss.Color("#00D9FF")
	colorMuted   = lipgloss.Color("#6C7086")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle   = lipgloss.NewStyle().Foreground(colorInfo)
)

func PrintSuccess(format string, args ...interface{}) {
	fmt.Println(successStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

func PrintError(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("✗ " + fmt.Sprintf(format, args...)))
}

func PrintWarning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("⚠ " + fmt.Sprintf(format, args...)))
}

func PrintInfo(format string, args ...interface{}) {
	fmt.Println(infoStyle.Render("●") + " " + fmt.Sprintf(format, args...))
}

func PrintDetail(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func PrintMuted(format string, args ...interface{}) {
	fmt.Println(mutedStyle.Render(fmt.Sprintf(format, args...)))
}
