package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffaa00"))

	goodStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	badStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))
)

func printTitle(s string) {
	fmt.Println(titleStyle.Render(s))
	fmt.Println(labelStyle.Render(strings.Repeat("─", len(s))))
}

func printMetric(label string, format string, args ...any) {
	fmt.Printf("  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(fmt.Sprintf(format, args...)))
}

// printResultFooter renders confidence and warnings the same way for every
// stage.
func printResultFooter(result *foundation.Result) {
	style := goodStyle
	if result.Confidence < 0.5 {
		style = badStyle
	} else if result.Confidence < 0.8 {
		style = warnStyle
	}
	fmt.Printf("\n  %s %s\n", labelStyle.Render("confidence:"), style.Render(fmt.Sprintf("%.2f", result.Confidence)))

	if len(result.Warnings) > 0 {
		fmt.Println(labelStyle.Render("  warnings:"))
		for _, w := range result.Warnings {
			fmt.Printf("    %s\n", warnStyle.Render(w))
		}
	}
}

func warningLevelStyle(level string) lipgloss.Style {
	switch level {
	case "high":
		return badStyle
	case "medium":
		return warnStyle
	default:
		return goodStyle
	}
}
