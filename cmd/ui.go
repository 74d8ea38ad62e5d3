package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/okian/ecoaudit/internal/domain/report"
)

// Color palette for console output.
var (
	colorPrimary = lipgloss.Color("#10B981")
	colorAccent  = lipgloss.Color("#06B6D4")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#9CA3AF")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	bulletStyle  = lipgloss.NewStyle().Foreground(colorPrimary).PaddingLeft(2)
)

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 1)

func renderReport(w io.Writer, rep *report.Report) {
	lines := []string{
		titleStyle.Render("Audit: " + rep.Experiment.Type),
		field("Model", rep.Model.Name),
		field("Epochs", fmt.Sprint(rep.Experiment.Epochs)),
	}
	if rep.Dataset != nil {
		lines = append(lines, field("Dataset", fmt.Sprintf("%d samples x %d features", rep.Dataset.Samples, rep.Dataset.Features)))
	}
	for i, e := range rep.Metrics.EnergyPerEpoch {
		lines = append(lines, field(fmt.Sprintf("Epoch %d", i+1), fmt.Sprintf("%.6f kWh", e)))
	}
	lines = append(lines,
		field("Total energy", fmt.Sprintf("%.6f kWh", rep.Metrics.TotalEnergyKWh)),
		field("Total carbon", fmt.Sprintf("%.6f kg CO2e", rep.Metrics.TotalCarbonKg)),
	)
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))

	for _, warn := range rep.Warnings {
		fmt.Fprintln(w, warningStyle.Render("! "+warn))
	}

	fmt.Fprintln(w, titleStyle.Render("Recommendations"))
	if len(rep.Recommendations) == 0 {
		fmt.Fprintln(w, bulletStyle.Render(labelStyle.Render("none")))
	}
	for _, r := range rep.Recommendations {
		fmt.Fprintln(w, bulletStyle.Render("• "+r))
	}
}

func field(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

func renderError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("✗ "+msg))
}

func renderSaved(w io.Writer, label, path string) {
	fmt.Fprintln(w, titleStyle.Render("✓ ")+labelStyle.Render(label+": ")+valueStyle.Render(path))
}
