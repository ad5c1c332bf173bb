package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3C3C3C")).
			Padding(0, 1)

	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true)
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Bold(true)

	sentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
)

type UI struct {
	Model tea.Model
}

func NewUI(model tea.Model) *UI {
	return &UI{
		Model: model,
	}
}

func (u *UI) Run(opts ...tea.ProgramOption) error {
	p := tea.NewProgram(u.Model, opts...)
	_, err := p.Run()
	return err
}

type field struct {
	label string
	value string
}

// renderResult formats a one-shot command outcome.
func renderResult(title, message string, err error, fields ...field) string {
	var s strings.Builder
	if err != nil {
		s.WriteString(errorStyle.Render("FAILED") + " " + title + "\n")
		s.WriteString(fmt.Sprintf("  %v\n", err))
		return s.String()
	}

	s.WriteString(successStyle.Render("SUCCESS") + " " + title + "\n")
	if message != "" {
		s.WriteString(fmt.Sprintf("  %s\n", message))
	}
	for _, f := range fields {
		s.WriteString(fmt.Sprintf("  %-9s %s\n", f.label+":", keywordStyle.Render(f.value)))
	}
	return s.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
