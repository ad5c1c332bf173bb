package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/publisher"
)

const stepDelay = 300 * time.Millisecond

type stepStatus int

const (
	stepPending stepStatus = iota
	stepActive
	stepDone
	stepFailed
)

type step struct {
	label  string
	status stepStatus
}

const (
	stepValidate = iota
	stepConnect
	stepQueue
)

type SendModel struct {
	steps    []step
	current  int
	err      error
	result   sendResult
	spinner  spinner.Model
	done     bool
	quitting bool

	client *apiClient
	req    domain.JobRequest
}

func NewSendModel(client *apiClient, req domain.JobRequest) *SendModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &SendModel{
		steps: []step{
			{label: "Validating job"},
			{label: "Connecting to server"},
			{label: "Queueing notification"},
		},
		spinner: s,
		client:  client,
		req:     req,
	}
}

type stepResultMsg struct{ err error }

type sendResultMsg struct {
	result sendResult
	err    error
}

func (m *SendModel) Init() tea.Cmd {
	m.steps[stepValidate].status = stepActive
	return tea.Batch(m.spinner.Tick, m.runStep(stepValidate))
}

func (m *SendModel) runStep(i int) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(stepDelay)
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		switch i {
		case stepValidate:
			_, err := publisher.Validate(m.req)
			return stepResultMsg{err: err}
		case stepConnect:
			return stepResultMsg{err: m.client.Health(ctx)}
		default:
			res, err := m.client.Send(ctx, m.req)
			return sendResultMsg{result: res, err: err}
		}
	}
}

func (m *SendModel) fail(err error) (tea.Model, tea.Cmd) {
	m.steps[m.current].status = stepFailed
	m.err = err
	m.done = true
	return m, nil
}

func (m *SendModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || (m.done && msg.String() == "q") {
			m.quitting = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case stepResultMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.steps[m.current].status = stepDone
		m.current++
		m.steps[m.current].status = stepActive
		return m, m.runStep(m.current)
	case sendResultMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.steps[m.current].status = stepDone
		m.result = msg.result
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m *SendModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("NotifyCtl Send") + "\n\n")

	for _, step := range m.steps {
		symbol := " "
		label := step.label

		switch step.status {
		case stepPending:
			symbol = "  "
		case stepActive:
			symbol = m.spinner.View()
			label = lipgloss.NewStyle().Bold(true).Render(label)
		case stepDone:
			symbol = successStyle.Render("✓ ")
		case stepFailed:
			symbol = errorStyle.Render("✗ ")
		}

		s.WriteString(fmt.Sprintf("  %s %s\n", symbol, label))
		if step.status == stepFailed && m.err != nil {
			s.WriteString(fmt.Sprintf("    %s\n", errorStyle.Render(m.err.Error())))
		}
	}

	if m.done {
		if m.err == nil {
			s.WriteString(fmt.Sprintf("\n  %s Notification queued! ID: %s\n", successStyle.Render("DONE"), idStyle.Render(m.result.MessageID)))
		}
		s.WriteString("\n  (Press q to exit)")
	}

	return s.String()
}
