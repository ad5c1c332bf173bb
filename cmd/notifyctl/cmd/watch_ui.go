package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/events"
)

type eventMsg events.DeliveryEvent

type streamClosedMsg struct{ err error }

type WatchModel struct {
	filter streamFilter
	events []events.DeliveryEvent
	err    error
	closed bool
	width  int
	height int
	quit   bool
}

func NewWatchModel(filter streamFilter) *WatchModel {
	return &WatchModel{
		filter: filter,
		events: make([]events.DeliveryEvent, 0),
	}
}

func (m *WatchModel) Init() tea.Cmd {
	return nil
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case eventMsg:
		m.events = append(m.events, events.DeliveryEvent(msg))
		// Keep only what fits in the view
		maxEvents := m.height - 6
		if maxEvents > 0 && len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
	case streamClosedMsg:
		m.closed = true
		m.err = msg.err
	}
	return m, nil
}

func (m *WatchModel) describeFilter() string {
	var parts []string
	if m.filter.UserID != "" {
		parts = append(parts, "user "+m.filter.UserID)
	}
	if m.filter.MessageID != "" {
		parts = append(parts, "message "+m.filter.MessageID)
	}
	if m.filter.Channel != "" {
		parts = append(parts, "channel "+m.filter.Channel)
	}
	if len(parts) == 0 {
		return "all deliveries"
	}
	return strings.Join(parts, ", ")
}

func (m *WatchModel) View() string {
	if m.quit {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("NotifyCtl Watch"))
	s.WriteString(fmt.Sprintf(" - %s\n\n", m.describeFilter()))

	s.WriteString(headerStyle.Render(fmt.Sprintf("%-28s %-12s %-8s %-8s %-30s", "MESSAGE", "USER", "CHANNEL", "STATUS", "DETAIL")))
	s.WriteString("\n")

	for _, e := range m.events {
		status := string(e.Status)
		switch e.Status {
		case domain.DeliveryStatusSent:
			status = sentStyle.Render(fmt.Sprintf("%-8s", status))
		case domain.DeliveryStatusFailed:
			status = failedStyle.Render(fmt.Sprintf("%-8s", status))
		}

		detail := e.DeliveryID
		if e.Error != "" {
			detail = e.Error
		}

		s.WriteString(fmt.Sprintf("%-28s %-12s %-8s %s %-30s\n",
			truncate(e.MessageID, 28),
			truncate(e.UserID, 12),
			e.Channel,
			status,
			truncate(detail, 40),
		))
	}

	if len(m.events) == 0 && !m.closed {
		s.WriteString("\n  Waiting for events...\n")
	}
	if m.closed {
		msg := "stream closed"
		if m.err != nil {
			msg += ": " + m.err.Error()
		}
		s.WriteString("\n  " + errorStyle.Render(msg) + "\n")
	}

	s.WriteString("\n  (Press q to quit)")

	return s.String()
}

func runWatchUI(ctx context.Context, body io.Reader) error {
	m := NewWatchModel(watchFilter)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	go func() {
		err := readEvents(body, func(name string, data []byte) error {
			if name != "delivery" {
				return nil
			}
			var ev events.DeliveryEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return err
			}
			p.Send(eventMsg(ev))
			return nil
		})
		p.Send(streamClosedMsg{err: err})
	}()

	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
