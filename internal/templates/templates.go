// Package templates renders channel content for each event category.
package templates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	"text/template"

	"github.com/lupppig/notifyq/internal/domain"
)

// FallbackCategory is used when a category has no template set.
const FallbackCategory = domain.CategoryBooking

// Rendered is the content for every channel of one job.
type Rendered struct {
	Email domain.Content
	SMS   domain.Content
	Push  domain.Content
}

// For returns the content of a single channel.
func (r Rendered) For(c domain.Channel) domain.Content {
	switch c {
	case domain.ChannelEmail:
		return r.Email
	case domain.ChannelSMS:
		return r.SMS
	case domain.ChannelPush:
		return r.Push
	}
	return domain.Content{}
}

type set struct {
	emailSubject string
	emailBody    *htmltemplate.Template
	sms          *template.Template
	pushTitle    string
	pushBody     *template.Template
}

var sets = map[domain.Category]*set{
	domain.CategoryBooking: {
		emailSubject: "Booking Confirmation",
		emailBody: mustHTML("booking", `
<h2>Booking Confirmation</h2>
<p>Your booking has been confirmed!</p>
<p><strong>Booking ID:</strong> {{.bookingId}}</p>
<p><strong>Hotel:</strong> {{.hotelName}}</p>
<p><strong>Check-in:</strong> {{.checkIn}}</p>
<p><strong>Check-out:</strong> {{.checkOut}}</p>
<p><strong>Amount:</strong> ${{.amount}}</p>
`),
		sms:       mustText("booking.sms", `Booking confirmed! ID: {{.bookingId}}, Hotel: {{.hotelName}}, Amount: ${{.amount}}`),
		pushTitle: "Booking Confirmed",
		pushBody:  mustText("booking.push", `Your booking at {{.hotelName}} has been confirmed`),
	},
	domain.CategoryWallet: {
		emailSubject: "Wallet Transaction",
		emailBody: mustHTML("wallet", `
<h2>Wallet Transaction</h2>
<p><strong>Transaction ID:</strong> {{.transactionId}}</p>
<p><strong>Amount:</strong> ${{.amount}}</p>
<p><strong>Balance:</strong> ${{.balance}}</p>
<p><strong>Description:</strong> {{.description}}</p>
`),
		sms:       mustText("wallet.sms", `Wallet: {{.description}} - ${{.amount}}. Balance: ${{.balance}}`),
		pushTitle: "Wallet Transaction",
		pushBody:  mustText("wallet.push", `{{.description}}: ${{.amount}}`),
	},
	domain.CategoryExpense: {
		emailSubject: "Expense Update",
		emailBody: mustHTML("expense", `
<h2>Expense {{.status}}</h2>
<p><strong>Expense ID:</strong> {{.expenseId}}</p>
<p><strong>Amount:</strong> ${{.amount}}</p>
<p><strong>Category:</strong> {{.category}}</p>
<p><strong>Description:</strong> {{.description}}</p>
<p><strong>Status:</strong> {{.status}}</p>
`),
		sms:       mustText("expense.sms", `Expense {{.status}}: ${{.amount}} - {{.description}}`),
		pushTitle: "Expense Update",
		pushBody:  mustText("expense.push", `Your expense of ${{.amount}} has been {{.status}}`),
	},
	domain.CategoryRewards: {
		emailSubject: "Rewards Update",
		emailBody: mustHTML("rewards", `
<h2>Rewards Update</h2>
<p><strong>Reward ID:</strong> {{.rewardId}}</p>
<p><strong>Points:</strong> {{.points}}</p>
<p><strong>Total Points:</strong> {{.totalPoints}}</p>
<p><strong>Source:</strong> {{.source}}</p>
`),
		sms:       mustText("rewards.sms", `Rewards: +{{.points}} points from {{.source}}. Total: {{.totalPoints}}`),
		pushTitle: "Rewards Update",
		pushBody:  mustText("rewards.push", `You earned {{.points}} points from {{.source}}`),
	},
}

func mustHTML(name, src string) *htmltemplate.Template {
	return htmltemplate.Must(htmltemplate.New(name).Option("missingkey=zero").Parse(strings.TrimSpace(src)))
}

func mustText(name, src string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=zero").Parse(src))
}

// Render produces the content of every channel. Output depends only on its
// inputs; missing payload fields render as empty strings.
func Render(c domain.Category, payload domain.Payload) (Rendered, error) {
	s, ok := sets[c]
	if !ok {
		slog.Warn("no templates for category, using fallback",
			slog.String("category", string(c)),
			slog.String("fallback", string(FallbackCategory)),
		)
		s = sets[FallbackCategory]
	}

	data := make(map[string]string, len(payload))
	for k := range payload {
		data[k] = payload.String(k)
	}

	var out Rendered
	var buf bytes.Buffer

	if err := s.emailBody.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render email: %w", err)
	}
	out.Email = domain.Content{Subject: s.emailSubject, Body: buf.String()}

	buf.Reset()
	if err := s.sms.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render sms: %w", err)
	}
	out.SMS = domain.Content{Body: buf.String()}

	buf.Reset()
	if err := s.pushBody.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render push: %w", err)
	}
	out.Push = domain.Content{Title: s.pushTitle, Body: buf.String()}

	return out, nil
}
