package notify

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"summitpass.id/app/internal/mailer"
)

// renderEmail builds the customer email for a topic. ok is false for topics
// that have no email.
func renderEmail(topic string, payload []byte) (mailer.Email, bool, error) {
	switch topic {
	case TopicRegistrationConfirmed:
		var p RegistrationConfirmed
		if err := json.Unmarshal(payload, &p); err != nil {
			return mailer.Email{}, false, err
		}
		if p.ContactEmail == "" {
			return mailer.Email{}, false, nil
		}
		return registrationConfirmedEmail(p), true, nil

	case TopicPrivateTripPaid:
		var p PrivateTripPaid
		if err := json.Unmarshal(payload, &p); err != nil {
			return mailer.Email{}, false, err
		}
		if p.CustomerEmail == "" {
			return mailer.Email{}, false, nil
		}
		return privateTripPaidEmail(p), true, nil
	}
	return mailer.Email{}, false, nil
}

func registrationConfirmedEmail(p RegistrationConfirmed) mailer.Email {
	subject := "Your trip is confirmed - " + p.TripTitle
	text := fmt.Sprintf("Hi %s,\n\nYour registration for %s on %s is confirmed.\n"+
		"Participants: %d\nTotal paid: %s\nOrder: %s\n\nSee you on the trail!\n",
		p.ContactName, p.TripTitle, p.ScheduleDate, p.ParticipantCount, FormatIDR(p.TotalPrice), p.OrderID)

	body := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Trip confirmed</h2>
    <p>Hi ` + html.EscapeString(p.ContactName) + `,</p>
    <p>Your registration for <strong>` + html.EscapeString(p.TripTitle) + `</strong> on ` + html.EscapeString(p.ScheduleDate) + ` is confirmed.</p>
    <p><strong>Participants:</strong> ` + strconv.Itoa(p.ParticipantCount) + `</p>
    <p><strong>Total paid:</strong> ` + FormatIDR(p.TotalPrice) + `</p>
    <p><strong>Order:</strong> ` + html.EscapeString(p.OrderID) + `</p>
    <p>See you on the trail!</p>
  </body>
</html>
`
	return mailer.Email{
		To:       []string{p.ContactEmail},
		Subject:  subject,
		TextBody: text,
		HTMLBody: body,
	}
}

func privateTripPaidEmail(p PrivateTripPaid) mailer.Email {
	subject := "Payment received - " + p.Title
	text := fmt.Sprintf("Hi %s,\n\nWe received %s for your private trip %s (order %s).\n"+
		"Our team will contact you with the final itinerary.\n",
		p.CustomerName, FormatIDR(p.Amount), p.Title, p.OrderID)

	body := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Payment received</h2>
    <p>Hi ` + html.EscapeString(p.CustomerName) + `,</p>
    <p>We received <strong>` + FormatIDR(p.Amount) + `</strong> for your private trip <strong>` + html.EscapeString(p.Title) + `</strong>.</p>
    <p><strong>Order:</strong> ` + html.EscapeString(p.OrderID) + `</p>
    <p>Our team will contact you with the final itinerary.</p>
  </body>
</html>
`
	return mailer.Email{
		To:       []string{p.CustomerEmail},
		Subject:  subject,
		TextBody: text,
		HTMLBody: body,
	}
}

// FormatIDR renders 3000000 as "Rp3.000.000".
func FormatIDR(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("Rp")
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte('.')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
