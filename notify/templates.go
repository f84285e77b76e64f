// Package notify turns outbox events into SMS texts and fans them out to
// the SMS gateway and the Redis event channel.
package notify

import (
	"fmt"
	"strings"

	"gigmatch/outbox"

	"github.com/tidwall/gjson"
)

// Text is one SMS ready to send.
type Text struct {
	To   string
	Body string
}

const startLayout = "02 Jan 2006"

// Render builds the texts for msg, the primary recipient first. Topics without
// a template, and payloads missing the primary phone, yield no texts.
func Render(msg outbox.Message) []Text {
	p := gjson.ParseBytes(msg.Payload)
	field := func(path string) string { return strings.TrimSpace(p.Get(path).String()) }

	var (
		to, body string
		extra    []Text
	)
	switch msg.Topic {
	case outbox.TopicWorkerRegistered:
		to = field("phone")
		body = fmt.Sprintf("Welcome to GigMatch, %s. Your Shakti score is %.0f.",
			field("name"), p.Get("shakti_score").Float())
	case outbox.TopicEmployerRegistered:
		to = field("phone")
		body = fmt.Sprintf("Welcome to GigMatch, %s. You can now post jobs.", field("name"))
	case outbox.TopicApplicationSubmitted:
		to = field("employer_phone")
		body = fmt.Sprintf("%s applied for %q. Review the application in GigMatch.",
			field("worker_name"), field("job_title"))
	case outbox.TopicApplicationStatusChanged:
		to = field("worker_phone")
		body = fmt.Sprintf("Your application for %q is now %s.", field("job_title"), field("to"))
		if field("to") == "accepted" {
			body += fmt.Sprintf(" Contact %s at %s.", field("employer_name"), field("employer_phone"))
		}
	case outbox.TopicApplicationReminder:
		to = field("worker_phone")
		body = fmt.Sprintf("Reminder: %q starts on %s. Contact %s at %s.",
			field("job_title"), startDate(p), field("employer_name"), field("employer_phone"))
		if employer := field("employer_phone"); employer != "" {
			extra = append(extra, Text{
				To:   employer,
				Body: fmt.Sprintf("Reminder: %s starts %q on %s. Contact them at %s.",
					field("worker_name"), field("job_title"), startDate(p), field("worker_phone")),
			})
		}
	case outbox.TopicApplicationPaid:
		to = field("worker_phone")
		body = fmt.Sprintf("Payment of %.2f for %q has been recorded.",
			p.Get("amount").Float(), field("job_title"))
	default:
		return nil
	}

	if to == "" {
		return nil
	}
	return append([]Text{{To: to, Body: body}}, extra...)
}

func startDate(p gjson.Result) string {
	v := p.Get("start_date")
	if !v.Exists() {
		return "the scheduled date"
	}
	t := v.Time()
	if t.IsZero() {
		return v.String()
	}
	return t.Format(startLayout)
}
