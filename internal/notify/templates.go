package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/events"
)

const previewLength = 100

var templates = template.Must(template.New("mail").Parse(`
{{define "confirmation"}}<h2>Your {{.Type}} has been received</h2>
<p>ID: <strong>{{.CardID}}</strong></p>
<a href="{{.Link}}">View Details</a>
<p>We'll notify you when there are updates.</p>{{end}}

{{define "admin_notify"}}<h2>New {{.Type}} submitted</h2>
<p><strong>ID:</strong> {{.CardID}}</p>
<p><strong>User:</strong> {{.Submitter}}</p>
{{if .Category}}<p><strong>Category:</strong> {{.Category}}</p>{{end}}
{{if .Rating}}<p><strong>Rating:</strong> {{.Rating}}/5</p>{{end}}
<p><strong>Priority:</strong> {{.Priority}}</p>
<p><strong>Content:</strong> {{.Preview}}</p>
<a href="{{.Link}}">Review in Admin Dashboard</a>{{end}}

{{define "status_update"}}<h2>{{.Type}} {{.CardID}} is now {{.Status}}</h2>
{{if .Response}}<p><strong>Response:</strong> {{.Response}}</p>{{end}}
<a href="{{.Link}}">View Details</a>{{end}}

{{define "chat_message"}}<h2>New message on {{.CardID}}</h2>
<p><strong>From:</strong> {{.From}}</p>
<p>{{.Preview}}</p>
<a href="{{.Link}}">Reply</a>{{end}}
`))

type templateData struct {
	Type      string
	CardID    string
	Link      string
	Submitter string
	Category  string
	Rating    int
	Priority  string
	Preview   string
	Status    string
	Response  string
	From      string
}

// Renderer turns events into messages. Links point at the submitter or
// admin frontends depending on the event's audience.
type Renderer struct {
	frontendURL string
	adminURL    string
}

// NewRenderer builds a Renderer.
func NewRenderer(frontendURL, adminURL string) *Renderer {
	return &Renderer{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		adminURL:    strings.TrimRight(adminURL, "/"),
	}
}

// Render produces the message for event.
func (r *Renderer) Render(event events.Event) (Message, error) {
	meta := event.Meta()
	data := templateData{
		Type:   string(meta.TicketType),
		CardID: meta.CardID,
		Link:   r.link(meta),
	}
	var subject string

	switch e := event.(type) {
	case events.Confirmation:
		subject = fmt.Sprintf("%s Received: %s", titleCase(data.Type), meta.CardID)
	case events.AdminNotify:
		subject = fmt.Sprintf("New %s: %s", data.Type, meta.CardID)
		data.Submitter = e.SubmitterEmail
		if e.IsAnonymous || data.Submitter == "" {
			data.Submitter = "Anonymous"
		}
		if e.Category != nil {
			data.Category = *e.Category
			if e.Department != nil {
				data.Category = *e.Department + " / " + data.Category
			}
		}
		if e.Rating != nil {
			data.Rating = int(*e.Rating)
		}
		data.Priority = string(e.Priority)
		data.Preview = preview(e.Content)
	case events.StatusUpdate:
		subject = fmt.Sprintf("%s %s: %s", titleCase(data.Type), meta.CardID, statusLabel(e.Status))
		data.Status = statusLabel(e.Status)
		if e.AdminResponse != nil {
			data.Response = *e.AdminResponse
		}
	case events.ChatMessage:
		subject = fmt.Sprintf("New message on %s", meta.CardID)
		data.From = "Submitter"
		if e.FromAdmin {
			data.From = "Support team"
		}
		data.Preview = preview(e.Message)
	default:
		return Message{}, fmt.Errorf("unsupported event %T", event)
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(event.Kind()), data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", event.Kind(), err)
	}
	return Message{To: meta.To, Subject: subject, HTML: body.String()}, nil
}

func (r *Renderer) link(meta events.Envelope) string {
	if meta.Audience == events.AudienceAdmin {
		return fmt.Sprintf("%s/feedback/%s", r.adminURL, meta.CardID)
	}
	return fmt.Sprintf("%s/feedback/%s", r.frontendURL, meta.CardID)
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "..."
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}

func statusLabel(status domain.TicketStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}
