package notify

import (
	"context"

	"github.com/spec-kit/feedback-service/internal/events"
)

// Mailer renders events and hands them to a transport.
type Mailer struct {
	renderer  *Renderer
	transport Transport
}

// NewMailer builds a Mailer.
func NewMailer(renderer *Renderer, transport Transport) *Mailer {
	return &Mailer{renderer: renderer, transport: transport}
}

// Send implements events.Sender.
func (m *Mailer) Send(ctx context.Context, event events.Event) error {
	msg, err := m.renderer.Render(event)
	if err != nil {
		return err
	}
	return m.transport.Deliver(ctx, msg)
}
