package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Transport hands a rendered message to a delivery provider.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogTransport logs messages instead of sending them. It is used when no
// provider is configured.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport builds a LogTransport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Deliver logs the envelope of msg.
func (t *LogTransport) Deliver(_ context.Context, msg Message) error {
	t.logger.Info("email delivery skipped; provider not configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
