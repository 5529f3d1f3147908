package mail

import (
	"context"

	"go.uber.org/zap"
)

type logMailer struct {
	from   string
	logger *zap.Logger
}

// NewLogMailer returns a Mailer that only logs outgoing messages. It is meant
// for local development where no provider credentials exist.
func NewLogMailer(from string, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logMailer{from: from, logger: logger}
}

func (m *logMailer) Send(_ context.Context, msg Message) error {
	from, recipients, err := prepareEnvelope("log", msg, m.from)
	if err != nil {
		return err
	}
	m.logger.Info("email suppressed",
		zap.String("from", from),
		zap.Strings("to", recipients),
		zap.String("subject", msg.Subject),
	)
	return nil
}
