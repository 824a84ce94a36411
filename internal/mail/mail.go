// Package mail abstracts outbound email so delivery backends can be
// swapped by configuration.
package mail

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a single message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the log instead of delivering them.
// Used in development and tests.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender returns a Sender backed by the logger.
func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.log.Info("mail",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
