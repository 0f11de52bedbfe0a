package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier simulates SMS delivery by writing the message to the log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Send logs the message and always succeeds.
func (n *LogNotifier) Send(_ context.Context, phone, message string) error {
	n.log.Info().
		Str("to", phone).
		Str("sms", message).
		Msg("SMS dispatched (simulated)")
	return nil
}
