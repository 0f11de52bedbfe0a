package notifier

import (
	"fmt"
	"net/http"

	"mobile-money-ledger/config"
	"mobile-money-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// New builds the notifier selected by cfg.Driver. The returned close
// function releases broker resources and is never nil.
func New(cfg config.SMSConfig, log zerolog.Logger) (ports.Notifier, func(), error) {
	log = log.With().Str("sms_driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case "", "log":
		return NewLogNotifier(log), func() {}, nil
	case "http":
		client := &http.Client{Timeout: cfg.Timeout}
		return NewHTTPNotifier(cfg.GatewayURL, client, log), func() {}, nil
	case "amqp":
		n, err := DialAMQP(cfg.AMQPURL, cfg.Exchange, cfg.RoutingKey, log)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sms driver %q", cfg.Driver)
	}
}
