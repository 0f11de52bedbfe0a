// Package notifier delivers SMS messages. Delivery is best-effort: callers
// log failures and never roll back ledger state because of them.
package notifier

import (
	"time"
)

// SMSMessage is the payload sent to gateways and brokers.
type SMSMessage struct {
	ID      string    `json:"id"`
	To      string    `json:"to"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}
