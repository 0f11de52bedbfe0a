package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// SMSDispatcher sends notifications off the request goroutine. Delivery
// failures are logged and counted, never returned.
type SMSDispatcher struct {
	notifier ports.Notifier
	metrics  ports.Metrics
	timeout  time.Duration
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewSMSDispatcher creates a dispatcher bounding every send by timeout.
func NewSMSDispatcher(n ports.Notifier, m ports.Metrics, timeout time.Duration, log zerolog.Logger) *SMSDispatcher {
	return &SMSDispatcher{
		notifier: n,
		metrics:  m,
		timeout:  timeout,
		log:      log,
	}
}

// Dispatch queues message for phone and returns immediately.
func (d *SMSDispatcher) Dispatch(phone, message string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Send(ctx, phone, message); err != nil {
			d.metrics.ObserveNotification(ports.OutcomeFailure)
			d.log.Warn().Err(err).Str("phone", phone).Msg("sms delivery failed")
			return
		}
		d.metrics.ObserveNotification(ports.OutcomeSuccess)
	}()
}

// Wait blocks until every dispatched message has been attempted.
func (d *SMSDispatcher) Wait() {
	d.wg.Wait()
}

func otpMessage(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your activation code is %s. It expires in %d minutes.", code, int(ttl.Minutes()))
}

func loginMessage(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your sign-in code is %s. It expires in %d minutes. Never share it.", code, int(ttl.Minutes()))
}

func paymentMessage(r *domain.PaymentReceipt) string {
	return fmt.Sprintf("Payment of %s confirmed. Ref %s. New balance %s.",
		r.AmountDisplay, r.Reference, domain.FormatAmount(r.NewClientBalance))
}
