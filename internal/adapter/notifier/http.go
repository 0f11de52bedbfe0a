package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultRetryIntervals are the waits between delivery attempts.
var defaultRetryIntervals = []time.Duration{
	500 * time.Millisecond,
	2 * time.Second,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPNotifier posts messages to an SMS gateway as JSON, retrying on
// transport errors and non-2xx responses until ctx expires.
type HTTPNotifier struct {
	url            string
	client         HTTPClient
	retryIntervals []time.Duration
	log            zerolog.Logger
}

// NewHTTPNotifier creates an HTTPNotifier posting to url.
func NewHTTPNotifier(url string, client HTTPClient, log zerolog.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		url:            url,
		client:         client,
		retryIntervals: defaultRetryIntervals,
		log:            log,
	}
}

// Send delivers one message.
func (n *HTTPNotifier) Send(ctx context.Context, phone, message string) error {
	msg := SMSMessage{
		ID:      uuid.NewString(),
		To:      phone,
		Message: message,
		SentAt:  time.Now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sms: marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(n.retryIntervals); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(n.retryIntervals[attempt-1]):
			case <-ctx.Done():
				return fmt.Errorf("sms: giving up after %d attempts: %w", attempt, ctx.Err())
			}
		}

		lastErr = n.post(ctx, body)
		if lastErr == nil {
			n.log.Debug().Str("sms_id", msg.ID).Int("attempt", attempt+1).Msg("sms: delivered")
			return nil
		}
		n.log.Warn().Err(lastErr).Str("sms_id", msg.ID).Int("attempt", attempt+1).Msg("sms: delivery failed")
	}
	return fmt.Errorf("sms: all attempts exhausted: %w", lastErr)
}

func (n *HTTPNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway responded %d", resp.StatusCode)
	}
	return nil
}
