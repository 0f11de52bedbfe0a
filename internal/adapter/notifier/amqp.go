package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher is the part of *amqp091.Channel used for publishing.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPNotifier publishes SMS requests to a topic exchange for a downstream
// delivery worker.
type AMQPNotifier struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	publisher  Publisher
	exchange   string
	routingKey string
	log        zerolog.Logger
}

// DialAMQP connects to the broker, declares the durable topic exchange and
// returns a ready notifier.
func DialAMQP(rawURL, exchange, routingKey string, log zerolog.Logger) (*AMQPNotifier, error) {
	cleanURL, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{
		Dial: amqp091.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Str("routing_key", routingKey).Msg("AMQP SMS publisher ready")

	n := NewAMQPNotifier(channel, exchange, routingKey, log)
	n.conn = conn
	n.channel = channel
	return n, nil
}

// NewAMQPNotifier wraps an existing publisher.
func NewAMQPNotifier(p Publisher, exchange, routingKey string, log zerolog.Logger) *AMQPNotifier {
	return &AMQPNotifier{
		publisher:  p,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log,
	}
}

// Send publishes one persistent SMS request.
func (n *AMQPNotifier) Send(ctx context.Context, phone, message string) error {
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

	err = n.publisher.PublishWithContext(ctx,
		n.exchange,   // exchange
		n.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.SentAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("sms: publish: %w", err)
	}

	n.log.Debug().Str("sms_id", msg.ID).Str("exchange", n.exchange).Msg("sms: published")
	return nil
}

// Close closes the channel and connection opened by DialAMQP.
func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
