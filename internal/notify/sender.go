package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-admission/internal/config"
)

// Sender hands a message to a transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// NewSender builds the transport selected by cfg.Driver.
func NewSender(cfg config.NotifyConfig, timeout time.Duration, log logrus.FieldLogger) (Sender, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogSender(log), nil
	case "http":
		return NewHTTPSender(cfg.HTTP.BaseURL, &http.Client{Timeout: timeout}), nil
	case "rabbitmq":
		return NewRabbitMQSender(cfg.RabbitMQ, log)
	case "kafka":
		return NewKafkaSender(cfg.Kafka), nil
	case "redis":
		return NewRedisSender(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log logrus.FieldLogger
}

// NewLogSender constructs a LogSender.
func NewLogSender(log logrus.FieldLogger) *LogSender {
	return &LogSender{log: log}
}

// Send logs msg at info level.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.WithFields(logrus.Fields{
		"type":            msg.Type,
		"dedupe_key":      msg.DedupeKey,
		"event_id":        msg.EventID,
		"registration_id": msg.RegistrationID,
		"recipients":      len(msg.Recipients),
	}).Info("notification")
	return nil
}

// Close is a no-op.
func (s *LogSender) Close() error { return nil }
