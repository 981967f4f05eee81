package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-admission/internal/config"
)

// amqpChannel is the part of *amqp.Channel the sender uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// amqpDialer opens a connection and a channel with the queue declared.
type amqpDialer func() (amqpChannel, io.Closer, error)

var errSenderClosed = errors.New("sender closed")

// RabbitMQSender publishes persistent messages to a durable queue through the
// default exchange. A channel or connection that closes underneath it is
// replaced on the next Send.
type RabbitMQSender struct {
	dial  amqpDialer
	queue string
	log   logrus.FieldLogger

	mu       sync.Mutex
	conn     io.Closer
	channel  amqpChannel
	closures chan *amqp.Error
	shut     bool
}

// NewRabbitMQSender connects to the broker and declares cfg.Queue.
func NewRabbitMQSender(cfg config.RabbitMQConfig, log logrus.FieldLogger) (*RabbitMQSender, error) {
	s := newRabbitMQSender(dialRabbitMQ(cfg), cfg.Queue, log)
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func newRabbitMQSender(dial amqpDialer, queue string, log logrus.FieldLogger) *RabbitMQSender {
	return &RabbitMQSender{dial: dial, queue: queue, log: log}
}

func dialRabbitMQ(cfg config.RabbitMQConfig) amqpDialer {
	return func() (amqpChannel, io.Closer, error) {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}

		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}

		_, err = channel.QueueDeclare(
			cfg.Queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("declare queue: %w", err)
		}
		return channel, conn, nil
	}
}

// connect replaces the current session. Callers hold mu, except the
// constructor.
func (s *RabbitMQSender) connect() error {
	channel, conn, err := s.dial()
	if err != nil {
		return err
	}
	s.channel, s.conn = channel, conn
	s.closures = channel.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

// reset drops the current session so the next Send dials again.
func (s *RabbitMQSender) reset() {
	if s.channel != nil {
		_ = s.channel.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.channel, s.conn, s.closures = nil, nil, nil
}

// ensure returns with a usable channel or the dial error.
func (s *RabbitMQSender) ensure() error {
	if s.channel != nil {
		select {
		case amqpErr := <-s.closures:
			s.log.WithField("reason", amqpErr).Warn("rabbitmq channel closed, reconnecting")
			s.reset()
		default:
			return nil
		}
	}
	return s.connect()
}

// Send publishes msg, reconnecting first if the channel was closed.
func (s *RabbitMQSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shut {
		return errSenderClosed
	}
	if err := s.ensure(); err != nil {
		return err
	}

	err = s.channel.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.DedupeKey,
		Type:         string(msg.Type),
		Timestamp:    msg.SentAt,
		Body:         body,
	})
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			s.reset()
		}
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close closes the channel and connection. Later sends fail.
func (s *RabbitMQSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shut = true
	if s.channel == nil {
		return nil
	}
	chErr := s.channel.Close()
	connErr := s.conn.Close()
	s.channel, s.conn, s.closures = nil, nil, nil
	return errors.Join(chErr, connErr)
}
