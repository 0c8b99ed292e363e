// Package notify announces finished pipeline stages on an AMQP exchange.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"spendlens/src/logger"
)

// StageCompleted is published after a stage has written its artifacts.
type StageCompleted struct {
	RunID       string    `json:"run_id"`
	Stage       string    `json:"stage"`
	Rows        int       `json:"rows"`
	Files       []string  `json:"files"`
	CompletedAt time.Time `json:"completed_at"`
}

func NewStageCompleted(runID, stage string, rows int, files ...string) StageCompleted {
	if files == nil {
		files = []string{}
	}
	return StageCompleted{
		RunID:       runID,
		Stage:       stage,
		Rows:        rows,
		Files:       files,
		CompletedAt: time.Now().UTC(),
	}
}

func (m StageCompleted) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func stageCompletedFromJSON(data []byte) (StageCompleted, error) {
	var msg StageCompleted
	err := json.Unmarshal(data, &msg)
	return msg, err
}

type Notifier interface {
	Publish(ctx context.Context, msg StageCompleted) error
	Close() error
}

// Nop discards every message. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, StageCompleted) error { return nil }
func (Nop) Close() error                                 { return nil }

type AMQPNotifier struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// New returns an AMQP notifier, or Nop when url is empty.
func New(url, exchange string) (Notifier, error) {
	if url == "" {
		return Nop{}, nil
	}
	return Dial(url, exchange)
}

func Dial(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPNotifier{conn: conn, channel: channel, exchange: exchange}, nil
}

// Publish sends msg with the stage name as routing key.
func (n *AMQPNotifier) Publish(ctx context.Context, msg StageCompleted) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.channel.PublishWithContext(
		ctx,
		n.exchange, // exchange
		msg.Stage,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.CompletedAt,
			MessageId:    msg.RunID + "/" + msg.Stage,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("exchange", n.exchange).
		Str("stage", msg.Stage).
		Msg("Published stage completion")
	return nil
}

func (n *AMQPNotifier) Close() error {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// Announce publishes msg and logs a failure instead of returning it. The
// stage's files are already in place by the time it is called.
func Announce(ctx context.Context, n Notifier, msg StageCompleted) {
	if err := n.Publish(ctx, msg); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("stage", msg.Stage).
			Msg("Failed to publish stage completion")
	}
}
