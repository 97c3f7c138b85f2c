// Package ingest pulls bounded windows of raw diagnostic event bodies
// from a live streaming source. It hands raw bodies to the capture
// layer untouched; validating individual records is not its job.
package ingest

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Config configures the live capture source.
type Config struct {
	// URL is the AMQP connection URL of the streaming namespace.
	URL string `yaml:"url"`
	// Queue is the entity the exported metric events are delivered to.
	Queue string `yaml:"queue"`
	// Window bounds how long one live capture listens for events.
	// Defaults to 10s.
	Window time.Duration `yaml:"window"`
}

// DefaultWindow is used when no capture window is configured.
const DefaultWindow = 10 * time.Second

// AMQPAdapter consumes raw event bodies from an AMQP queue for a
// bounded window. One Capture call performs one dial/consume/teardown
// cycle; the adapter holds no connection between calls.
type AMQPAdapter struct {
	log logrus.FieldLogger
	cfg Config
}

// NewAMQPAdapter creates a live-source adapter for the given queue.
func NewAMQPAdapter(log logrus.FieldLogger, cfg Config) *AMQPAdapter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	return &AMQPAdapter{
		log: log.WithField("source", "amqp"),
		cfg: cfg,
	}
}

// Source describes the live source for report headers.
func (a *AMQPAdapter) Source() string {
	return a.cfg.Queue
}

// Capture collects every delivery received on the queue until the
// window elapses or the channel closes, whichever comes first. Window
// expiry is success: whatever was collected so far is returned rather
// than failing the run. Channel-level delivery errors count as
// transport failures.
func (a *AMQPAdapter) Capture(
	ctx context.Context,
	window time.Duration,
) ([][]byte, int, error) {
	if window <= 0 {
		window = a.cfg.Window
	}

	conn, err := amqp.Dial(a.cfg.URL)
	if err != nil {
		return nil, 0, fmt.Errorf("dialing event source: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return nil, 0, fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	deliveries, err := ch.Consume(
		a.cfg.Queue,
		"",    // consumer tag
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("consuming queue %s: %w", a.cfg.Queue, err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	a.log.WithFields(logrus.Fields{
		"queue":  a.cfg.Queue,
		"window": window,
	}).Info("Listening for events")

	var (
		bodies   [][]byte
		failures int
	)

	for {
		select {
		case <-ctx.Done():
			a.log.WithField("bodies", len(bodies)).
				Info("Capture window elapsed")

			return bodies, failures, nil
		case amqpErr := <-closed:
			if amqpErr != nil {
				failures++

				a.log.WithError(amqpErr).
					Warn("Channel closed before window elapsed")
			}

			return bodies, failures, nil
		case d, ok := <-deliveries:
			if !ok {
				return bodies, failures, nil
			}

			bodies = append(bodies, d.Body)
		}
	}
}
