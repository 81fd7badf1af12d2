// Package kitchen consumes order lifecycle events from the kitchen queue and
// turns them into tickets for the line.
package kitchen

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"restaurant-pos/internal/domain"
)

// Worker drains order events, acknowledging each ticket once handled.
// Malformed payloads are rejected without requeue so they dead-letter.
type Worker struct {
	log *logrus.Entry
}

func New(log *logrus.Entry) *Worker {
	return &Worker{log: log}
}

// Run processes deliveries until the context is cancelled or the delivery
// channel closes.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handle(d)
		}
	}
}

func (w *Worker) handle(d amqp.Delivery) {
	var ev domain.OrderEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		w.log.WithError(err).WithField("routing_key", d.RoutingKey).Warn("ticket_rejected")
		_ = d.Nack(false, false)
		return
	}
	w.log.WithFields(logrus.Fields{
		"order_id":    ev.OrderID,
		"table_id":    ev.TableID,
		"status":      ev.Status,
		"routing_key": d.RoutingKey,
	}).Info("ticket_received")
	_ = d.Ack(false)
}
