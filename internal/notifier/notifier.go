package notifier

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"restaurant-pos/internal/connections/rabbitmq"
)

// Notifier publishes lifecycle events as persistent JSON messages on the
// floor topic exchange. The coordinator treats publishing as best effort.
type Notifier struct {
	mq  *rabbitmq.Client
	log *logrus.Entry
}

func New(mq *rabbitmq.Client, log *logrus.Entry) *Notifier {
	return &Notifier{mq: mq, log: log}
}

func (n *Notifier) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := n.mq.Publish(ctx, rabbitmq.FloorExchange, routingKey, body); err != nil {
		return err
	}
	n.log.WithField("routing_key", routingKey).Debug("event_published")
	return nil
}
