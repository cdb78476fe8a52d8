package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/general/contracts"
	"ride-driver/internal/ports"
)

const producerName = "driver-agent"

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(contracts.ExchangeDriverTopic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeDriverTopic, err)
	}
	return nil
}

// StatusPublisher announces OFFLINE/AVAILABLE/BUSY on driver.status.{id}.
type StatusPublisher struct {
	client *Client
	now    func() time.Time
}

func NewStatusPublisher(client *Client) *StatusPublisher {
	return &StatusPublisher{client: client, now: time.Now}
}

var _ ports.StatusPublisher = (*StatusPublisher)(nil)

func (p *StatusPublisher) PublishStatus(ctx context.Context, msg contracts.DriverStatusMessage) error {
	routingKey, body, err := encodeStatus(msg, p.now())
	if err != nil {
		return err
	}
	return p.client.publish(ctx, contracts.ExchangeDriverTopic, routingKey, body)
}

// encodeStatus validates msg and fills the envelope fields left empty.
func encodeStatus(msg contracts.DriverStatusMessage, now time.Time) (string, []byte, error) {
	if msg.DriverID == "" {
		return "", nil, errors.New("status message has no driver id")
	}
	status, err := driver.ParseDriverStatus(msg.Status)
	if err != nil {
		return "", nil, err
	}
	msg.Status = status.String()

	now = now.UTC()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.NewString()
	}
	if msg.Producer == "" {
		msg.Producer = producerName
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", nil, err
	}
	return contracts.DriverStatusRoutingKey(msg.DriverID), body, nil
}
