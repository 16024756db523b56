package service

import (
	"context"
	"encoding/json"

	"docflash-be/internal/pkg/logger"
	"docflash-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventRelay forwards events to an external bus. *nats.Publisher implements it.
type EventRelay interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	relay      EventRelay
	logger     logger.ILogger
}

// NewConsumerService logs every document lifecycle event and relays it when
// relay is non-nil.
func NewConsumerService(subscriber message.Subscriber, topicName string, relay EventRelay, log logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		relay:      relay,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var event events.BaseEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.logger.Error("Events", "Failed to decode event", map[string]interface{}{"message_id": msg.UUID, "error": err.Error()})
		// undecodable messages never get better
		msg.Ack()
		return
	}

	details := map[string]interface{}{"type": event.Type}
	for k, v := range event.Data {
		details[k] = v
	}
	cs.logger.Info("Events", "Document event", details)

	if cs.relay != nil {
		if err := cs.relay.Publish(ctx, event); err != nil {
			// the relay is best-effort; NATS reconnects on its own
			cs.logger.Warn("Events", "Failed to relay event", map[string]interface{}{"type": event.Type, "error": err.Error()})
		}
	}
	msg.Ack()
}
