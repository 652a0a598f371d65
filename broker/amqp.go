package broker

import (
	"encoding/json"
	"fmt"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
)

var _ Producer = &AMQPBroker{}

const entitlementExchange string = "entitlement_events"

// AMQPBroker describes a message broker via RabbitMQ
type AMQPBroker struct {
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewAMQPBroker returns a Message Broker over RabbitMQ
func NewAMQPBroker(amqpURI string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		connection: amqpConn,
		channel:    amqpChan,
	}
	if err := broker.setupEntitlementExchange(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot declare exchange for entitlement events")
	}

	return broker, nil
}

func (a *AMQPBroker) setupEntitlementExchange() error {
	return a.channel.ExchangeDeclare(
		entitlementExchange, // name
		"topic",             // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

// PublishEntitlementEvent will publish the event for the notification system to consume
func (a *AMQPBroker) PublishEntitlementEvent(e *Event) error {
	if e == nil {
		return fmt.Errorf("nil Event is invalid")
	}
	body, err := json.Marshal(e)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode event into bytes")
	}
	routingKey := fmt.Sprintf("entitlement.%s", e.Kind)
	if err := a.channel.Publish(
		entitlementExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return extErrors.Wrap(err, "Cannot publish entitlement event")
	}
	return nil
}
