package querylog

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type DriverRabbitMQConfig struct {
	Host string
	Pass string
	Port int
	User string
}

func NewDriverRabbitMQ(config DriverRabbitMQConfig) (Driver, error) {
	connection, err := amqp.Dial(fmt.Sprintf("amqp://%s:%s@%s:%d", config.User, config.Pass, config.Host, config.Port))
	if err != nil {
		return nil, err
	}

	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, err
	}

	return &driverRabbitMQ{
		connection: connection,
		channel:    channel,
	}, nil
}

type driverRabbitMQ struct {
	connection *amqp.Connection
	channel    *amqp.Channel
}

func (driver *driverRabbitMQ) CreateTopic(ctx context.Context, topic string) error {
	_, err := driver.channel.QueueDeclare(
		topic, // name
		false, // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)

	return err
}

func (driver *driverRabbitMQ) Publish(ctx context.Context, topic string, payload []byte) error {
	return driver.channel.PublishWithContext(
		ctx,
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload,
		},
	)
}

func (driver *driverRabbitMQ) Consume(
	ctx context.Context,
	topic string,
	handler func(ctx context.Context, payload []byte) error,
) error {
	deliveries, err := driver.channel.ConsumeWithContext(
		ctx,
		topic, // queue
		"",    // consumer
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return err
	}

	for delivery := range deliveries {
		if err := handler(ctx, delivery.Body); err != nil {
			return err
		}
	}

	return ctx.Err()
}
