package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends ride-usage events to a durable RabbitMQ queue. Each call
// opens its own connection, so a broker outage only affects the calls made
// while it lasts.
type Publisher struct {
    url       string
    queueName string
}

func NewPublisher(url, queueName string) *Publisher {
    return &Publisher{url: url, queueName: queueName}
}

// PublishRideUsage publishes ev as persistent JSON. Errors name the failing
// step and are left to the caller to log.
func (p *Publisher) PublishRideUsage(ctx context.Context, ev RideUsageEvent) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("rabbitmq dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := declareUsageQueue(ch, p.queueName); err != nil {
        return fmt.Errorf("rabbitmq declare %s: %w", p.queueName, err)
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    err = ch.PublishWithContext(ctx,
        "",          // default exchange
        p.queueName, // routing key = queue name
        false,       // mandatory
        false,       // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Type:         ev.Event,
            Body:         body,
        })
    if err != nil {
        return fmt.Errorf("rabbitmq publish %s: %w", ev.Event, err)
    }
    return nil
}

// declareUsageQueue is idempotent; durable so messages survive broker restarts.
func declareUsageQueue(ch *amqp.Channel, name string) error {
    _, err := ch.QueueDeclare(name, true, false, false, false, nil)
    return err
}
