package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/segmentio/kafka-go"

    "github.com/iliyamo/ride-queue-auth/internal/logger"
)

// QueueEventHandler applies one queue-server event locally.
type QueueEventHandler interface {
    HandleQueueEvent(ctx context.Context, ev QueueServerEvent) error
}

// QueueEventConsumer reads queue-server events from Kafka. Offsets are
// committed after handling; a message whose handler keeps failing is logged
// and skipped so one bad event cannot stall the partition.
type QueueEventConsumer struct {
    reader     *kafka.Reader
    handler    QueueEventHandler
    maxRetries int
    log        *logger.Logger
}

func NewQueueEventConsumer(brokers []string, topic, groupID string, h QueueEventHandler, log *logger.Logger) *QueueEventConsumer {
    reader := kafka.NewReader(kafka.ReaderConfig{
        Brokers:        brokers,
        Topic:          topic,
        GroupID:        groupID,
        MinBytes:       1,
        MaxBytes:       10e6,
        MaxWait:        time.Second,
        CommitInterval: 0, // commit synchronously
        StartOffset:    kafka.LastOffset,
        Logger:         kafka.LoggerFunc(func(msg string, args ...any) {}),
        ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
            log.Warn("kafka reader", "detail", fmt.Sprintf(msg, args...))
        }),
    })
    return &QueueEventConsumer{reader: reader, handler: h, maxRetries: 3, log: log}
}

// Run consumes until ctx is cancelled.
func (c *QueueEventConsumer) Run(ctx context.Context) error {
    for {
        msg, err := c.reader.FetchMessage(ctx)
        if err != nil {
            if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
                return nil
            }
            c.log.Warn("kafka fetch failed", "error", err)
            select {
            case <-ctx.Done():
                return nil
            case <-time.After(time.Second):
            }
            continue
        }

        if err := c.process(ctx, msg.Value); err != nil {
            c.log.Error("queue event dropped", "offset", msg.Offset, "partition", msg.Partition, "error", err)
        }
        if err := c.reader.CommitMessages(ctx, msg); err != nil {
            c.log.Warn("kafka commit failed", "offset", msg.Offset, "error", err)
        }
    }
}

// process decodes one payload and hands it to the handler, retrying
// handler failures a bounded number of times.
func (c *QueueEventConsumer) process(ctx context.Context, value []byte) error {
    ev, err := DecodeQueueServerEvent(value)
    if err != nil {
        return err
    }
    for attempt := 0; ; attempt++ {
        err = c.handler.HandleQueueEvent(ctx, ev)
        if err == nil || attempt >= c.maxRetries || ctx.Err() != nil {
            return err
        }
        c.log.Warn("queue event handling failed, retrying", "attempt", attempt+1, "error", err)
        time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
    }
}

func (c *QueueEventConsumer) Close() error { return c.reader.Close() }

// DecodeQueueServerEvent parses and sanity-checks a Kafka payload.
func DecodeQueueServerEvent(value []byte) (QueueServerEvent, error) {
    var ev QueueServerEvent
    if err := json.Unmarshal(value, &ev); err != nil {
        return ev, fmt.Errorf("unmarshal queue event: %w", err)
    }
    if ev.UserID == 0 || ev.RideID == 0 {
        return ev, fmt.Errorf("queue event missing userId or rideId: %s", value)
    }
    return ev, nil
}
