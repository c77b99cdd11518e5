package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/ride-queue-auth/internal/logger"
)

// AuditConsumer drains the ride-usage queue and appends one line per event
// to <dir>/ride_usage.log. It reconnects with backoff until ctx ends.
type AuditConsumer struct {
    url       string
    queueName string
    dir       string
    log       *logger.Logger
    mu        sync.Mutex // serializes writes to the log file
}

func NewAuditConsumer(url, queueName, dir string, log *logger.Logger) *AuditConsumer {
    return &AuditConsumer{url: url, queueName: queueName, dir: dir, log: log}
}

// Run blocks until ctx is cancelled.
func (a *AuditConsumer) Run(ctx context.Context) {
    backoff := time.Second
    for ctx.Err() == nil {
        conn, err := amqp.Dial(a.url)
        if err != nil {
            a.log.Warn("audit consumer: dial failed", "error", err, "retry_in", backoff.String())
            if !sleepCtx(ctx, backoff) {
                return
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = a.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return
        }
        a.log.Warn("audit consumer: consume loop ended, reconnecting", "error", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return
        }
    }
}

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        a.log.Warn("audit consumer: set QoS failed", "error", err)
    }
    if err := declareUsageQueue(ch, a.queueName); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(a.queueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := a.Append(d.Body); err != nil {
                a.log.Warn("audit consumer: handle message failed", "error", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Append decodes one event and writes its audit line.
func (a *AuditConsumer) Append(body []byte) error {
    var ev RideUsageEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }

    a.mu.Lock()
    defer a.mu.Unlock()
    if err := os.MkdirAll(a.dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", a.dir, err)
    }
    f, err := os.OpenFile(filepath.Join(a.dir, "ride_usage.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    _, err = f.WriteString(FormatAuditLine(ev))
    return err
}

// FormatAuditLine renders ev as a single human-readable line.
func FormatAuditLine(ev RideUsageEvent) string {
    line := fmt.Sprintf("[%s] %s | user_id=%d | ride_id=%d", ev.OccurredAt, ev.Event, ev.UserID, ev.RideID)
    if ev.UsageID != 0 {
        line += fmt.Sprintf(" | usage_id=%d", ev.UsageID)
    }
    if ev.TicketOrderID != 0 {
        line += fmt.Sprintf(" | ticket_order_id=%d", ev.TicketOrderID)
    }
    if ev.TicketType != "" {
        line += " | ticket_type=" + ev.TicketType
    }
    if ev.Position != 0 {
        line += fmt.Sprintf(" | position=%d | eta_min=%d", ev.Position, ev.EstimatedWaitMinutes)
    }
    return line + "\n"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    select {
    case <-ctx.Done():
        return false
    case <-time.After(d):
        return true
    }
}
