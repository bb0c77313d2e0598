// Package queue contains the background consumer that drains the
// notification queue into an outbox file picked up by the mailer.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/practice-booking/internal/metrics"
)

// ConsumerConfig names the broker, the queue and the outbox file.
type ConsumerConfig struct {
    URL        string
    Queue      string
    OutboxPath string
    Prefetch   int
}

// StartNotificationConsumer connects to RabbitMQ, declares the durable
// notification queue and appends each event to the outbox file.  It
// reconnects with exponential backoff and returns only when ctx is done.
// Malformed messages are rejected without requeue so one bad payload
// cannot stall the queue.
func StartNotificationConsumer(ctx context.Context, cfg ConsumerConfig, log *zap.Logger) error {
    if cfg.Prefetch <= 0 {
        cfg.Prefetch = 50
    }
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            log.Warn("notify-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, cfg, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("notify-consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg ConsumerConfig, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
        log.Warn("notify-consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        var d amqp.Delivery
        select {
        case <-ctx.Done():
            return ctx.Err()
        case msg, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            d = msg
        }
        ev, err := handleMessage(cfg.OutboxPath, d.Body)
        if err != nil {
            metrics.NotificationsConsumed.WithLabelValues(ev.Template, "rejected").Inc()
            log.Error("notify-consumer: handle message failed", zap.Error(err))
            _ = d.Nack(false, false)
            continue
        }
        metrics.NotificationsConsumed.WithLabelValues(ev.Template, "written").Inc()
        _ = d.Ack(false)
    }
}

func handleMessage(outboxPath string, body []byte) (NotificationEvent, error) {
    var ev NotificationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return ev, fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Template == "" || ev.Recipient == "" {
        return ev, errors.New("event without template or recipient")
    }
    if err := os.MkdirAll(filepath.Dir(outboxPath), 0o755); err != nil {
        return ev, fmt.Errorf("mkdir outbox: %w", err)
    }
    f, err := os.OpenFile(outboxPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return ev, fmt.Errorf("open outbox: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return ev, fmt.Errorf("write outbox: %w", err)
    }
    return ev, nil
}

// formatLine renders one event as a single outbox line.  Data keys are
// sorted so identical events produce identical lines.
func formatLine(ev NotificationEvent) string {
    keys := make([]string, 0, len(ev.Data))
    for k := range ev.Data {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] %s | booking_id=%d | to=%s", ev.OccurredAt, ev.Template, ev.BookingID, ev.Recipient)
    for _, k := range keys {
        fmt.Fprintf(&b, " | %s=%v", k, ev.Data[k])
    }
    b.WriteByte('\n')
    return b.String()
}
