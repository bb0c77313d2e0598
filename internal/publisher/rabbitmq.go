// Package publisher delivers booking notifications to the message broker.
// Errors are logged and returned; the booking engine treats them as
// best-effort side effects.
package publisher

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/practice-booking/internal/booking"
    "github.com/iliyamo/practice-booking/internal/queue"
)

// Publisher keeps one connection and channel to RabbitMQ and publishes
// persistent JSON events to a durable queue through the default
// exchange.  The connection is re-established on the next publish if
// the broker dropped it.
type Publisher struct {
    url   string
    queue string
    log   *zap.Logger

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// NewPublisher dials the broker and declares the queue.
func NewPublisher(url, queueName string, log *zap.Logger) (*Publisher, error) {
    p := &Publisher{url: url, queue: queueName, log: log}
    p.mu.Lock()
    defer p.mu.Unlock()
    if err := p.connect(); err != nil {
        return nil, err
    }
    return p, nil
}

func (p *Publisher) connect() error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial rabbitmq: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return fmt.Errorf("open channel: %w", err)
    }
    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return fmt.Errorf("declare queue: %w", err)
    }
    p.conn, p.ch = conn, ch
    return nil
}

// Send implements booking.Dispatcher.
func (p *Publisher) Send(ctx context.Context, n booking.Notification) error {
    body, err := json.Marshal(queue.NotificationEvent{
        Template:   n.Template,
        Recipient:  n.Recipient,
        BookingID:  n.BookingID,
        Data:       n.Data,
        OccurredAt: time.Now().UTC().Format(time.RFC3339),
    })
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
        p.closeLocked()
        if err := p.connect(); err != nil {
            p.log.Warn("rabbitmq: reconnect failed", zap.Error(err))
            return err
        }
    }
    if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
        p.log.Warn("rabbitmq: publish failed", zap.String("template", n.Template), zap.Error(err))
        return err
    }
    return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
    var err error
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        err = p.conn.Close()
        p.conn = nil
    }
    return err
}
