// Package amqp publishes and consumes inventory events over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"nedwiyt/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures          = 5
	openTimeout          = 30 * time.Second
	maxBackoff           = 30 * time.Second
	maxReconnectAttempts = 5
	publishTimeout       = 5 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect dials and declares the topology. Caller must not hold mu.
func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key is the queue name on a direct exchange
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() || c.channel == nil || c.channel.IsClosed() {
		return nil
	}
	return c.channel
}

// reconnect retries connect with exponential backoff until ctx is done or
// the attempts run out.
func (c *Client) reconnect(ctx context.Context) (*amqp091.Channel, error) {
	var lastErr error
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		if ch := c.currentChannel(); ch != nil {
			return ch, nil
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}
		if lastErr = c.connect(); lastErr == nil {
			c.logger.Info("Connected to AMQP broker", "attempt", attempt+1)
			return c.currentChannel(), nil
		}
		c.logger.Warn("AMQP connection attempt failed", "attempt", attempt+1, "error", lastErr)
	}
	return nil, fmt.Errorf("reconnect after %d attempts: %w", maxReconnectAttempts, lastErr)
}

// PublishInventoryEvent sends ev to the inventory queue.
func (c *Client) PublishInventoryEvent(ctx context.Context, ev *InventoryEvent) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish inventory event: %w", ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.reconnect(ctx)
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
	if err != nil {
		if isConnectionError(err) {
			c.recordFailure()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published inventory event",
		log.FieldEventID, ev.ID,
		log.FieldEntity, ev.Entity,
		"action", ev.Action,
		"queue", c.queueName)
	return nil
}

// ConsumeInventoryEvents runs handle for each delivery, at most concurrency
// at a time. Failed handlers requeue the message; undecodable messages are
// dropped. The loop reconnects when the broker goes away and returns when
// ctx is done.
func (c *Client) ConsumeInventoryEvents(ctx context.Context, concurrency int, handle func(context.Context, *InventoryEvent) error) error {
	if concurrency < 1 {
		concurrency = 1
	}
	for {
		ch, err := c.reconnect(ctx)
		if err != nil {
			return err
		}
		err = c.consume(ctx, ch, concurrency, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Consumer interrupted, reconnecting", "error", err)
	}
}

func (c *Client) consume(ctx context.Context, ch *amqp091.Channel, concurrency int, handle func(context.Context, *InventoryEvent) error) error {
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.logger.InfoContext(ctx, "Started consuming inventory events", "queue", c.queueName, "concurrency", concurrency)

	var g errgroup.Group
	g.SetLimit(concurrency)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			g.Go(func() error {
				c.process(ctx, delivery, handle)
				return nil
			})
		}
	}
}

func (c *Client) process(ctx context.Context, d amqp091.Delivery, handle func(context.Context, *InventoryEvent) error) {
	msg, err := InventoryEventFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode message", "error", err)
		_ = d.Nack(false, false)
		return
	}
	if err := handle(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			log.FieldEventID, msg.ID,
			log.FieldEntity, msg.Entity)
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
	c.logger.DebugContext(ctx, "Processed inventory event", log.FieldEventID, msg.ID)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// isCircuitOpen moves an open breaker to half-open once openTimeout has
// passed, letting one attempt through.
func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failMu.Lock()
	last := c.lastFailure
	c.failMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("AMQP circuit breaker opened", "failures", atomic.LoadInt64(&c.failureCount))
		}
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff returns 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
