// Package rabbitmq publishes driver availability to the dispatch side.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ride-driver/internal/general/logger"
)

const (
	maxReconnectBackoff = 30 * time.Second
	publishTimeout      = 5 * time.Second
)

var ErrNotConnected = errors.New("rabbitmq: connection is not open")

// Client keeps one publishing channel with confirms enabled and redials in
// the background when the broker goes away.
type Client struct {
	url    string
	log    *logger.Logger
	logCtx context.Context

	mu       sync.RWMutex
	conn     *amqp.Connection
	pubChan  *amqp.Channel
	confirms <-chan amqp.Confirmation

	pubMu sync.Mutex // one outstanding publish keeps confirms in order

	closed    chan struct{}
	closeOnce sync.Once
	reconnect chan struct{}
	wg        sync.WaitGroup
}

// Connect dials once and starts the reconnect watcher. A failed first dial
// is returned to the caller; later failures are retried.
func Connect(ctx context.Context, url string, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	client := &Client{
		url:       url,
		log:       log,
		logCtx:    context.WithoutCancel(ctx),
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}

	if err := client.connectOnce(); err != nil {
		return nil, err
	}

	client.wg.Add(1)
	go client.watch()
	return client, nil
}

// Close stops the watcher and releases the connection. Idempotent.
func (client *Client) Close() {
	client.closeOnce.Do(func() { close(client.closed) })

	client.mu.Lock()
	if client.pubChan != nil {
		_ = client.pubChan.Close()
		client.pubChan = nil
	}
	if client.conn != nil {
		_ = client.conn.Close()
		client.conn = nil
	}
	client.confirms = nil
	client.mu.Unlock()

	client.wg.Wait()
}

func (client *Client) connectOnce() (err error) {
	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		client.log.Error(client.logCtx, "rabbitmq_dial_failed", "failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq open channel: %w", err)
	}
	if err = declareTopology(ch); err != nil {
		client.log.Error(client.logCtx, "rabbitmq_declare_topology_failed", "failed to declare topology", err, nil)
		return fmt.Errorf("rabbitmq declare topology: %w", err)
	}
	if err = ch.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq enable confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	returns := ch.NotifyReturn(make(chan amqp.Return, 1))
	client.wg.Add(1)
	go func() {
		defer client.wg.Done()
		for r := range returns {
			client.log.Warn(client.logCtx, "rabbitmq_returned", "status message was unroutable",
				map[string]any{"routing_key": r.RoutingKey, "code": r.ReplyCode, "text": r.ReplyText})
		}
	}()

	client.mu.Lock()
	select {
	case <-client.closed:
		client.mu.Unlock()
		return ErrNotConnected
	default:
	}
	client.conn = conn
	client.pubChan = ch
	client.confirms = confirms
	client.mu.Unlock()

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	client.wg.Add(1)
	go func() {
		defer client.wg.Done()
		select {
		case <-client.closed:
			return
		case <-connClosed:
		case <-chClosed:
		}
		select {
		case client.reconnect <- struct{}{}:
		default:
		}
	}()

	client.log.Info(client.logCtx, "rabbitmq_connected", "RabbitMQ connection established", nil)
	return nil
}

// watch redials after a close signal, doubling the pause up to 30s.
func (client *Client) watch() {
	defer client.wg.Done()

	for {
		select {
		case <-client.closed:
			return
		case <-client.reconnect:
		}

		backoff := time.Second
		for {
			err := client.connectOnce()
			if err == nil {
				client.log.Info(client.logCtx, "rabbitmq_reconnected", "reconnected to RabbitMQ", nil)
				break
			}
			if errors.Is(err, ErrNotConnected) {
				return
			}

			t := time.NewTimer(backoff)
			select {
			case <-client.closed:
				t.Stop()
				return
			case <-t.C:
			}
			backoff = min(backoff*2, maxReconnectBackoff)
		}
	}
}

// publish sends one persistent JSON message and waits for the broker ack.
func (client *Client) publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	client.pubMu.Lock()
	defer client.pubMu.Unlock()

	client.mu.RLock()
	conn, ch, confirms := client.conn, client.pubChan, client.confirms
	client.mu.RUnlock()
	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(ctx, exchange, routingKey, true, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	select {
	case c, ok := <-confirms:
		if !ok {
			return ErrNotConnected
		}
		if !c.Ack {
			return errors.New("rabbitmq: publish not acknowledged")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
