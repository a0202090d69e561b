package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = 30 * time.Second
)

// Connection держит AMQP соединение и один канал, общий для публикации
// due-вызовов и их потребления. Разорванное соединение восстанавливается
// в фоне; Consumer узнаёт об этом через Reconnected и подписывается заново.
type Connection struct {
	url    string
	logger *slog.Logger

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel

	stop        context.CancelFunc
	done        chan struct{}
	reconnected chan struct{}
	closeOnce   sync.Once
}

// NewConnection подключается к RabbitMQ по url.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to rabbitmq")

	ctx, stop := context.WithCancel(context.Background())
	c := &Connection{
		url:         url,
		logger:      logger,
		conn:        conn,
		ch:          ch,
		stop:        stop,
		done:        make(chan struct{}),
		reconnected: make(chan struct{}, 1),
	}
	go c.supervise(ctx)
	return c, nil
}

func dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

// supervise ждёт разрыва соединения и восстанавливает его до Close.
func (c *Connection) supervise(ctx context.Context) {
	defer close(c.done)

	for {
		c.mu.RLock()
		lost := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		select {
		case <-ctx.Done():
			return
		case err := <-lost:
			if err != nil {
				c.logger.Warn("rabbitmq connection lost", "error", err)
			}
		}

		if !c.redial(ctx) {
			return
		}

		select {
		case c.reconnected <- struct{}{}:
		default:
		}
	}
}

// redial повторяет подключение, удваивая паузу до reconnectMaxDelay.
// Возвращает false, если соединение закрыли раньше.
func (c *Connection) redial(ctx context.Context) bool {
	delay := reconnectInitialDelay
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		conn, ch, err := dial(c.url)
		if err != nil {
			c.logger.Warn("rabbitmq reconnect failed", "delay", delay, "error", err)
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}

		c.mu.Lock()
		c.conn, c.ch = conn, ch
		c.mu.Unlock()

		c.logger.Info("reconnected to rabbitmq")
		return true
	}
}

// Channel возвращает текущий канал. После разрыва он закрыт
// до следующего Reconnected.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ch
}

// Reconnected сигналит после каждого восстановления соединения.
func (c *Connection) Reconnected() <-chan struct{} {
	return c.reconnected
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	ch := c.Channel()
	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// Close останавливает восстановление и закрывает канал и соединение.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stop()
		<-c.done

		c.mu.Lock()
		defer c.mu.Unlock()

		var errs []error
		if !c.ch.IsClosed() {
			if cerr := c.ch.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("close channel: %w", cerr))
			}
		}
		if !c.conn.IsClosed() {
			if cerr := c.conn.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("close connection: %w", cerr))
			}
		}
		err = errors.Join(errs...)
		c.logger.Info("rabbitmq connection closed")
	})
	return err
}
