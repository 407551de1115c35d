package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"marketplace/internal/usecase"
)

const (
	DefaultExchange          = "marketplace.events"
	CartCheckedOutRoutingKey = "cart.checkedout.v1"
)

// 送信するJSON（イベント名とバージョン付き）
type cartCheckedOutMessage struct {
	EventType    string `json:"eventType"`
	EventVersion int    `json:"eventVersion"`
	usecase.CheckoutEvent
}

// RabbitPublisher はチェックアウトイベントをtopic exchangeへ送る。
type RabbitPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
	timeout  time.Duration
}

var _ usecase.CheckoutPublisher = (*RabbitPublisher)(nil)

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial: amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}

func NewRabbitPublisher(conn *amqp.Connection, exchange string) (*RabbitPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// exchange を宣言しておけば publish がインフラ不足で失敗しない
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitPublisher{ch: ch, exchange: exchange, timeout: 3 * time.Second}, nil
}

func (p *RabbitPublisher) Close() error {
	return p.ch.Close()
}

func (p *RabbitPublisher) PublishCheckedOut(ctx context.Context, ev usecase.CheckoutEvent) error {
	body, err := json.Marshal(cartCheckedOutMessage{
		EventType:     "CartCheckedOut",
		EventVersion:  1,
		CheckoutEvent: ev,
	})
	if err != nil {
		return fmt.Errorf("marshal CartCheckedOut: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		pubCtx,
		p.exchange,
		CartCheckedOutRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
}

// RABBITMQ_URL 未設定のとき
type NopPublisher struct{}

func (NopPublisher) PublishCheckedOut(context.Context, usecase.CheckoutEvent) error { return nil }
