// Package events publishes booking lifecycle events for downstream
// consumers (notifications, read models). Delivery is at-least-once;
// consumers deduplicate by booking id.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"openbooking/internal/pkg/config"
	"openbooking/internal/pkg/errs"

	"github.com/twmb/franz-go/pkg/kgo"
)

// BookingConfirmed is emitted once a saga reaches CONFIRMED.
// RecoveryConfirmed distinguishes confirmations driven by the recovery
// worker from request-path confirmations.
type BookingConfirmed struct {
	BookingID         int64     `json:"booking_id"`
	UserID            int64     `json:"user_id"`
	RoomID            int64     `json:"room_id"`
	CheckInDate       string    `json:"check_in_date"`
	CheckOutDate      string    `json:"check_out_date"`
	TotalPriceCents   int64     `json:"total_price_cents"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	RecoveryConfirmed bool      `json:"recovery_confirmed"`
}

type Publisher interface {
	// BookingConfirmed publishes asynchronously; failures are logged and
	// never fail the saga.
	BookingConfirmed(ctx context.Context, ev BookingConfirmed)
}

type kafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log *slog.Logger) (Publisher, func(), error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, nil, errs.Wrap(err, "failed to create kafka client")
	}

	p := &kafkaPublisher{client: client, topic: cfg.BookingConfirmedTopic, log: log}
	cleanup := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Flush(flushCtx)
		client.Close()
	}
	return p, cleanup, nil
}

func (p *kafkaPublisher) BookingConfirmed(ctx context.Context, ev BookingConfirmed) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to marshal booking confirmed event", "booking_id", ev.BookingID, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(ev.BookingID, 10)),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.log.Error("failed to publish booking confirmed event",
				"booking_id", ev.BookingID, "topic", p.topic, "error", err)
			return
		}
		p.log.Info("published booking confirmed event",
			"booking_id", ev.BookingID, "topic", p.topic, "offset", r.Offset,
			"recovery_confirmed", ev.RecoveryConfirmed)
	})
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) BookingConfirmed(context.Context, BookingConfirmed) {}
