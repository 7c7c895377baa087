package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/faucet-ledger/internal/domain"
)

const EventTypeTransferRecorded = "transfer.recorded"

type TransferRecorded struct {
	EventType     string    `json:"event_type"`
	TransferID    uuid.UUID `json:"transfer_id"`
	Seq           int64     `json:"seq"`
	Kind          string    `json:"kind"`
	Identity      uuid.UUID `json:"identity"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewTransferRecorded(t *domain.Transfer) TransferRecorded {
	return TransferRecorded{
		EventType:     EventTypeTransferRecorded,
		TransferID:    t.ID,
		Seq:           t.Seq,
		Kind:          string(t.Kind),
		Identity:      t.Identity,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		OccurredAt:    t.CreatedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishTransfer writes the receipt keyed by identity, so one caller's
// transfers land on one partition in order.
func (p *Publisher) PublishTransfer(ctx context.Context, t *domain.Transfer) error {
	msg, err := transferMessage(t)
	if err != nil {
		return fmt.Errorf("PublishTransfer: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("PublishTransfer: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func transferMessage(t *domain.Transfer) (kafka.Message, error) {
	data, err := json.Marshal(NewTransferRecorded(t))
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(t.Identity.String()),
		Value: data,
		Time:  t.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeTransferRecorded)},
		},
	}, nil
}
