package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"accounts-api/internal/domain"
)

const (
	TypeAccountRegistered = "account.registered"
	TypeReferralApplied   = "referral.applied"
	source                = "accounts-api"
)

// Envelope es el formato común de todos los eventos publicados.
type Envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Source      string          `json:"source"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

type AccountRegisteredData struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code"`
	ReferredBy   string `json:"referred_by,omitempty"`
}

type ReferralAppliedData struct {
	ReferralCode string `json:"referral_code"`
	AccountID    string `json:"account_id"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publica eventos de cuentas en Kafka.
type Producer struct {
	writer      messageWriter
	topicPrefix string
	logger      *zap.Logger
}

func NewProducer(brokers []string, topicPrefix string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: w, topicPrefix: topicPrefix, logger: logger}
}

func (p *Producer) PublishAccountRegistered(ctx context.Context, account domain.Account) error {
	return p.publish(ctx, TypeAccountRegistered, account.ID, AccountRegisteredData{
		ID:           account.ID,
		Email:        account.Email,
		Role:         account.Role,
		ReferralCode: account.ReferralCode,
		ReferredBy:   account.ReferredBy,
	})
}

func (p *Producer) PublishReferralApplied(ctx context.Context, referralCode, accountID string) error {
	return p.publish(ctx, TypeReferralApplied, referralCode, ReferralAppliedData{
		ReferralCode: referralCode,
		AccountID:    accountID,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

func (p *Producer) publish(ctx context.Context, eventType, aggregateID string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", eventType, err)
	}
	body, err := json.Marshal(Envelope{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Source:      source,
		OccurredAt:  time.Now().UTC(),
		Data:        payload,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	topic := p.topic(eventType)
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(aggregateID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(source)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topic, err)
	}
	p.logger.Debug("event published", zap.String("topic", topic), zap.String("aggregate_id", aggregateID))
	return nil
}
