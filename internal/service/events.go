package service

import (
	"context"

	"accounts-api/internal/domain"
)

// EventPublisher notifica a otros sistemas los cambios de cuentas.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, account domain.Account) error
	PublishReferralApplied(ctx context.Context, referralCode, accountID string) error
}

// NoopEventPublisher descarta los eventos cuando no hay broker configurado.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishAccountRegistered(context.Context, domain.Account) error {
	return nil
}

func (NoopEventPublisher) PublishReferralApplied(context.Context, string, string) error {
	return nil
}
