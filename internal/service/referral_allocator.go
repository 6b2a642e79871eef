package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"accounts-api/internal/domain"
	"accounts-api/internal/metrics"
)

const (
	referralAlphabet           = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	defaultReferralCodeLength  = 8
	defaultReferralMaxAttempts = 1000
)

var ErrReferralCodeExhausted = errors.New("referral code space exhausted")

// ReferralStore es la parte del directorio que usa el asignador de códigos.
type ReferralStore interface {
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	IncrementReferral(ctx context.Context, code string) (bool, error)
}

// ReferralAllocator genera códigos de referido únicos y acredita referentes.
type ReferralAllocator struct {
	logger      *zap.Logger
	store       ReferralStore
	length      int
	maxAttempts int
	generate    func(length int) (string, error)
}

func NewReferralAllocator(logger *zap.Logger, store ReferralStore, length, maxAttempts int) *ReferralAllocator {
	if length <= 0 {
		length = defaultReferralCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultReferralMaxAttempts
	}
	return &ReferralAllocator{
		logger:      logger,
		store:       store,
		length:      length,
		maxAttempts: maxAttempts,
		generate:    randomReferralCode,
	}
}

// AllocateCode devuelve un código que ninguna cuenta tiene asignado.
// Un error del store corta el ciclo de inmediato; solo una colisión reintenta.
func (a *ReferralAllocator) AllocateCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code, err := a.generate(a.length)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		exists, err := a.store.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("allocate referral code: %w", err)
		}
		if !exists {
			return code, nil
		}
		metrics.ReferralCodeCollisions.Inc()
		a.logger.Debug("referral code collision", zap.Int("attempt", attempt))
	}
	return "", ErrReferralCodeExhausted
}

// ApplyReferral acredita al dueño de usedCode y enlaza la cuenta nueva.
// Un código que no pertenece a nadie se ignora sin error.
func (a *ReferralAllocator) ApplyReferral(ctx context.Context, account *domain.Account, usedCode string) error {
	usedCode = strings.TrimSpace(usedCode)
	if usedCode == "" {
		return nil
	}
	credited, err := a.store.IncrementReferral(ctx, usedCode)
	if err != nil {
		return fmt.Errorf("apply referral: %w", err)
	}
	if !credited {
		a.logger.Info("referral code not found, registering without referrer", zap.String("code", usedCode))
		return nil
	}
	account.ReferredBy = usedCode
	metrics.ReferralsApplied.Inc()
	return nil
}

func randomReferralCode(length int) (string, error) {
	max := big.NewInt(int64(len(referralAlphabet)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(referralAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
