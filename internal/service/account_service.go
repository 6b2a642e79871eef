package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"accounts-api/internal/domain"
	"accounts-api/internal/email"
	"accounts-api/internal/metrics"
	"accounts-api/internal/repository"
)

// AccountService coordina las reglas de negocio del directorio de cuentas.
type AccountService struct {
	logger        *zap.Logger
	accounts      repository.AccountRepository
	hasher        PasswordHasher
	referrals     *ReferralAllocator
	emailSender   email.Sender
	otpLimiter    OTPRateLimiter
	verifyLimiter OTPRateLimiter // códigos incorrectos por cuenta
	events        EventPublisher
	otpTTL        time.Duration
}

func NewAccountService(
	logger *zap.Logger,
	accounts repository.AccountRepository,
	hasher PasswordHasher,
	referrals *ReferralAllocator,
	emailSender email.Sender,
	otpLimiter OTPRateLimiter,
	events EventPublisher,
) *AccountService {
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(defaultOTPTTL, 3)
	}
	if events == nil {
		events = NoopEventPublisher{}
	}
	return &AccountService{
		logger:        logger,
		accounts:      accounts,
		hasher:        hasher,
		referrals:     referrals,
		emailSender:   emailSender,
		otpLimiter:    otpLimiter,
		verifyLimiter: NewOTPRateLimiter(defaultOTPTTL, DefaultOTPVerifyMaxFailures),
		events:        events,
		otpTTL:        defaultOTPTTL,
	}
}

// WithVerifyLimiter reemplaza el límite de códigos incorrectos, por ejemplo
// por uno en Redis compartido entre réplicas.
func (s *AccountService) WithVerifyLimiter(limiter OTPRateLimiter) *AccountService {
	if limiter != nil {
		s.verifyLimiter = limiter
	}
	return s
}

type RegisterInput struct {
	Name             string
	Email            string
	Password         string
	Role             string
	ReferralCodeUsed string
}

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOTPNotRequested    = errors.New("otp not requested")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPInvalid         = errors.New("otp invalid")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrProviderNotFound   = errors.New("provider not found")
)

const (
	defaultOTPTTL = 10 * time.Minute
	// DefaultOTPVerifyMaxFailures es cuántos códigos incorrectos se toleran por
	// ventana antes de invalidar el código vigente.
	DefaultOTPVerifyMaxFailures = 5
)

// Register crea una cuenta con un código de referido propio y, si corresponde,
// acredita al referente. El código se asigna antes de persistir la cuenta.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.Account{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if strings.TrimSpace(input.Password) == "" {
		return domain.Account{}, fmt.Errorf("%w: password is required", ErrValidation)
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.IsSelfAssignableRole(role) {
		return domain.Account{}, ErrInvalidRole
	}

	// Chequeo previo sin transacción: dos registros simultáneos con el mismo
	// email pueden pasar ambos; el índice único frena al segundo INSERT.
	_, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err == nil {
		return domain.Account{}, ErrDuplicateEmail
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := domain.Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        emailAddr,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	code, err := s.referrals.AllocateCode(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	account.ReferralCode = code

	if err := s.referrals.ApplyReferral(ctx, &account, input.ReferralCodeUsed); err != nil {
		return domain.Account{}, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.Account{}, ErrDuplicateEmail
		}
		return domain.Account{}, err
	}
	metrics.AccountsRegistered.Inc()

	if err := s.events.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.Warn("publish account registered failed", zap.Error(err), zap.String("account_id", account.ID))
	}
	if account.ReferredBy != "" {
		if err := s.events.PublishReferralApplied(ctx, account.ReferredBy, account.ID); err != nil {
			s.logger.Warn("publish referral applied failed", zap.Error(err), zap.String("account_id", account.ID))
		}
	}
	return account, nil
}

// Authenticate valida las credenciales (primer paso del login) y envía por
// email un código de un solo uso que se confirma con VerifyTwoFactor.
func (s *AccountService) Authenticate(ctx context.Context, emailAddr, password string) (domain.Account, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}
	if s.otpLimiter != nil && !s.otpLimiter.Allow(emailAddr) {
		return domain.Account{}, ErrRateLimited
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, err
	}
	if !s.hasher.Check(password, account.PasswordHash) {
		return domain.Account{}, ErrInvalidCredentials
	}

	code, hash, expiresAt, err := generateOTP(s.otpTTL)
	if err != nil {
		return domain.Account{}, err
	}
	if err := s.accounts.UpdateOTP(ctx, account.ID, hash, expiresAt); err != nil {
		return domain.Account{}, err
	}

	if s.emailSender == nil {
		return domain.Account{}, ErrEmailSendFailure
	}
	if err := s.emailSender.SendLoginCode(ctx, emailAddr, code, expiresAt); err != nil {
		s.logger.Warn("send login code failed", zap.Error(err), zap.String("email", emailAddr))
		return domain.Account{}, ErrEmailSendFailure
	}

	account.OtpCodeHash = hash
	account.OtpExpiresAt = &expiresAt
	return account, nil
}

// VerifyTwoFactor confirma el código enviado en Authenticate y lo consume.
// Superado el límite de códigos incorrectos el código vigente se invalida y
// hay que volver a pasar por Authenticate.
func (s *AccountService) VerifyTwoFactor(ctx context.Context, accountID, code string) (domain.Account, error) {
	code = strings.TrimSpace(code)
	if !isValidOTPCode(code) {
		return domain.Account{}, ErrOTPInvalid
	}

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if account.OtpCodeHash == "" || account.OtpExpiresAt == nil {
		return domain.Account{}, ErrOTPNotRequested
	}
	if !time.Now().UTC().Before(*account.OtpExpiresAt) {
		return domain.Account{}, ErrOTPExpired
	}
	if !verifyOTP(code, account.OtpCodeHash) {
		if !s.verifyLimiter.Allow("verify:" + account.ID) {
			if err := s.accounts.ClearOTP(ctx, account.ID, account.OtpCodeHash); err != nil && !errors.Is(err, repository.ErrNotFound) {
				s.logger.Warn("invalidate otp failed", zap.Error(err), zap.String("account_id", account.ID))
			}
			return domain.Account{}, ErrRateLimited
		}
		return domain.Account{}, ErrOTPInvalid
	}

	if err := s.accounts.ClearOTP(ctx, account.ID, account.OtpCodeHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrOTPInvalid
		}
		return domain.Account{}, err
	}
	account.OtpCodeHash = ""
	account.OtpExpiresAt = nil
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrUserNotFound
		}
		return domain.Account{}, err
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.accounts.List(ctx)
}

// UpdateAccount modifica solo nombre y email.
func (s *AccountService) UpdateAccount(ctx context.Context, id, name, emailAddr string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	emailAddr = normalizeEmail(emailAddr)
	if name == "" || emailAddr == "" {
		return domain.Account{}, fmt.Errorf("%w: name and email are required", ErrValidation)
	}

	if _, err := s.GetAccount(ctx, id); err != nil {
		return domain.Account{}, err
	}

	existing, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err == nil && existing.ID != id {
		return domain.Account{}, ErrDuplicateEmail
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, err
	}

	account, err := s.accounts.UpdateProfile(ctx, id, name, emailAddr)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return domain.Account{}, ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicateEmail):
			return domain.Account{}, ErrDuplicateEmail
		}
		return domain.Account{}, err
	}
	return account, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// ReferralSummary devuelve los contadores del referente y sus referidos.
func (s *AccountService) ReferralSummary(ctx context.Context, id string) (domain.ReferralSummary, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return domain.ReferralSummary{}, err
	}
	referred, err := s.accounts.ListReferredBy(ctx, account.ReferralCode)
	if err != nil {
		return domain.ReferralSummary{}, err
	}
	return domain.ReferralSummary{
		ReferralsCount:  account.ReferralsCount,
		ReferralRewards: account.ReferralRewards,
		ReferredUsers:   referred,
	}, nil
}

// GrantRole cambia el rol de la cuenta con ese email. Lo usa la CLI de
// administración; no hay endpoint HTTP que lo exponga.
func (s *AccountService) GrantRole(ctx context.Context, emailAddr, role string) (domain.Account, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !domain.IsValidRole(role) {
		return domain.Account{}, ErrInvalidRole
	}
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrUserNotFound
		}
		return domain.Account{}, err
	}
	if err := s.accounts.SetRole(ctx, account.ID, role); err != nil {
		return domain.Account{}, err
	}
	account.Role = role
	return account, nil
}

// AddFavoriteProvider marca providerID como proveedor favorito de accountID y
// devuelve la lista resultante.
func (s *AccountService) AddFavoriteProvider(ctx context.Context, accountID, providerID string) ([]string, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, fmt.Errorf("%w: provider id is required", ErrValidation)
	}
	if providerID == accountID {
		return nil, fmt.Errorf("%w: an account cannot favorite itself", ErrValidation)
	}
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	provider, err := s.accounts.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	if provider.Role != domain.RoleProvider {
		return nil, ErrProviderNotFound
	}

	if err := s.accounts.AddFavoriteProvider(ctx, accountID, providerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.accounts.ListFavoriteProviders(ctx, accountID)
}

func generateOTP(ttl time.Duration) (string, string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", time.Time{}, err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", time.Time{}, err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	expiresAt := time.Now().UTC().Add(ttl)
	return code, saltStr + ":" + hash, expiresAt, nil
}

func verifyOTP(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	hashBytes := sha256.Sum256([]byte(parts[0] + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(parts[1])) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
