package http

import (
	"context"
	"time"

	"accounts-api/internal/domain"
	"accounts-api/internal/repository"
)

type mockAccountRepo struct {
	byID      map[string]domain.Account
	favorites map[string][]string
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{byID: make(map[string]domain.Account), favorites: make(map[string][]string)}
}

func (m *mockAccountRepo) find(match func(domain.Account) bool) (domain.Account, error) {
	for _, a := range m.byID {
		if match(a) {
			return a, nil
		}
	}
	return domain.Account{}, repository.ErrNotFound
}

func (m *mockAccountRepo) Create(_ context.Context, a domain.Account) error {
	if _, err := m.find(func(o domain.Account) bool { return o.Email == a.Email }); err == nil {
		return repository.ErrDuplicateEmail
	}
	m.byID[a.ID] = a
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id string) (domain.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return domain.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (m *mockAccountRepo) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.Email == email })
}

func (m *mockAccountRepo) GetByReferralCode(_ context.Context, code string) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.ReferralCode == code })
}

func (m *mockAccountRepo) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	_, err := m.find(func(a domain.Account) bool { return a.ReferralCode == code })
	return err == nil, nil
}

func (m *mockAccountRepo) List(_ context.Context) ([]domain.Account, error) {
	out := make([]domain.Account, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAccountRepo) ListReferredBy(_ context.Context, code string) ([]domain.ReferredAccount, error) {
	out := make([]domain.ReferredAccount, 0)
	for _, a := range m.byID {
		if a.ReferredBy == code {
			out = append(out, domain.ReferredAccount{Email: a.Email, CreatedAt: a.CreatedAt})
		}
	}
	return out, nil
}

func (m *mockAccountRepo) UpdateProfile(_ context.Context, id, name, email string) (domain.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return domain.Account{}, repository.ErrNotFound
	}
	a.Name = name
	a.Email = email
	m.byID[id] = a
	return a, nil
}

func (m *mockAccountRepo) IncrementReferral(_ context.Context, code string) (bool, error) {
	for id, a := range m.byID {
		if a.ReferralCode == code {
			a.ReferralsCount++
			a.ReferralRewards++
			m.byID[id] = a
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockAccountRepo) UpdateOTP(_ context.Context, id, otpHash string, otpExpiresAt time.Time) error {
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.OtpCodeHash = otpHash
	a.OtpExpiresAt = &otpExpiresAt
	m.byID[id] = a
	return nil
}

func (m *mockAccountRepo) ClearOTP(_ context.Context, id, otpHash string) error {
	a, ok := m.byID[id]
	if !ok || a.OtpCodeHash == "" || a.OtpCodeHash != otpHash {
		return repository.ErrNotFound
	}
	a.OtpCodeHash = ""
	a.OtpExpiresAt = nil
	m.byID[id] = a
	return nil
}

func (m *mockAccountRepo) SetRole(_ context.Context, id, role string) error {
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Role = role
	m.byID[id] = a
	return nil
}

func (m *mockAccountRepo) AddFavoriteProvider(_ context.Context, accountID, providerID string) error {
	if _, ok := m.byID[accountID]; !ok {
		return repository.ErrNotFound
	}
	for _, id := range m.favorites[accountID] {
		if id == providerID {
			return nil
		}
	}
	m.favorites[accountID] = append(m.favorites[accountID], providerID)
	return nil
}

func (m *mockAccountRepo) ListFavoriteProviders(_ context.Context, accountID string) ([]string, error) {
	return append([]string{}, m.favorites[accountID]...), nil
}

type mockEmailSender struct {
	lastTo   string
	lastCode string
	err      error
}

func (m *mockEmailSender) SendLoginCode(_ context.Context, toEmail string, code string, _ time.Time) error {
	m.lastTo = toEmail
	m.lastCode = code
	return m.err
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ string) bool {
	return m.allow
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error {
	return m.err
}
