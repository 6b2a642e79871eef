package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"accounts-api/internal/domain"
)

type mockReferralStore struct {
	codes       map[string]int
	existsCalls int
	existsErr   error
	incrErr     error
}

func newMockReferralStore(codes ...string) *mockReferralStore {
	m := &mockReferralStore{codes: make(map[string]int)}
	for _, c := range codes {
		m.codes[c] = 0
	}
	return m
}

func (m *mockReferralStore) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	m.existsCalls++
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.codes[code]
	return ok, nil
}

func (m *mockReferralStore) IncrementReferral(_ context.Context, code string) (bool, error) {
	if m.incrErr != nil {
		return false, m.incrErr
	}
	if _, ok := m.codes[code]; !ok {
		return false, nil
	}
	m.codes[code]++
	return true, nil
}

func scriptedGenerator(codes ...string) func(int) (string, error) {
	i := 0
	return func(int) (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func TestReferralAllocator_AllocatesDistinctCodes(t *testing.T) {
	store := newMockReferralStore()
	alloc := NewReferralAllocator(zap.NewNop(), store, 8, 0)

	const n = 1000
	for i := 0; i < n; i++ {
		code, err := alloc.AllocateCode(context.Background())
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("expected 8 char code, got %q", code)
		}
		if _, dup := store.codes[code]; dup {
			t.Fatalf("code %q allocated twice", code)
		}
		store.codes[code] = 0
	}
	if len(store.codes) != n {
		t.Fatalf("expected %d distinct codes, got %d", n, len(store.codes))
	}
}

func TestReferralAllocator_RetriesOnCollision(t *testing.T) {
	store := newMockReferralStore("TAKEN001", "TAKEN002")
	alloc := NewReferralAllocator(zap.NewNop(), store, 8, 10)
	alloc.generate = scriptedGenerator("TAKEN001", "TAKEN002", "FREE0001")

	code, err := alloc.AllocateCode(context.Background())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "FREE0001" {
		t.Fatalf("expected FREE0001, got %q", code)
	}
	if store.existsCalls != 3 {
		t.Fatalf("expected 3 lookups, got %d", store.existsCalls)
	}
}

func TestReferralAllocator_StoreErrorAbortsImmediately(t *testing.T) {
	storeErr := errors.New("store unreachable")
	store := newMockReferralStore()
	store.existsErr = storeErr
	alloc := NewReferralAllocator(zap.NewNop(), store, 8, 10)

	_, err := alloc.AllocateCode(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if store.existsCalls != 1 {
		t.Fatalf("expected no retry on store error, got %d lookups", store.existsCalls)
	}
}

func TestReferralAllocator_Exhausted(t *testing.T) {
	store := newMockReferralStore("TAKEN001")
	alloc := NewReferralAllocator(zap.NewNop(), store, 8, 5)
	alloc.generate = scriptedGenerator("TAKEN001")

	if _, err := alloc.AllocateCode(context.Background()); !errors.Is(err, ErrReferralCodeExhausted) {
		t.Fatalf("expected ErrReferralCodeExhausted, got %v", err)
	}
	if store.existsCalls != 5 {
		t.Fatalf("expected 5 attempts, got %d", store.existsCalls)
	}
}

func TestReferralAllocator_ApplyReferral(t *testing.T) {
	t.Run("credits existing referrer", func(t *testing.T) {
		store := newMockReferralStore("REF12345")
		alloc := NewReferralAllocator(zap.NewNop(), store, 8, 10)
		account := &domain.Account{ID: "new"}

		if err := alloc.ApplyReferral(context.Background(), account, " REF12345 "); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if account.ReferredBy != "REF12345" {
			t.Fatalf("expected referred_by set, got %q", account.ReferredBy)
		}
		if store.codes["REF12345"] != 1 {
			t.Fatalf("expected one increment, got %d", store.codes["REF12345"])
		}
	})

	t.Run("unknown code is ignored", func(t *testing.T) {
		store := newMockReferralStore("REF12345")
		alloc := NewReferralAllocator(zap.NewNop(), store, 8, 10)
		account := &domain.Account{ID: "new"}

		if err := alloc.ApplyReferral(context.Background(), account, "NOPE"); err != nil {
			t.Fatalf("expected soft fail, got %v", err)
		}
		if account.ReferredBy != "" {
			t.Fatalf("expected referred_by unset, got %q", account.ReferredBy)
		}
		if store.codes["REF12345"] != 0 {
			t.Fatalf("expected no increment")
		}
	})

	t.Run("empty code is a no-op", func(t *testing.T) {
		store := newMockReferralStore()
		store.incrErr = errors.New("must not be called")
		alloc := NewReferralAllocator(zap.NewNop(), store, 8, 10)

		if err := alloc.ApplyReferral(context.Background(), &domain.Account{}, "  "); err != nil {
			t.Fatalf("expected no-op, got %v", err)
		}
	})

	t.Run("store error propagates", func(t *testing.T) {
		storeErr := errors.New("store down")
		store := newMockReferralStore("REF12345")
		store.incrErr = storeErr
		alloc := NewReferralAllocator(zap.NewNop(), store, 8, 10)
		account := &domain.Account{}

		if err := alloc.ApplyReferral(context.Background(), account, "REF12345"); !errors.Is(err, storeErr) {
			t.Fatalf("expected store error, got %v", err)
		}
		if account.ReferredBy != "" {
			t.Fatalf("expected referred_by unset on error")
		}
	})
}

func TestRandomReferralCode_Alphabet(t *testing.T) {
	code, err := randomReferralCode(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(code) != 32 {
		t.Fatalf("expected 32 chars, got %d", len(code))
	}
	for _, r := range code {
		if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			t.Fatalf("unexpected rune %q in %q", r, code)
		}
	}
}
