package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"accounts-api/internal/domain"
)

func newTestJWTService() *JWTService {
	return NewJWTService("secret", "accounts-api", 2*time.Hour, 10*time.Minute)
}

func TestJWTService_IssueVerify(t *testing.T) {
	svc := newTestJWTService()
	for _, role := range []string{domain.RoleUser, domain.RoleProvider, domain.RoleAdmin} {
		token, err := svc.Issue("u1", role)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		claims, err := svc.Verify(token)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if claims.SubjectID != "u1" || claims.Role != role {
			t.Fatalf("unexpected claims: %+v", claims)
		}
		if !claims.ExpiresAtTime().After(claims.IssuedAtTime()) {
			t.Fatalf("expected expires_at after issued_at")
		}
		if got := claims.ExpiresAtTime().Sub(claims.IssuedAtTime()); got != 2*time.Hour {
			t.Fatalf("expected 2h window, got %v", got)
		}
	}
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	svc := newTestJWTService()
	svc.now = func() time.Time { return time.Now().UTC().Add(-3 * time.Hour) }
	token, err := svc.Issue("u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.now = func() time.Time { return time.Now().UTC() }

	if _, err := svc.Verify(token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTService_RejectsAtExactExpiry(t *testing.T) {
	svc := newTestJWTService()
	issuedAt := time.Now().UTC().Truncate(time.Second)
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.Issue("u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(2*time.Hour - time.Second) }
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("expected token valid before expiry, got %v", err)
	}
	svc.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	if _, err := svc.Verify(token); err == nil {
		t.Fatalf("expected token invalid at expires_at")
	}
}

func TestJWTService_RejectsTamperedSignature(t *testing.T) {
	svc := newTestJWTService()
	token, err := svc.Issue("u1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sigStart := strings.LastIndex(token, ".") + 1
	pos := sigStart + (len(token)-sigStart)/2
	b := []byte(token)
	if b[pos] == 'A' {
		b[pos] = 'B'
	} else {
		b[pos] = 'A'
	}

	if _, err := svc.Verify(string(b)); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for tampered token, got %v", err)
	}
}

func TestJWTService_RejectsMalformedToken(t *testing.T) {
	svc := newTestJWTService()
	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := svc.Verify(token); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("expected ErrJWTInvalid for %q, got %v", token, err)
		}
	}
}

func TestJWTService_RejectsOtherSecret(t *testing.T) {
	other := NewJWTService("other-secret", "accounts-api", time.Hour, time.Minute)
	token, err := other.Issue("u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := newTestJWTService().Verify(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}

func TestJWTService_RejectsEmptySecret(t *testing.T) {
	svc := NewJWTService("", "accounts-api", time.Hour, time.Minute)
	if _, err := svc.Issue("u1", domain.RoleUser); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
	if _, err := svc.Verify("whatever"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
}

func TestJWTService_RejectsWrongIssuer(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now().UTC()
	claims := Claims{
		SubjectID: "u1",
		Role:      domain.RoleAdmin,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "other-issuer",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.Verify(signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong issuer, got %v", err)
	}
}

func TestJWTService_RejectsOtherAlgorithm(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now().UTC()
	claims := Claims{
		SubjectID: "u1",
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "accounts-api",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.Verify(signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for HS512 token, got %v", err)
	}
}

func TestJWTService_ChallengeAndAccessAreNotInterchangeable(t *testing.T) {
	svc := newTestJWTService()
	challenge, err := svc.IssueChallenge("u1")
	if err != nil {
		t.Fatalf("issue challenge: %v", err)
	}
	access, err := svc.Issue("u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	if _, err := svc.Verify(challenge); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected challenge token rejected as access, got %v", err)
	}
	if _, err := svc.VerifyChallenge(access); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected access token rejected as challenge, got %v", err)
	}
	claims, err := svc.VerifyChallenge(challenge)
	if err != nil || claims.SubjectID != "u1" {
		t.Fatalf("expected valid challenge, got %+v %v", claims, err)
	}
}
