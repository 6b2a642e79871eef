package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess    = "access"
	tokenTypeChallenge = "2fa"
)

// JWTService emite y valida tokens JWT firmados con HS256.
type JWTService struct {
	secret       []byte
	accessTTL    time.Duration
	challengeTTL time.Duration
	issuer       string
	now          func() time.Time
}

// Claims es la identidad contenida en un token verificado.
type Claims struct {
	SubjectID string `json:"uid"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (c Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(secret, issuer string, accessTTL, challengeTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = 2 * time.Hour
	}
	if challengeTTL <= 0 {
		challengeTTL = 10 * time.Minute
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "accounts-api"
	}
	return &JWTService{
		secret:       []byte(secret),
		accessTTL:    accessTTL,
		challengeTTL: challengeTTL,
		issuer:       issuer,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *JWTService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Issue firma un access token para subjectID con el rol indicado.
func (s *JWTService) Issue(subjectID, role string) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", ErrJWTInvalid
	}
	return s.signToken(subjectID, role, tokenTypeAccess, s.accessTTL)
}

// Verify valida firma, emisor, tipo y expiración de un access token.
func (s *JWTService) Verify(token string) (Claims, error) {
	return s.verifyTyped(token, tokenTypeAccess)
}

// IssueChallenge firma el token de login pendiente que exige /auth/verify-2fa.
func (s *JWTService) IssueChallenge(subjectID string) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", ErrJWTInvalid
	}
	return s.signToken(subjectID, "", tokenTypeChallenge, s.challengeTTL)
}

func (s *JWTService) VerifyChallenge(token string) (Claims, error) {
	return s.verifyTyped(token, tokenTypeChallenge)
}

func (s *JWTService) verifyTyped(token, tokenType string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(token) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenType {
		return Claims{}, ErrJWTInvalid
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) signToken(subjectID, role, tokenType string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	now := s.now()
	claims := Claims{
		SubjectID: subjectID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.SubjectID) == "" {
		return false
	}
	if claims.Subject != claims.SubjectID {
		return false
	}
	if claims.IssuedAt == nil || !claims.ExpiresAtTime().After(claims.IssuedAtTime()) {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
