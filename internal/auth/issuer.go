package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"quiz-attempt-service/internal/domain"
)

const issuerName = "quiz-attempt-service"

// TokenType separates access from refresh tokens so one cannot stand in for
// the other even if the secrets were ever shared.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongToken   = errors.New("wrong token type")
)

type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	Type  TokenType   `json:"typ"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the caller identity.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{ID: c.Subject, Email: c.Email, Role: c.Role}
}

// Issuer signs and verifies HS256 access and refresh tokens.
type Issuer struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	return &Issuer{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (i *Issuer) IssueAccess(id domain.Identity) (string, error) {
	return i.sign(id, TokenAccess, i.accessKey, i.accessTTL)
}

func (i *Issuer) IssueRefresh(id domain.Identity) (string, error) {
	return i.sign(id, TokenRefresh, i.refreshKey, i.refreshTTL)
}

func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, TokenAccess, i.accessKey)
}

func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, TokenRefresh, i.refreshKey)
}

// Refresh verifies a refresh token and mints a new access token for the same identity.
func (i *Issuer) Refresh(refreshToken string) (string, domain.Identity, error) {
	claims, err := i.ParseRefresh(refreshToken)
	if err != nil {
		return "", domain.Identity{}, err
	}
	id := claims.Identity()
	access, err := i.IssueAccess(id)
	return access, id, err
}

// AccessTTL reports the lifetime of freshly issued access tokens.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL reports the lifetime of freshly issued refresh tokens.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) sign(id domain.Identity, typ TokenType, key []byte, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		Email: id.Email,
		Role:  id.Role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(key)
}

func (i *Issuer) parse(token string, typ TokenType, key []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != typ {
		return nil, ErrWrongToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
