package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewSecret returns nBytes of randomness, hex encoded.
func NewSecret(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32 // 256 бит по умолчанию
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Claims is the JWT payload of a dashboard session.
type Claims struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	RoleID int    `json:"role_id"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	Secret []byte
	TTL    time.Duration
	Leeway time.Duration
	Now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{Secret: []byte(secret), TTL: ttl, Leeway: 2 * time.Minute, Now: time.Now}
}

func (t *TokenIssuer) Issue(email, name string, roleID int) (string, time.Time, error) {
	now := t.Now()
	exp := now.Add(t.TTL)
	claims := Claims{
		Email:  email,
		Name:   name,
		RoleID: roleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies tokenStr and returns its claims. Only HMAC signatures are
// accepted.
func (t *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return t.Secret, nil
	},
		jwt.WithLeeway(t.Leeway),
		jwt.WithTimeFunc(t.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
