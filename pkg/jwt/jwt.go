package jwt

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carried by a session cookie. The session id itself is opaque; the
// signature only proves the cookie was issued by this process (or a peer
// sharing the secret).
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Manager signs and validates session cookies with HMAC-SHA256.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	now      func() time.Time
}

// NewManager creates a new cookie manager. An empty secret gets a random one,
// which invalidates every cookie on restart.
func NewManager(secret string, lifetime time.Duration, issuer string) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		key = []byte(hex.EncodeToString(buf))
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}

	return &Manager{
		secret:   key,
		lifetime: lifetime,
		issuer:   issuer,
		now:      time.Now,
	}, nil
}

// Lifetime returns how long issued tokens stay valid.
func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}

// Sign issues a token for sessionID.
func (m *Manager) Sign(sessionID string) (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate checks the signature and expiry of tokenString and returns the
// session id it carries.
func (m *Manager) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", ErrInvalidToken
	}

	return claims.SessionID, nil
}
