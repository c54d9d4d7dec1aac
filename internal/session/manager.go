// Package session issues and validates the client-held login token.
//
// The token is an HS256 JWT: readable by anyone holding it, tamper-evident,
// and only invalidated by age. There is no server-side revocation list.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpired         = errors.New("token expired")
)

const (
	CookieName = "auth-token"
	DefaultTTL = 7 * 24 * time.Hour
)

type Session struct {
	UserID      uint      `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"nome,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func NewManager(secret []byte, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{secret: secret, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) Issue(userID uint, username, displayName string) (string, *Session, error) {
	issued := m.now().UTC().Truncate(time.Second)
	claims := Claims{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatUint(uint64(userID), 10),
			IssuedAt: jwt.NewNumericDate(issued),
		},
	}

	token, err := signClaims(claims, m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}

	return token, &Session{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		IssuedAt:    issued,
	}, nil
}

// Validate accepts a token while now - issuedAt <= ttl.
func (m *Manager) Validate(token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := ClaimsFromToken(token, m.secret, m.now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.IssuedAt == nil || claims.UserID == 0 || claims.Username == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}

	issued := claims.IssuedAt.Time
	if m.now().Sub(issued) > m.ttl {
		return nil, ErrExpired
	}

	return &Session{
		UserID:      claims.UserID,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		IssuedAt:    issued,
	}, nil
}

func (m *Manager) FromRequest(r *http.Request) (*Session, error) {
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return nil, ErrUnauthenticated
	}
	return m.Validate(ck.Value)
}

func (m *Manager) Cookie(token string) *http.Cookie {
	return CreateCookie(CookieName, token, "/", m.ttl, m.secure)
}

func (m *Manager) ClearCookie() *http.Cookie {
	return DeleteCookie(CookieName, "/", m.secure)
}
