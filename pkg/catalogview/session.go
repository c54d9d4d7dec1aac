package catalogview

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Skotchmaster/ean_catalog/pkg/catalogclient"
	"github.com/Skotchmaster/ean_catalog/pkg/transport"
)

// AuthAPI is the part of catalogclient.Client the session needs.
type AuthAPI interface {
	Me(ctx context.Context) (*transport.User, error)
	Login(ctx context.Context, username, password string) (*transport.User, error)
	Logout(ctx context.Context) error
}

const unloadTimeout = 5 * time.Second

// Session is the client's view of who is logged in. While a user is held an
// InactivityGuard runs and logs the user out when it fires.
type Session struct {
	api AuthAPI

	mu       sync.Mutex
	user     *transport.User
	loading  bool
	guard    *InactivityGuard
	onChange func(*transport.User)

	pending sync.WaitGroup
}

type SessionOption func(*Session)

func WithIdleTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.guard = NewInactivityGuard(d, s.idle)
	}
}

// WithOnChange registers a callback run after every login or logout, with
// nil meaning logged out.
func WithOnChange(fn func(*transport.User)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

func NewSession(api AuthAPI, opts ...SessionOption) *Session {
	s := &Session{api: api, loading: true}
	s.guard = NewInactivityGuard(InactivityTimeout, s.idle)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) User() *transport.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Loading is true until Init has finished.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Init restores the session from the server. A 401 is not an error; it just
// leaves the session empty.
func (s *Session) Init(ctx context.Context) error {
	u, err := s.api.Me(ctx)

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()

	if err != nil {
		s.set(nil)
		if catalogclient.IsStatus(err, http.StatusUnauthorized) {
			return nil
		}
		return err
	}
	s.set(u)
	return nil
}

func (s *Session) Login(ctx context.Context, username, password string) (*transport.User, error) {
	u, err := s.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s.set(u)
	return u, nil
}

// Logout always drops the local user, even when the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.set(nil)
	return s.api.Logout(ctx)
}

// Unload is the page-close path: local state is dropped at once and the
// logout request is sent in the background.
func (s *Session) Unload() {
	s.set(nil)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
		defer cancel()
		_ = s.api.Logout(ctx)
	}()
}

func (s *Session) Activity(ev Event) {
	s.guard.Activity(ev)
}

// Close stops the guard and waits for background logouts.
func (s *Session) Close() {
	s.guard.Stop()
	s.pending.Wait()
}

func (s *Session) idle() {
	ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
	defer cancel()
	_ = s.Logout(ctx)
}

func (s *Session) set(u *transport.User) {
	s.mu.Lock()
	s.user = u
	cb := s.onChange
	s.mu.Unlock()

	if u != nil {
		s.guard.Start()
	} else {
		s.guard.Stop()
	}
	if cb != nil {
		cb(u)
	}
}
