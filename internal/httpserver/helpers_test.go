package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/ean_catalog/internal/db"
	"github.com/Skotchmaster/ean_catalog/internal/logging"
	"github.com/Skotchmaster/ean_catalog/internal/metrics"
	"github.com/Skotchmaster/ean_catalog/internal/models"
	"github.com/Skotchmaster/ean_catalog/internal/repo"
	"github.com/Skotchmaster/ean_catalog/internal/service"
	"github.com/Skotchmaster/ean_catalog/internal/session"
)

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

type brokenStore struct{}

var errBroken = errors.New("connection refused")

func (brokenStore) SearchProducts(context.Context, string, bool, int, int) (int64, []models.Product, error) {
	return 0, nil, errBroken
}
func (brokenStore) CreateProduct(context.Context, *models.Product) error   { return errBroken }
func (brokenStore) UpdateProduct(context.Context, *models.Product) error   { return errBroken }
func (brokenStore) DeleteProduct(context.Context, string) error            { return errBroken }
func (brokenStore) UpsertProducts(context.Context, []models.Product) error { return errBroken }
func (brokenStore) FindByUsername(context.Context, string) (*models.User, error) {
	return nil, errBroken
}
func (brokenStore) CreateUserIfNotExists(context.Context, *models.User) error { return errBroken }

type testEnv struct {
	T        *testing.T
	E        *echo.Echo
	Repo     *repo.GormRepo
	Sessions *session.Manager
	Limiter  *fakeLimiter
	Metrics  *metrics.Metrics
	now      time.Time
}

func newTestRepo(t *testing.T) *repo.GormRepo {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, db.Migrate(ctx, gdb))
	return &repo.GormRepo{DB: gdb}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		T:       t,
		Repo:    newTestRepo(t),
		Limiter: &fakeLimiter{allow: true},
		Metrics: metrics.New("test", prometheus.NewRegistry()),
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.Sessions = session.NewManager([]byte("test-secret"), 7*24*time.Hour,
		session.WithClock(func() time.Time { return env.now }))

	authSvc := &service.AuthService{Repo: env.Repo, Sessions: env.Sessions}
	_, err := authSvc.SeedUser(context.Background(), "admin", "admin123", "Administrador", false)
	require.NoError(t, err)

	env.E = New(&Deps{
		AuthHandler: &AuthHTTP{
			Svc:      authSvc,
			Sessions: env.Sessions,
			Limiter:  env.Limiter,
			Metrics:  env.Metrics,
		},
		CatalogHandler: &CatalogHTTP{
			Svc:     &service.CatalogService{Repo: env.Repo},
			Metrics: env.Metrics,
		},
		Sessions: env.Sessions,
		Logger:   logging.Discard(),
		Metrics:  env.Metrics,
	})
	return env
}

func (env *testEnv) advance(d time.Duration) { env.now = env.now.Add(d) }

func (env *testEnv) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	env.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login() *http.Cookie {
	env.T.Helper()
	rec := env.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "admin123"})
	require.Equal(env.T, http.StatusOK, rec.Code, rec.Body.String())
	ck := findCookie(rec, session.CookieName)
	require.NotNil(env.T, ck)
	return ck
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
