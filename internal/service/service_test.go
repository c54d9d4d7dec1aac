package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/ean_catalog/internal/db"
	"github.com/Skotchmaster/ean_catalog/internal/models"
	"github.com/Skotchmaster/ean_catalog/internal/repo"
)

func newTestRepo(t *testing.T) *repo.GormRepo {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, db.Migrate(ctx, gdb))
	return &repo.GormRepo{DB: gdb}
}

type recordedEvent struct {
	Key   string
	Event map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *fakePublisher) PublishEvent(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Key: key, Event: event.(map[string]any)})
	return p.err
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event["type"].(string)
	}
	return out
}

type fakeIndex struct {
	docs      map[string]models.Product
	writeErr  error
	searchErr error
	searched  int
}

func newFakeIndex() *fakeIndex { return &fakeIndex{docs: map[string]models.Product{}} }

func (f *fakeIndex) Upsert(_ context.Context, p models.Product) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.docs[p.SKU] = p
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, sku string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	delete(f.docs, sku)
	return nil
}

func (f *fakeIndex) Bulk(_ context.Context, items []models.Product) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	for _, p := range items {
		f.docs[p.SKU] = p
	}
	return nil
}

func (f *fakeIndex) Search(_ context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	f.searched++
	if f.searchErr != nil {
		return 0, nil, f.searchErr
	}
	p, ok := f.docs[q]
	if !ok || offset > 0 {
		return 0, []models.Product{}, nil
	}
	return 1, []models.Product{p}, nil
}

// brokenStore fails every call.
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
