package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/ean_catalog/internal/db"
	"github.com/Skotchmaster/ean_catalog/internal/models"
	"github.com/Skotchmaster/ean_catalog/internal/repo"
	"github.com/Skotchmaster/ean_catalog/internal/service"
	"github.com/Skotchmaster/ean_catalog/internal/spreadsheet"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func useTempDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", path)
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ES_URL", "")
	return path
}

func TestTemplateCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "template.xlsx")

	stdout, err := runCLI(t, "template", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "template written")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := spreadsheet.ReadRows(f)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSeedAdminCommand(t *testing.T) {
	path := useTempDB(t)

	_, err := runCLI(t, "seed-admin")
	assert.EqualError(t, err, "username and password are required")

	stdout, err := runCLI(t, "seed-admin", "--password", "s3cret", "--nome", "Administrador", "--hash")
	require.NoError(t, err)
	assert.Contains(t, stdout, `user "admin" created`)

	stdout, err = runCLI(t, "seed-admin", "--password", "other")
	require.NoError(t, err)
	assert.Contains(t, stdout, "already exists")

	gdb, err := db.Open(context.Background(), db.DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close(gdb)
	u, err := (&repo.GormRepo{DB: gdb}).FindByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "Administrador", u.Nome)
	assert.NotEqual(t, "s3cret", u.Password)
}

func TestImportCommand(t *testing.T) {
	path := useTempDB(t)
	sheet := filepath.Join(t.TempDir(), "produtos.xlsx")
	_, err := runCLI(t, "template", sheet)
	require.NoError(t, err)

	stdout, err := runCLI(t, "import", sheet)
	require.NoError(t, err)
	assert.Contains(t, stdout, "batch 1/1")
	assert.Contains(t, stdout, "imported 3 of 3 rows")

	gdb, err := db.Open(context.Background(), db.DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close(gdb)
	total, _, err := (&repo.GormRepo{DB: gdb}).SearchProducts(context.Background(), "", false, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestImportCommand_MissingFile(t *testing.T) {
	useTempDB(t)
	_, err := runCLI(t, "import", filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}

func TestOpenDB_RequiresDatabaseURL(t *testing.T) {
	a := &app{}
	_, err := a.openDB(context.Background())
	assert.EqualError(t, err, "DATABASE_URL is not set")
}

// fakeES answers just enough of the Elasticsearch API for the import command
// and records every bulk body it receives.
type fakeES struct {
	mu    sync.Mutex
	bulks []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/_bulk"):
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bulks = append(f.bulks, string(body))
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"errors":false,"items":[]}`)
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	default:
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"}}`)
	}
}

func TestImportCommand_WritesSearchIndex(t *testing.T) {
	useTempDB(t)
	es := &fakeES{}
	srv := httptest.NewServer(es)
	t.Cleanup(srv.Close)
	t.Setenv("ES_URL", srv.URL)
	t.Setenv("ES_INDEX", "products")

	sheet := filepath.Join(t.TempDir(), "produtos.xlsx")
	_, err := runCLI(t, "template", sheet)
	require.NoError(t, err)

	stdout, err := runCLI(t, "import", sheet)
	require.NoError(t, err)
	assert.Contains(t, stdout, "imported 3 of 3 rows")

	es.mu.Lock()
	defer es.mu.Unlock()
	require.Len(t, es.bulks, 1)
	for _, sku := range []string{"65041", "65107", "65109"} {
		assert.Contains(t, es.bulks[0], `"_id":"`+sku+`"`)
	}
}

type memIndex struct {
	mu   sync.Mutex
	docs map[string]models.Product
}

func (m *memIndex) Upsert(_ context.Context, p models.Product) error {
	return m.Bulk(context.Background(), []models.Product{p})
}

func (m *memIndex) Delete(_ context.Context, sku string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, sku)
	return nil
}

func (m *memIndex) Bulk(_ context.Context, items []models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range items {
		m.docs[p.SKU] = p
	}
	return nil
}

func (m *memIndex) Search(context.Context, string, int, int) (int64, []models.Product, error) {
	return 0, nil, nil
}

func TestKeepIndexSynced(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, db.Migrate(ctx, gdb))
	store := &repo.GormRepo{DB: gdb}
	require.NoError(t, store.UpsertProducts(ctx, []models.Product{
		{SKU: "R-477", Descricao: "Rebite", CodigoBarras: "7894"},
	}))

	idx := &memIndex{docs: map[string]models.Product{}}
	catalog := &service.CatalogService{Repo: store, Index: idx}

	done := make(chan struct{})
	go func() {
		defer close(done)
		keepIndexSynced(ctx, catalog, time.Hour)
	}()

	require.Eventually(t, catalog.IndexReady, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	idx.mu.Lock()
	defer idx.mu.Unlock()
	assert.Contains(t, idx.docs, "R-477")
}

func TestKeepIndexSynced_NoIndex(t *testing.T) {
	catalog := &service.CatalogService{}
	keepIndexSynced(context.Background(), catalog, time.Hour)
	assert.False(t, catalog.IndexReady())
}
