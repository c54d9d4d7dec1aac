package catalogview

import (
	"context"
	"sync"

	"github.com/Skotchmaster/ean_catalog/pkg/transport"
)

type Searcher interface {
	Search(ctx context.Context, query string, page int) (*transport.SearchResponse, error)
}

// View is a copy of the table state safe to hand to a renderer.
type View struct {
	Query   string
	Rows    []transport.Product
	Total   int64
	Page    int
	HasMore bool
	Loading bool
}

// Table accumulates result pages for one query. Every Search starts a new
// generation; a response is applied only if its generation is still current,
// so a slow answer to an old query never overwrites a newer one.
type Table struct {
	api Searcher

	mu          sync.Mutex
	generation  uint64
	query       string
	rows        []transport.Product
	total       int64
	page        int
	hasMore     bool
	loading     bool
	loadingMore bool
}

func NewTable(api Searcher) *Table {
	return &Table{api: api}
}

// Search replaces the rows with page 0 of query.
func (t *Table) Search(ctx context.Context, query string) error {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.query = query
	t.loading = true
	t.loadingMore = false
	t.mu.Unlock()

	res, err := t.api.Search(ctx, query, 0)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation {
		return nil
	}
	t.loading = false
	if err != nil {
		return err
	}

	t.rows = append([]transport.Product(nil), res.Items...)
	t.total = res.Total
	t.page = 0
	t.hasMore = res.HasMore
	return nil
}

// LoadMore appends the next page. It does nothing when there is no more data
// or another LoadMore is in flight.
func (t *Table) LoadMore(ctx context.Context) error {
	t.mu.Lock()
	if !t.hasMore || t.loading || t.loadingMore {
		t.mu.Unlock()
		return nil
	}
	gen := t.generation
	query := t.query
	next := t.page + 1
	t.loadingMore = true
	t.mu.Unlock()

	res, err := t.api.Search(ctx, query, next)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation {
		return nil
	}
	t.loadingMore = false
	if err != nil {
		return err
	}

	t.rows = append(t.rows, res.Items...)
	t.total = res.Total
	t.page = next
	t.hasMore = res.HasMore
	return nil
}

// ApplyEdit patches a row after the server accepted the edit.
func (t *Table) ApplyEdit(p transport.Product) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.rows {
		if t.rows[i].SKU == p.SKU {
			t.rows[i] = p
			return
		}
	}
}

// ApplyDelete drops a row after the server deleted it.
func (t *Table) ApplyDelete(sku string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.rows {
		if t.rows[i].SKU == sku {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			if t.total > 0 {
				t.total--
			}
			return
		}
	}
}

func (t *Table) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	return View{
		Query:   t.query,
		Rows:    append([]transport.Product(nil), t.rows...),
		Total:   t.total,
		Page:    t.page,
		HasMore: t.hasMore,
		Loading: t.loading || t.loadingMore,
	}
}
