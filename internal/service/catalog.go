package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/ean_catalog/internal/logging"
	"github.com/Skotchmaster/ean_catalog/internal/models"
	"github.com/Skotchmaster/ean_catalog/internal/repo"
	"github.com/Skotchmaster/ean_catalog/internal/util"
)

const (
	EventProductCreated   = "product_created"
	EventProductUpdated   = "product_updated"
	EventProductDeleted   = "product_deleted"
	EventProductsImported = "products_imported"
)

type ProductStore interface {
	SearchProducts(ctx context.Context, q string, allFields bool, offset, limit int) (int64, []models.Product, error)
	CreateProduct(ctx context.Context, prod *models.Product) error
	UpdateProduct(ctx context.Context, prod *models.Product) error
	DeleteProduct(ctx context.Context, sku string) error
	UpsertProducts(ctx context.Context, items []models.Product) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
}

// ProductIndex is a secondary copy of the product table used for quick search.
type ProductIndex interface {
	Upsert(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, sku string) error
	Bulk(ctx context.Context, items []models.Product) error
	Search(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error)
}

type CatalogService struct {
	Repo ProductStore

	// Events and Index are optional.
	Events EventPublisher
	Index  ProductIndex

	ImportBatchSize int

	// indexSynced is set by a complete SyncIndex and cleared by any failed
	// index write. indexFailures lets a running sync notice such a failure.
	indexSynced   atomic.Bool
	indexFailures atomic.Uint64

	// pendingDeletes holds skus whose index delete failed. SyncIndex retries them.
	pendingMu      sync.Mutex
	pendingDeletes map[string]struct{}
}

type ProductInput struct {
	SKU          string
	Descricao    string
	CodigoBarras string
}

func (in ProductInput) normalized() ProductInput {
	return ProductInput{
		SKU:          strings.TrimSpace(in.SKU),
		Descricao:    strings.TrimSpace(in.Descricao),
		CodigoBarras: strings.TrimSpace(in.CodigoBarras),
	}
}

type SearchResult struct {
	Items   []models.Product
	Total   int64
	Page    int
	HasMore bool
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// normalizePage treats negative pages as the first one and rejects pages whose
// offset would not fit in an int.
func normalizePage(page int) (int, error) {
	if page < 0 {
		return 0, nil
	}
	if !util.ValidPage(page, util.PageSize) {
		return 0, fmt.Errorf("%w: page %d is out of range", ErrValidation, page)
	}
	return page, nil
}

// Search is the management table query: substring match on sku only.
func (s *CatalogService) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	return s.searchStore(ctx, strings.TrimSpace(query), false, page)
}

// QuickSearch matches sku, descricao and codigo_barras. An empty query yields
// nothing. The index answers only while it is in sync with the database.
func (s *CatalogService) QuickSearch(ctx context.Context, query string, page int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	page, err := normalizePage(page)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return &SearchResult{Items: []models.Product{}, Page: page}, nil
	}

	if s.IndexReady() {
		offset, limit := util.Calculate(page, util.PageSize)
		total, items, err := s.Index.Search(ctx, query, offset, limit)
		if err == nil {
			return &SearchResult{
				Items:   items,
				Total:   total,
				Page:    page,
				HasMore: util.HasMore(page, limit, len(items), total),
			}, nil
		}
		logging.FromContext(ctx).Warn("quick_search_index_failed", "reason", "falling back to database", "error", err)
	}

	return s.searchStore(ctx, query, true, page)
}

func (s *CatalogService) searchStore(ctx context.Context, query string, allFields bool, page int) (*SearchResult, error) {
	page, err := normalizePage(page)
	if err != nil {
		return nil, err
	}
	offset, limit := util.Calculate(page, util.PageSize)

	total, items, err := s.Repo.SearchProducts(ctx, query, allFields, offset, limit)
	if err != nil {
		return nil, storeError(err)
	}

	return &SearchResult{
		Items:   items,
		Total:   total,
		Page:    page,
		HasMore: util.HasMore(page, limit, len(items), total),
	}, nil
}

func (s *CatalogService) Add(ctx context.Context, in ProductInput) (*models.Product, error) {
	in = in.normalized()
	if in.SKU == "" || in.Descricao == "" || in.CodigoBarras == "" {
		return nil, fmt.Errorf("%w: sku, descricao and codigo_barras are required", ErrValidation)
	}

	prod := &models.Product{SKU: in.SKU, Descricao: in.Descricao, CodigoBarras: in.CodigoBarras}
	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: sku %q", ErrConflict, in.SKU)
		}
		return nil, storeError(err)
	}

	s.indexUpsert(ctx, *prod)
	s.publish(ctx, prod.SKU, productEvent(EventProductCreated, *prod))
	return prod, nil
}

// Edit rewrites descricao and codigo_barras. The sku is only the lookup key.
func (s *CatalogService) Edit(ctx context.Context, sku string, in ProductInput) (*models.Product, error) {
	in = in.normalized()
	sku = strings.TrimSpace(sku)
	if sku == "" || in.Descricao == "" || in.CodigoBarras == "" {
		return nil, fmt.Errorf("%w: descricao and codigo_barras are required", ErrValidation)
	}

	prod := &models.Product{SKU: sku, Descricao: in.Descricao, CodigoBarras: in.CodigoBarras}
	if err := s.Repo.UpdateProduct(ctx, prod); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sku %q", ErrNotFound, sku)
		}
		return nil, storeError(err)
	}

	s.indexUpsert(ctx, *prod)
	s.publish(ctx, prod.SKU, productEvent(EventProductUpdated, *prod))
	return prod, nil
}

func (s *CatalogService) Delete(ctx context.Context, sku string) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return fmt.Errorf("%w: sku is required", ErrValidation)
	}

	if err := s.Repo.DeleteProduct(ctx, sku); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: sku %q", ErrNotFound, sku)
		}
		return storeError(err)
	}

	if s.Index != nil {
		if err := s.Index.Delete(ctx, sku); err != nil {
			s.addPendingDelete(sku)
			s.markIndexStale()
			logging.FromContext(ctx).Warn("index_delete_failed", "sku", sku, "error", err)
		}
	}
	s.publish(ctx, sku, map[string]any{
		"type": EventProductDeleted,
		"sku":  sku,
	})
	return nil
}

func productEvent(kind string, p models.Product) map[string]any {
	return map[string]any{
		"type":          kind,
		"sku":           p.SKU,
		"descricao":     p.Descricao,
		"codigo_barras": p.CodigoBarras,
	}
}

func (s *CatalogService) indexUpsert(ctx context.Context, p models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Upsert(ctx, p); err != nil {
		s.markIndexStale()
		logging.FromContext(ctx).Warn("index_upsert_failed", "sku", p.SKU, "error", err)
	}
}

func (s *CatalogService) publish(ctx context.Context, key string, event map[string]any) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Events.PublishEvent(ctx, key, event); err != nil {
		logging.FromContext(ctx).Error("publish_event_failed", "type", event["type"], "key", key, "error", err)
	}
}
