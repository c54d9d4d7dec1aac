package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/ean_catalog/internal/logging"
)

const indexSyncPage = 500

var errIndexNotConfigured = errors.New("search index is not configured")

// IndexReady reports whether quick search may be answered by the index.
func (s *CatalogService) IndexReady() bool {
	return s.Index != nil && s.indexSynced.Load()
}

func (s *CatalogService) markIndexStale() {
	s.indexFailures.Add(1)
	s.indexSynced.Store(false)
}

func (s *CatalogService) addPendingDelete(sku string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.pendingDeletes == nil {
		s.pendingDeletes = make(map[string]struct{})
	}
	s.pendingDeletes[sku] = struct{}{}
}

// retryDeletes removes skus whose earlier delete failed. Products created again
// since then are written back by the copy that follows.
func (s *CatalogService) retryDeletes(ctx context.Context) error {
	s.pendingMu.Lock()
	skus := make([]string, 0, len(s.pendingDeletes))
	for sku := range s.pendingDeletes {
		skus = append(skus, sku)
	}
	s.pendingMu.Unlock()

	for _, sku := range skus {
		if err := s.Index.Delete(ctx, sku); err != nil {
			return fmt.Errorf("index delete %q: %w", sku, err)
		}
		s.pendingMu.Lock()
		delete(s.pendingDeletes, sku)
		s.pendingMu.Unlock()
	}
	return nil
}

// SyncIndex copies every product from the database into the index and returns
// how many were written. Until it succeeds QuickSearch reads the database.
func (s *CatalogService) SyncIndex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, errIndexNotConfigured
	}
	ctx = logging.WithAttrs(ctx, "svc", "catalog.index_sync")
	l := logging.FromContext(ctx)

	failures := s.indexFailures.Load()
	if err := s.retryDeletes(ctx); err != nil {
		s.indexSynced.Store(false)
		l.Warn("index_sync_failed", "synced", 0, "error", err)
		return 0, err
	}

	synced := 0
	for offset := 0; ; offset += indexSyncPage {
		total, items, err := s.Repo.SearchProducts(ctx, "", false, offset, indexSyncPage)
		if err != nil {
			s.indexSynced.Store(false)
			l.Warn("index_sync_failed", "synced", synced, "error", err)
			return synced, storeError(err)
		}
		if len(items) > 0 {
			if err := s.Index.Bulk(ctx, items); err != nil {
				s.markIndexStale()
				l.Warn("index_sync_failed", "synced", synced, "error", err)
				return synced, fmt.Errorf("index bulk: %w", err)
			}
			synced += len(items)
		}
		if len(items) < indexSyncPage || int64(offset+len(items)) >= total {
			break
		}
	}

	// A write that failed while the copy was running may not be covered by it.
	if s.indexFailures.Load() != failures {
		l.Warn("index_sync_incomplete", "synced", synced, "reason", "index write failed during sync")
		return synced, nil
	}
	s.indexSynced.Store(true)
	l.Info("index_sync_finished", "synced", synced)
	return synced, nil
}
