package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/ean_catalog/internal/events"
	"github.com/Skotchmaster/ean_catalog/internal/searchindex"
	"github.com/Skotchmaster/ean_catalog/internal/service"
)

// newCatalog builds the catalog service with the kafka producer and search
// index when they are configured. The returned func closes what was opened.
func (a *app) newCatalog(ctx context.Context, store service.ProductStore) (*service.CatalogService, func(), error) {
	cfg := a.cfg
	l := a.logger

	catalog := &service.CatalogService{Repo: store, ImportBatchSize: cfg.ImportBatchSize}
	cleanup := func() {}

	if len(cfg.KafkaBrokers) > 0 {
		prod, err := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		cleanup = func() {
			if err := prod.Close(); err != nil {
				l.Error("kafka_close_failed", "error", err)
			}
		}
		catalog.Events = prod
		l.Info("product_events_enabled", "topic", cfg.KafkaTopic)
	}

	if cfg.ESURL != "" {
		es, err := searchindex.NewClient(searchindex.ClientConfig{
			URL:      cfg.ESURL,
			Username: cfg.ESUser,
			Password: cfg.ESPassword,
		}, l)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("elasticsearch client: %w", err)
		}
		idx := searchindex.New(es, cfg.ESIndex)
		if err := idx.EnsureIndex(ctx); err != nil {
			l.Warn("search_index_disabled", "reason", "ensure index failed", "error", err)
		} else {
			catalog.Index = idx
		}
	}

	return catalog, cleanup, nil
}

// keepIndexSynced copies the product table into the index right away and then
// once per interval until ctx is done. A non-positive interval syncs once.
func keepIndexSynced(ctx context.Context, catalog *service.CatalogService, interval time.Duration) {
	if catalog.Index == nil {
		return
	}
	if _, err := catalog.SyncIndex(ctx); err != nil && ctx.Err() != nil {
		return
	}
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = catalog.SyncIndex(ctx)
		}
	}
}
