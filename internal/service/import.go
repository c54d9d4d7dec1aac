package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/ean_catalog/internal/logging"
	"github.com/Skotchmaster/ean_catalog/internal/models"
	"github.com/Skotchmaster/ean_catalog/pkg/transport"
)

const (
	DefaultImportBatchSize = transport.MinImportBatch
	MaxImportBatchSize     = transport.MaxImportBatch
)

// ImportRow is one spreadsheet line. Line is the 1-based sheet row; zero means
// the position in the slice plus two, since row 1 holds the header.
type ImportRow struct {
	Line         int
	SKU          string
	Descricao    string
	CodigoBarras string
}

type ImportReport struct {
	Success int      `json:"success"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors"`
}

type ProgressFunc func(done, total int)

func (s *CatalogService) batchSize() int {
	n := s.ImportBatchSize
	if n < DefaultImportBatchSize {
		return DefaultImportBatchSize
	}
	if n > MaxImportBatchSize {
		return MaxImportBatchSize
	}
	return n
}

// Import validates rows one by one and upserts the valid ones in batches.
// A failing batch is reported and the remaining batches still run.
func (s *CatalogService) Import(ctx context.Context, rows []ImportRow, progress ProgressFunc) *ImportReport {
	ctx = logging.WithAttrs(ctx, "svc", "catalog.import", "import_rows", len(rows))
	l := logging.FromContext(ctx)

	report := &ImportReport{Total: len(rows), Errors: []string{}}

	valid := make([]models.Product, 0, len(rows))
	for i, r := range rows {
		line := r.Line
		if line <= 0 {
			line = i + 2
		}
		p := models.Product{
			SKU:          strings.TrimSpace(r.SKU),
			Descricao:    strings.TrimSpace(r.Descricao),
			CodigoBarras: strings.TrimSpace(r.CodigoBarras),
		}
		if p.SKU == "" || p.Descricao == "" || p.CodigoBarras == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: missing required fields (SKU, Descricao, CodigoBarras)", line))
			continue
		}
		valid = append(valid, p)
	}

	size := s.batchSize()
	batches := (len(valid) + size - 1) / size
	for b := 0; b < batches; b++ {
		end := min((b+1)*size, len(valid))
		chunk := valid[b*size : end]
		items := dedupeBySKU(chunk)

		if err := s.Repo.UpsertProducts(ctx, items); err != nil {
			l.Warn("import_batch_failed", "batch", b+1, "rows", len(chunk), "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("batch %d: %s", b+1, ErrStoreUnavailable))
		} else {
			report.Success += len(chunk)
			s.afterImportBatch(ctx, items)
		}

		if progress != nil {
			progress(b+1, batches)
		}
	}

	l.Info("import_finished", "total", report.Total, "success", report.Success, "errors", len(report.Errors))
	return report
}

// dedupeBySKU keeps the last occurrence of every sku, in first-seen order.
// A single upsert statement cannot touch the same key twice.
func dedupeBySKU(items []models.Product) []models.Product {
	pos := make(map[string]int, len(items))
	out := make([]models.Product, 0, len(items))
	for _, p := range items {
		if i, ok := pos[p.SKU]; ok {
			out[i] = p
			continue
		}
		pos[p.SKU] = len(out)
		out = append(out, p)
	}
	return out
}

func (s *CatalogService) afterImportBatch(ctx context.Context, items []models.Product) {
	if s.Index != nil {
		if err := s.Index.Bulk(ctx, items); err != nil {
			s.markIndexStale()
			logging.FromContext(ctx).Warn("index_bulk_failed", "rows", len(items), "error", err)
		}
	}

	skus := make([]string, len(items))
	for i, p := range items {
		skus[i] = p.SKU
	}
	s.publish(ctx, EventProductsImported, map[string]any{
		"type":  EventProductsImported,
		"count": len(items),
		"skus":  skus,
	})
}
