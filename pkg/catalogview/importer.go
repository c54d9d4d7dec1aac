package catalogview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Skotchmaster/ean_catalog/pkg/transport"
)

const DefaultImportBatchSize = transport.MinImportBatch

var ErrImportRunning = errors.New("an import is already running")

type RowImporter interface {
	ImportRows(ctx context.Context, rows []transport.ImportRow) (*transport.ImportReport, error)
}

type ImportState int

const (
	ImportIdle ImportState = iota
	ImportRunning
	ImportDone
)

func (s ImportState) String() string {
	switch s {
	case ImportIdle:
		return "idle"
	case ImportRunning:
		return "importing"
	case ImportDone:
		return "done"
	}
	return fmt.Sprintf("ImportState(%d)", int(s))
}

type ImportStatus struct {
	State    ImportState
	Progress int
	Report   *transport.ImportReport
}

// Importer runs one spreadsheet import at a time. Rows are checked locally,
// then sent in batches, one request each; a failed batch is recorded and the
// run goes on. A started run cannot be cancelled.
type Importer struct {
	api       RowImporter
	batchSize int

	mu       sync.Mutex
	state    ImportState
	progress int
	report   *transport.ImportReport
}

// NewImporter clamps batchSize to [MinImportBatch, MaxImportBatch].
func NewImporter(api RowImporter, batchSize int) *Importer {
	batchSize = max(batchSize, transport.MinImportBatch)
	batchSize = min(batchSize, transport.MaxImportBatch)
	return &Importer{api: api, batchSize: batchSize}
}

func (im *Importer) Status() ImportStatus {
	im.mu.Lock()
	defer im.mu.Unlock()
	return ImportStatus{State: im.state, Progress: im.progress, Report: im.report}
}

// Reset returns a finished importer to Idle.
func (im *Importer) Reset() {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.state == ImportDone {
		im.state = ImportIdle
		im.progress = 0
		im.report = nil
	}
}

func (im *Importer) Run(ctx context.Context, rows []transport.ImportRow) (*transport.ImportReport, error) {
	im.mu.Lock()
	if im.state == ImportRunning {
		im.mu.Unlock()
		return nil, ErrImportRunning
	}
	im.state = ImportRunning
	im.progress = 0
	im.report = nil
	im.mu.Unlock()

	report := &transport.ImportReport{Total: len(rows), Errors: []string{}}

	valid := make([]transport.ImportRow, 0, len(rows))
	for i, r := range rows {
		r.SKU = strings.TrimSpace(r.SKU)
		r.Descricao = strings.TrimSpace(r.Descricao)
		r.CodigoBarras = strings.TrimSpace(r.CodigoBarras)
		if r.Line == 0 {
			r.Line = i + 2
		}
		if r.SKU == "" || r.Descricao == "" || r.CodigoBarras == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: missing required fields (SKU, Descricao, CodigoBarras)", r.Line))
			continue
		}
		valid = append(valid, r)
	}

	for start := 0; start < len(valid); start += im.batchSize {
		end := min(start+im.batchSize, len(valid))
		batch := start/im.batchSize + 1

		res, err := im.api.ImportRows(ctx, valid[start:end])
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("batch %d: %v", batch, err))
		} else {
			report.Success += res.Success
			for _, e := range res.Errors {
				report.Errors = append(report.Errors, renumberBatch(e, batch))
			}
		}

		im.mu.Lock()
		im.progress = min(end*100/len(valid), 100)
		im.mu.Unlock()
	}

	im.mu.Lock()
	im.state = ImportDone
	im.progress = 100
	im.report = report
	im.mu.Unlock()

	return report, nil
}

// renumberBatch rewrites the server's per-request batch number into the
// position of the request within the whole run.
func renumberBatch(msg string, batch int) string {
	if rest, ok := strings.CutPrefix(msg, "batch 1: "); ok {
		return fmt.Sprintf("batch %d: %s", batch, rest)
	}
	return msg
}
