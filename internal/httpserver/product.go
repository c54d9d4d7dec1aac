package httpserver

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/ean_catalog/internal/logging"
	"github.com/Skotchmaster/ean_catalog/internal/metrics"
	"github.com/Skotchmaster/ean_catalog/internal/models"
	"github.com/Skotchmaster/ean_catalog/internal/service"
	"github.com/Skotchmaster/ean_catalog/internal/spreadsheet"
	"github.com/Skotchmaster/ean_catalog/internal/util"
	"github.com/Skotchmaster/ean_catalog/pkg/transport"
)

const (
	defaultMaxUploadBytes = 10 << 20
	templateFilename      = "template_produtos.xlsx"
)

type CatalogHTTP struct {
	Svc            *service.CatalogService
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
}

func productDTO(p models.Product) transport.Product {
	return transport.Product{SKU: p.SKU, Descricao: p.Descricao, CodigoBarras: p.CodigoBarras}
}

func searchDTO(res *service.SearchResult) transport.SearchResponse {
	items := make([]transport.Product, len(res.Items))
	for i, p := range res.Items {
		items[i] = productDTO(p)
	}
	return transport.SearchResponse{Items: items, Total: res.Total, Page: res.Page, HasMore: res.HasMore}
}

// skuParam undoes the escaping echo leaves in params when the request path
// carried encoded characters such as %2F.
func skuParam(c echo.Context) string {
	sku := c.Param("sku")
	if c.Request().URL.RawPath != "" {
		if u, err := url.PathUnescape(sku); err == nil {
			return u
		}
	}
	return sku
}

func (h *CatalogHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 0)
	res, err := h.Svc.Search(ctx, c.QueryParam("q"), page)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("search_products_failed", "status", 400, "reason", "page out of range", "page", page)
			return echo.NewHTTPError(http.StatusBadRequest, "page out of range")
		}
		l.Error("search_products_failed", "status", 503, "reason", "store unavailable", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, msgStoreUnavailable)
	}

	return c.JSON(http.StatusOK, searchDTO(res))
}

func (h *CatalogHTTP) QuickSearch(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.quick_search")

	page := util.ParseIntDefault(c.QueryParam("page"), 0)
	res, err := h.Svc.QuickSearch(ctx, c.QueryParam("q"), page)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("quick_search_failed", "status", 400, "reason", "page out of range", "page", page)
			return echo.NewHTTPError(http.StatusBadRequest, "page out of range")
		}
		l.Error("quick_search_failed", "status", 503, "reason", "store unavailable", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, msgStoreUnavailable)
	}

	return c.JSON(http.StatusOK, searchDTO(res))
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req transport.ProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("product_create_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	prod, err := h.Svc.Add(ctx, service.ProductInput{SKU: req.SKU, Descricao: req.Descricao, CodigoBarras: req.CodigoBarras})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("product_create_error", "status", 400, "reason", "missing fields")
			return echo.NewHTTPError(http.StatusBadRequest, "sku, descricao and codigo_barras are required")
		case errors.Is(err, service.ErrConflict):
			l.Warn("product_create_error", "status", 409, "reason", "duplicate sku", "sku", req.SKU)
			return echo.NewHTTPError(http.StatusConflict, "a product with this SKU already exists")
		default:
			l.Error("product_create_error", "status", 503, "reason", "store unavailable", "error", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, msgStoreUnavailable)
		}
	}

	l.Info("create_product_success", "sku", prod.SKU)
	return c.JSON(http.StatusCreated, productDTO(*prod))
}

func (h *CatalogHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update")

	sku := skuParam(c)

	var req transport.ProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("product_update_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	prod, err := h.Svc.Edit(ctx, sku, service.ProductInput{Descricao: req.Descricao, CodigoBarras: req.CodigoBarras})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("product_update_error", "status", 400, "reason", "missing fields")
			return echo.NewHTTPError(http.StatusBadRequest, "descricao and codigo_barras are required")
		case errors.Is(err, service.ErrNotFound):
			l.Warn("product_update_error", "status", 404, "reason", "product not found", "sku", sku)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		default:
			l.Error("product_update_error", "status", 503, "reason", "store unavailable", "error", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, msgStoreUnavailable)
		}
	}

	l.Info("update_product_success", "sku", prod.SKU)
	return c.JSON(http.StatusOK, productDTO(*prod))
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	sku := skuParam(c)
	if err := h.Svc.Delete(ctx, sku); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrValidation):
			l.Warn("product_delete_error", "status", 404, "reason", "product not found", "sku", sku)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		default:
			l.Error("product_delete_error", "status", 503, "reason", "store unavailable", "error", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, msgStoreUnavailable)
		}
	}

	l.Info("delete_product_success", "sku", sku)
	return c.NoContent(http.StatusNoContent)
}

// ImportProducts accepts either a multipart upload in field "file" or a JSON
// body {"rows": [...]}, the latter being how clients send one batch at a time.
func (h *CatalogHTTP) ImportProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.import")

	var (
		rows []service.ImportRow
		err  error
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		rows, err = h.rowsFromUpload(c)
	} else {
		rows, err = rowsFromJSON(c)
	}
	if err != nil {
		l.Warn("import_error", "status", 400, "reason", "unreadable input", "error", err)
		return err
	}
	if len(rows) == 0 {
		l.Warn("import_error", "status", 400, "reason", "no rows")
		return echo.NewHTTPError(http.StatusBadRequest, "no rows to import")
	}

	report := h.Svc.Import(ctx, rows, nil)
	if h.Metrics != nil {
		h.Metrics.ObserveImport(report.Success, report.Total-report.Success)
	}

	l.Info("import_finished", "total", report.Total, "success", report.Success, "errors", len(report.Errors))
	return c.JSON(http.StatusOK, transport.ImportReport{
		Success: report.Success,
		Total:   report.Total,
		Errors:  report.Errors,
	})
}

func (h *CatalogHTTP) rowsFromUpload(c echo.Context) ([]service.ImportRow, error) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, limit)

	fh, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unsupported file type, use .xlsx")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
	}
	defer f.Close()

	rows, err := spreadsheet.ReadRows(f)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrNoRows) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "no rows to import")
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid spreadsheet")
	}
	return rows, nil
}

func rowsFromJSON(c echo.Context) ([]service.ImportRow, error) {
	var req transport.ImportRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	rows := make([]service.ImportRow, len(req.Rows))
	for i, r := range req.Rows {
		rows[i] = service.ImportRow{
			Line:         r.Line,
			SKU:          r.SKU,
			Descricao:    r.Descricao,
			CodigoBarras: r.CodigoBarras,
		}
	}
	return rows, nil
}

func (h *CatalogHTTP) Template(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "product.template")

	var buf bytes.Buffer
	if err := spreadsheet.WriteTemplate(&buf); err != nil {
		l.Error("template_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot build template")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+templateFilename+`"`)
	return c.Blob(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}
