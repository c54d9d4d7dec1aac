// Package spreadsheet converts between xlsx workbooks and import rows.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Skotchmaster/ean_catalog/internal/service"
)

const (
	TemplateSheet = "Produtos"
	ContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	ErrEmptyWorkbook = errors.New("workbook has no sheets")
	ErrNoRows        = errors.New("sheet has no data rows")
)

var Header = []string{"SKU", "Descricao", "CodigoBarras"}

var templateRows = [][]any{
	{"65041", "PARAFUSO SEXTAVADO 1/4 X 2", "7891234650411"},
	{"65107", "PORCA SEXTAVADA 1/4", "7891234651074"},
	{"65109", "ARRUELA LISA 1/4", "7891234651098"},
}

var headerNormalizer = strings.NewReplacer(" ", "", "_", "", "-", "", "ç", "c", "ã", "a", "ó", "o", "é", "e")

func normalizeHeader(s string) string {
	return headerNormalizer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

type columns struct{ sku, descricao, codigo int }

func detectColumns(header []string) columns {
	cols := columns{sku: -1, descricao: -1, codigo: -1}
	for i, h := range header {
		switch normalizeHeader(h) {
		case "sku":
			cols.sku = i
		case "descricao", "description":
			cols.descricao = i
		case "codigobarras", "codigodebarras", "ean", "barcode":
			cols.codigo = i
		}
	}
	if cols.sku < 0 || cols.descricao < 0 || cols.codigo < 0 {
		return columns{sku: 0, descricao: 1, codigo: 2}
	}
	return cols
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// ReadRows reads the first sheet. Row 1 is the header; columns are matched by
// header name and fall back to SKU, Descricao, CodigoBarras order. Blank lines
// are skipped and every row keeps its sheet line number.
func ReadRows(r io.Reader) ([]service.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrNoRows
	}

	cols := detectColumns(rows[0])
	out := make([]service.ImportRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ir := service.ImportRow{
			Line:         i + 2,
			SKU:          cell(row, cols.sku),
			Descricao:    cell(row, cols.descricao),
			CodigoBarras: cell(row, cols.codigo),
		}
		if ir.SKU == "" && ir.Descricao == "" && ir.CodigoBarras == "" {
			continue
		}
		out = append(out, ir)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// WriteTemplate writes an example workbook with the expected header.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return err
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(TemplateSheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range templateRows {
		if err := f.SetSheetRow(TemplateSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	f.SetColWidth(TemplateSheet, "A", "A", 15)
	f.SetColWidth(TemplateSheet, "B", "B", 50)
	f.SetColWidth(TemplateSheet, "C", "C", 20)

	return f.Write(w)
}
