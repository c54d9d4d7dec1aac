package spreadsheet

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Skotchmaster/ean_catalog/internal/service"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+1), &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadRows_ByHeaderName(t *testing.T) {
	buf := workbook(t,
		[]any{"Codigo Barras", "sku", "Descrição"},
		[]any{"7891000000011", " 65041 ", "Parafuso"},
		[]any{"", "65107", "Porca"},
	)

	rows, err := ReadRows(buf)
	require.NoError(t, err)
	assert.Equal(t, []service.ImportRow{
		{Line: 2, SKU: "65041", Descricao: "Parafuso", CodigoBarras: "7891000000011"},
		{Line: 3, SKU: "65107", Descricao: "Porca", CodigoBarras: ""},
	}, rows)
}

func TestReadRows_PositionalFallbackAndBlankLines(t *testing.T) {
	buf := workbook(t,
		[]any{"a", "b", "c"},
		[]any{"1", "one", "111"},
		[]any{nil, nil, nil},
		[]any{"3", "three", "333"},
	)

	rows, err := ReadRows(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, service.ImportRow{Line: 4, SKU: "3", Descricao: "three", CodigoBarras: "333"}, rows[1])
}

func TestReadRows_NumericCellsKeepDigits(t *testing.T) {
	buf := workbook(t,
		[]any{"SKU", "Descricao", "CodigoBarras"},
		[]any{65041, "Parafuso", 7891000000011},
	)

	rows, err := ReadRows(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "65041", rows[0].SKU)
	assert.Equal(t, "7891000000011", rows[0].CodigoBarras)
}

func TestReadRows_Errors(t *testing.T) {
	_, err := ReadRows(strings.NewReader("not a workbook"))
	require.Error(t, err)

	_, err = ReadRows(workbook(t, []any{"SKU", "Descricao", "CodigoBarras"}))
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestWriteTemplate_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{TemplateSheet}, f.GetSheetList())

	rows, err := ReadRows(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "65041", rows[0].SKU)
	assert.Equal(t, "65109", rows[2].SKU)
}
