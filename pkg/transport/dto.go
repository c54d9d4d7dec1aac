// Package transport holds the JSON bodies exchanged by the catalog API and its clients.
package transport

// Import batches hold between MinImportBatch and MaxImportBatch rows.
const (
	MinImportBatch = 50
	MaxImportBatch = 100
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Nome     string `json:"nome,omitempty"`
}

type LoginResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

type MeResponse struct {
	User User `json:"user"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Product struct {
	SKU          string `json:"sku"`
	Descricao    string `json:"descricao"`
	CodigoBarras string `json:"codigo_barras"`
}

// ProductRequest is the body of create and edit. Edit ignores SKU.
type ProductRequest struct {
	SKU          string `json:"sku"`
	Descricao    string `json:"descricao"`
	CodigoBarras string `json:"codigo_barras"`
}

type SearchResponse struct {
	Items   []Product `json:"items"`
	Total   int64     `json:"total"`
	Page    int       `json:"page"`
	HasMore bool      `json:"has_more"`
}

type ImportRow struct {
	Line         int    `json:"line,omitempty"`
	SKU          string `json:"sku"`
	Descricao    string `json:"descricao"`
	CodigoBarras string `json:"codigo_barras"`
}

type ImportRequest struct {
	Rows []ImportRow `json:"rows"`
}

type ImportReport struct {
	Success int      `json:"success"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors"`
}
