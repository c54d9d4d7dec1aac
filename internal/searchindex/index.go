// Package searchindex mirrors the product table into Elasticsearch and
// serves quick search from it.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/ean_catalog/internal/models"
)

var mapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"sku":           map[string]any{"type": "keyword"},
			"descricao":     map[string]any{"type": "keyword"},
			"codigo_barras": map[string]any{"type": "keyword"},
		},
	},
}

type Index struct {
	es   *elasticsearch.Client
	name string
}

func New(es *elasticsearch.Client, name string) *Index {
	return &Index{es: es, name: name}
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("es %s: %s: %s", op, res.Status(), strings.TrimSpace(string(body)))
}

func encode(v any) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &buf, nil
}

func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{i.name}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := encode(mapping)
	if err != nil {
		return err
	}
	res, err = i.es.Indices.Create(i.name,
		i.es.Indices.Create.WithContext(ctx),
		i.es.Indices.Create.WithBody(body),
	)
	if err != nil {
		return fmt.Errorf("es create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func (i *Index) Upsert(ctx context.Context, p models.Product) error {
	body, err := encode(p)
	if err != nil {
		return err
	}
	res, err := i.es.Index(i.name, body,
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(p.SKU),
	)
	if err != nil {
		return fmt.Errorf("es index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index", res)
	}
	return nil
}

// Delete treats a missing document as already deleted.
func (i *Index) Delete(ctx context.Context, sku string) error {
	res, err := i.es.Delete(i.name, sku, i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es delete: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}
	return nil
}

func bulkBody(index string, items []models.Product) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range items {
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": p.SKU}}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
	}
	return &buf, nil
}

func (i *Index) Bulk(ctx context.Context, items []models.Product) error {
	if len(items) == 0 {
		return nil
	}
	body, err := bulkBody(i.name, items)
	if err != nil {
		return err
	}
	res, err := i.es.Bulk(body, i.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es bulk: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("bulk", res)
	}

	var r struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return fmt.Errorf("es bulk: decode: %w", err)
	}
	if r.Errors {
		return fmt.Errorf("es bulk: some documents were rejected")
	}
	return nil
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func buildSearchBody(q string, from, size int) map[string]any {
	pattern := "*" + wildcardEscaper.Replace(q) + "*"
	should := make([]any, 0, 3)
	for _, field := range []string{"sku", "descricao", "codigo_barras"} {
		should = append(should, map[string]any{
			"wildcard": map[string]any{
				field: map[string]any{"value": pattern, "case_insensitive": true},
			},
		})
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
		"sort":             []any{map[string]any{"sku": "asc"}},
		"from":             from,
		"size":             size,
		"track_total_hits": true,
	}
}

// Search is a substring match on sku, descricao and codigo_barras, ordered by sku.
func (i *Index) Search(ctx context.Context, q string, from, size int) (int64, []models.Product, error) {
	body, err := encode(buildSearchBody(q, from, size))
	if err != nil {
		return 0, nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.name),
		i.es.Search.WithBody(body),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("es search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search", res)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("es search: decode: %w", err)
	}

	prods := make([]models.Product, len(r.Hits.Hits))
	for n, hit := range r.Hits.Hits {
		prods[n] = hit.Source
	}
	return r.Hits.Total.Value, prods, nil
}
