// Package catalogclient talks to the catalog HTTP API. The session cookie
// issued at login is kept in a cookie jar, so one Client is one logged-in user.
package catalogclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/ean_catalog/pkg/transport"
)

// APIError is returned for every non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog api: status %d", e.Status)
	}
	return fmt.Sprintf("catalog api: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er transport.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return &APIError{Status: resp.StatusCode, Message: er.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*transport.User, error) {
	var res transport.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", transport.LoginRequest{Username: username, Password: password}, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// Me returns the user of the current session. An APIError with status 401
// means there is none.
func (c *Client) Me(ctx context.Context) (*transport.User, error) {
	var res transport.MeResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func searchPath(base, query string, page int) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("page", strconv.Itoa(page))
	return base + "?" + v.Encode()
}

// Search runs the management table query (sku only).
func (c *Client) Search(ctx context.Context, query string, page int) (*transport.SearchResponse, error) {
	var res transport.SearchResponse
	if err := c.do(ctx, http.MethodGet, searchPath("/api/products", query, page), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// QuickSearch matches sku, descricao and codigo_barras.
func (c *Client) QuickSearch(ctx context.Context, query string, page int) (*transport.SearchResponse, error) {
	var res transport.SearchResponse
	if err := c.do(ctx, http.MethodGet, searchPath("/api/products/search", query, page), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreateProduct(ctx context.Context, p transport.ProductRequest) (*transport.Product, error) {
	var res transport.Product
	if err := c.do(ctx, http.MethodPost, "/api/products", p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateProduct(ctx context.Context, sku string, p transport.ProductRequest) (*transport.Product, error) {
	var res transport.Product
	if err := c.do(ctx, http.MethodPut, "/api/products/"+url.PathEscape(sku), p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeleteProduct(ctx context.Context, sku string) error {
	return c.do(ctx, http.MethodDelete, "/api/products/"+url.PathEscape(sku), nil, nil)
}

// ImportRows sends one batch of rows. Line numbers are kept so the server
// reports errors against the uploaded sheet.
func (c *Client) ImportRows(ctx context.Context, rows []transport.ImportRow) (*transport.ImportReport, error) {
	var res transport.ImportReport
	if err := c.do(ctx, http.MethodPost, "/api/products/import", transport.ImportRequest{Rows: rows}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
