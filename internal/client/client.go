// Package client is a Go client for the tableside API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/menu"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/order"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Tenant    string // canonical id, subdomain or share slug
	Token     string
	Timeout   time.Duration
	CacheDir  string
	Retries   uint
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
		Retries:   3,
	}
}

// APIError is an error response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client calls the API for one tenant.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client. GET responses are cached according to the server's
// cache headers.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewCachingTransport(cfg.CacheDir, http.DefaultTransport),
		},
	}
}

func (c *Client) tenantPath(format string, args ...any) string {
	return "/v1/t/" + url.PathEscape(c.cfg.Tenant) + fmt.Sprintf(format, args...)
}

// Menu returns the active items, optionally limited to one category.
func (c *Client) Menu(ctx context.Context, categoryID *uuid.UUID) ([]models.MenuItem, error) {
	path := c.tenantPath("/menu")
	if categoryID != nil {
		path += "?categoryId=" + categoryID.String()
	}

	var out struct {
		Items []models.MenuItem `json:"items"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// FullMenu returns categories with their items.
func (c *Client) FullMenu(ctx context.Context) ([]models.CategoryWithItems, error) {
	var out struct {
		Categories []models.CategoryWithItems `json:"categories"`
	}
	if err := c.get(ctx, c.tenantPath("/menu/full"), &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

// CreateCategory adds a menu category.
func (c *Client) CreateCategory(ctx context.Context, in menu.CategoryInput) (*models.Category, error) {
	var out models.Category
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/categories"), in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateItem adds a menu item.
func (c *Client) CreateItem(ctx context.Context, in menu.ItemInput) (*models.MenuItem, error) {
	var out models.MenuItem
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/menu/items"), in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAvailability toggles an item.
func (c *Client) SetAvailability(ctx context.Context, itemID uuid.UUID, available bool) error {
	body := map[string]bool{"available": available}
	return c.send(ctx, http.MethodPost, c.tenantPath("/menu/items/%s/availability", itemID), body, nil, nil)
}

// CreateOrder submits a cart. A non-empty idempotencyKey makes the call safe
// to repeat.
func (c *Client) CreateOrder(ctx context.Context, in order.CreateInput, idempotencyKey string) (*models.Order, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	var out models.Order
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/orders"), in, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder fetches an order by id.
func (c *Client) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var out models.Order
	if err := c.get(ctx, c.tenantPath("/orders/%s", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TrackOrder fetches an order by its public number.
func (c *Client) TrackOrder(ctx context.Context, number string) (*models.Order, error) {
	var out models.Order
	if err := c.get(ctx, c.tenantPath("/orders/track/%s", url.PathEscape(number)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrders returns a page of orders, newest first.
func (c *Client) ListOrders(ctx context.Context, filter order.ListFilter) (*order.Page, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if filter.Skip > 0 {
		q.Set("skip", strconv.Itoa(filter.Skip))
	}
	if filter.Take > 0 {
		q.Set("take", strconv.Itoa(filter.Take))
	}

	path := c.tenantPath("/orders")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out order.Page
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdvanceStatus moves an order to a new status.
func (c *Client) AdvanceStatus(ctx context.Context, id uuid.UUID, in order.AdvanceInput) (*models.Order, error) {
	var out models.Order
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/orders/%s/status", id), in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel cancels an order with a reason.
func (c *Client) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	var out models.Order
	body := map[string]string{"reason": reason}
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/orders/%s/cancel", id), body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegenerateShareSlug issues a new share slug for the tenant.
func (c *Client) RegenerateShareSlug(ctx context.Context) (string, error) {
	var out struct {
		ShareSlug string `json:"shareSlug"`
	}
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/share-slug"), nil, nil, &out); err != nil {
		return "", err
	}
	return out.ShareSlug, nil
}

// get retries transient failures; reads are safe to repeat.
func (c *Client) get(ctx context.Context, path string, out any) error {
	retries := max(c.cfg.Retries, 1)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.do(ctx, http.MethodGet, path, nil, nil, out)

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(retries),
	)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, in any, headers map[string]string, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	return c.do(ctx, method, path, body, headers, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.ServerURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error.Code != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	} else {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return apiErr
}
