// Package client talks to the foods REST collection.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"menudash/model"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API rooted at baseURL. A zero timeout means
// requests are bounded only by their context.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) List(ctx context.Context) ([]model.FoodItem, error) {
	var items []model.FoodItem
	if err := c.do(ctx, "list foods", http.MethodGet, "/foods", nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.FoodItem{}
	}
	return items, nil
}

func (c *Client) Get(ctx context.Context, id uint) (model.FoodItem, error) {
	var item model.FoodItem
	err := c.do(ctx, "get food", http.MethodGet, foodPath(id), nil, &item)
	return item, err
}

// Create posts a new food and returns the persisted entity with its id.
func (c *Client) Create(ctx context.Context, in model.FoodInput) (model.FoodItem, error) {
	var item model.FoodItem
	err := c.do(ctx, "create food", http.MethodPost, "/foods", in, &item)
	return item, err
}

func (c *Client) Update(ctx context.Context, id uint, item model.FoodItem) (model.FoodItem, error) {
	var updated model.FoodItem
	err := c.do(ctx, "update food", http.MethodPut, foodPath(id), item, &updated)
	return updated, err
}

func (c *Client) Remove(ctx context.Context, id uint) error {
	return c.do(ctx, "delete food", http.MethodDelete, foodPath(id), nil, nil)
}

// Import uploads an xlsx workbook and returns the foods it created.
func (c *Client) Import(ctx context.Context, filename string, r io.Reader) ([]model.FoodItem, error) {
	const op = "import foods"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("%s: read workbook: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/foods/import", &body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var items []model.FoodItem
	if err := c.send(op, req, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func foodPath(id uint) string {
	return fmt.Sprintf("/foods/%d", id)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	return req, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(op, req, out)
}

func (c *Client) send(op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, URL: req.URL.String(), Err: fmt.Errorf("read response: %w", err)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// errorMessage extracts the "error" field of the API envelope, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(body))
}
