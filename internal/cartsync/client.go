package cartsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"storefront/internal/domain"
)

// Client talks to the storefront cart and session endpoints. It carries a
// cookie jar so the session cookie set at login flows into subsequent cart
// calls.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}, nil
}

type cartPayload struct {
	Items []domain.CartItem `json:"items"`
}

// FetchCart returns the server-side cart for the current session. Anonymous
// sessions get an empty list.
func (c *Client) FetchCart(ctx context.Context) ([]domain.CartItem, error) {
	var payload cartPayload
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// PushCart replaces the server-side cart with the given item list.
func (c *Client) PushCart(ctx context.Context, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	return c.do(ctx, http.MethodPost, "/api/cart", cartPayload{Items: items}, nil)
}

// ClearCart empties the server-side cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/cart", nil, nil)
}

type sessionPayload struct {
	Status string `json:"status"`
}

// SessionStatus reports "authenticated" or "unauthenticated" for the
// current cookie state.
func (c *Client) SessionStatus(ctx context.Context) (string, error) {
	var payload sessionPayload
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &payload); err != nil {
		return "", err
	}
	return payload.Status, nil
}

// Login authenticates and stores the resulting session cookie in the jar.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/api/login", body, nil)
}

// Logout drops the server session; the expired cookie replaces the jar entry.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(detail))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
