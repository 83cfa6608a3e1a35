package drawsim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// errThrottled is returned when the server answers 429.
var errThrottled = errors.New("drawsim: rate limited")

type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// getJSON performs a GET request and decodes a 200 reply into out.
func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("drawsim: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("drawsim: GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("drawsim: read %s: %w", path, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return errThrottled
	default:
		return fmt.Errorf("drawsim: GET %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("drawsim: decode %s: %w", path, err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	return c.getJSON(ctx, "/health", nil)
}

func (c *client) odds(ctx context.Context) ([]Odds, error) {
	var out []Odds
	if err := c.getJSON(ctx, "/api/draw/odds", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) quickDraw(ctx context.Context) (drawResponse, error) {
	var out drawResponse
	err := c.getJSON(ctx, "/api/draw", &out)
	return out, err
}
