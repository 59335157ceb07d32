// Package relayclient talks to a remote relay over its REST API, so the
// simulator and seeding tools can run outside the relay process.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
)

// Client implements domain.LocationUpdater against a remote relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the relay at baseURL, including any path prefix.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UpsertLocation posts one position and returns the record the relay stored.
func (c *Client) UpsertLocation(ctx context.Context, update domain.LocationUpdate) (domain.LocationRecord, error) {
	var out struct {
		Data domain.LocationRecord `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/friends/location", update, &out); err != nil {
		return domain.LocationRecord{}, err
	}
	return out.Data, nil
}

// GetLocation fetches one friend's last position.
func (c *Client) GetLocation(ctx context.Context, entityID string) (domain.LocationRecord, error) {
	var out struct {
		Location domain.LocationRecord `json:"location"`
	}
	if err := c.do(ctx, http.MethodGet, "/friends/location/"+url.PathEscape(entityID), nil, &out); err != nil {
		return domain.LocationRecord{}, err
	}
	return out.Location, nil
}

// ListLocations fetches every friend's last position.
func (c *Client) ListLocations(ctx context.Context) ([]domain.LocationRecord, error) {
	var out struct {
		Friends []domain.LocationRecord `json:"friends"`
	}
	if err := c.do(ctx, http.MethodGet, "/friends/locations", nil, &out); err != nil {
		return nil, err
	}
	return out.Friends, nil
}

// DeleteLocation removes a friend's position. Unknown friends are not an error.
func (c *Client) DeleteLocation(ctx context.Context, entityID string) error {
	return c.do(ctx, http.MethodDelete, "/friends/location/"+url.PathEscape(entityID), nil, nil)
}

// Health calls the relay's liveness route.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
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
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// statusError maps the relay's {error} bodies back onto the domain sentinels.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrBadRequest, body.Error)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body.Error)
	default:
		return fmt.Errorf("%w: relay returned %d: %s", domain.ErrInternal, resp.StatusCode, body.Error)
	}
}
