// Package sdk is the bot author's client for the dispatcher: submit
// code, then poll for results and per-version records.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/botbattle/backend/internal/protocol"
)

// Code re-exports the submission payload so SDK users don't import
// internal packages.
type Code = protocol.Code

type ParticipantInfo = protocol.ParticipantInfo

type VersionInfo = protocol.VersionInfo

// Client talks to one dispatcher on behalf of one bot.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option tweaks a Client.
type Option func(*Client)

// WithHTTPClient substitutes the transport, for tests or custom
// timeouts.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// New builds a client for the dispatcher at baseURL authenticating with
// the bot's bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateCode submits the bot's code. It reports whether the dispatcher
// stored a new version; identical resubmissions return false.
func (c *Client) UpdateCode(ctx context.Context, code Code) (bool, error) {
	var reply protocol.UpdateResponse
	if err := c.do(ctx, http.MethodPost, "/update_code", code, &reply); err != nil {
		return false, err
	}
	return reply.Updated, nil
}

// PartInfo lists the bot's recently resolved games, oldest first. Pass
// a zero time for no lower bound.
func (c *Client) PartInfo(ctx context.Context, after time.Time) ([]ParticipantInfo, error) {
	path := "/get_part_info/"
	if !after.IsZero() {
		path += "?after=" + url.QueryEscape(after.Format(time.RFC3339Nano))
	}

	var infos []ParticipantInfo
	if err := c.do(ctx, http.MethodGet, path, nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// LatestVersionsInfo summarizes the bot's recent code versions, oldest
// first.
func (c *Client) LatestVersionsInfo(ctx context.Context) ([]VersionInfo, error) {
	var infos []VersionInfo
	if err := c.do(ctx, http.MethodGet, "/latest_versions_info/", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, reply any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	if reply == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
