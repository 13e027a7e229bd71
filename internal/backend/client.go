/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/client"

	"gowhiteboard/internal/config"
	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/storage"
	"gowhiteboard/internal/store"
)

const tokenTTL = time.Hour

// Client talks to the HTTP API of a running whiteboard server.
type Client struct {
	BaseURL string
	secret  string
	http    *client.Client
}

// NewClient builds a client from the backend config. A non-empty secret
// signs a bearer token for every request.
func NewClient(cfg config.BackendConfig, secret string) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	cc := client.New().SetTimeout(cfg.Timeout())
	if cfg.TLSInsecure {
		cc.SetTLSConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in for self-signed dev servers
	}
	return &Client{BaseURL: base, secret: secret, http: cc}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if c.secret != "" {
		tok, err := SignToken(c.secret, "cli", time.Now().Add(tokenTTL))
		if err != nil {
			return nil, err
		}
		req.SetHeader("Authorization", "Bearer "+tok)
	}
	resp, err := req.Get(c.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Close()
	body := append([]byte(nil), resp.Body()...)
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("server GET %s: %d %s", path, code, e.Error)
		}
		return nil, fmt.Errorf("server GET %s: %d", path, code)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}

// Ready returns the server version once it reports ready.
func (c *Client) Ready(ctx context.Context) (string, error) {
	var out struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/health/ready", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// State fetches the full whiteboard state.
func (c *Client) State(ctx context.Context) (store.State, error) {
	var st store.State
	err := c.getJSON(ctx, "/api/state", &st)
	return st, err
}

// Pages lists the working pages.
func (c *Client) Pages(ctx context.Context) ([]domain.Page, error) {
	var pages []domain.Page
	err := c.getJSON(ctx, "/api/pages", &pages)
	return pages, err
}

// Export renders the active page (png, svg) or the project (pdf).
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	return c.get(ctx, "/api/export/"+url.PathEscape(format))
}

// Search finds text objects on the server's board.
func (c *Client) Search(ctx context.Context, text string) ([]storage.SearchResult, error) {
	var out struct {
		Results []storage.SearchResult `json:"results"`
	}
	err := c.getJSON(ctx, "/api/search?q="+url.QueryEscape(text), &out)
	return out.Results, err
}
