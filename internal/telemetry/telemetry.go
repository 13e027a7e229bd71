/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports.
// Nothing leaves the machine unless GWB_TELEMETRY_OPT_IN is set and an
// endpoint is configured.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v3/client"
	"github.com/google/uuid"

	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/version"
)

// Event names emitted by the application. Properties must never carry
// project content or file paths.
const (
	EventProjectCreated = "project_created"
	EventProjectSaved   = "project_saved"
	EventProjectLoaded  = "project_loaded"
	EventExport         = "export"
	EventImageImported  = "image_imported"
)

// Config holds runtime configuration for telemetry and crash uploads.
//
// Environment variables (read by FromEnv):
//   - GWB_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" to enable
//   - GWB_TELEMETRY_URL: endpoint receiving batches of JSON events
//   - GWB_CRASH_UPLOAD_URL: endpoint receiving plain-text crash reports
//   - GWB_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
type Config struct {
	OptIn     bool
	EventsURL string
	CrashURL  string
	Timeout   time.Duration
	// BatchSize caps the events per request; 0 means 16.
	BatchSize int
}

func FromEnv() Config {
	cfg := Config{
		OptIn:     parseBool(os.Getenv("GWB_TELEMETRY_OPT_IN")),
		EventsURL: strings.TrimSpace(os.Getenv("GWB_TELEMETRY_URL")),
		CrashURL:  strings.TrimSpace(os.Getenv("GWB_CRASH_UPLOAD_URL")),
		Timeout:   1500 * time.Millisecond,
	}
	if ms := strings.TrimSpace(os.Getenv("GWB_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Payload is one event as sent on the wire.
type Payload struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Run     string         `json:"run"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events and posts them in batches from one goroutine. A full
// queue drops events; sending never blocks the caller.
type Client struct {
	cfg  Config
	log  *slog.Logger
	http *client.Client
	run  string

	q       chan Payload
	pending atomic.Int64
	stop    chan struct{}
	once    sync.Once
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	c := &Client{
		cfg:  cfg,
		log:  applog.WithComponent("telemetry"),
		http: client.New().SetTimeout(cfg.Timeout),
		run:  uuid.NewString(),
		q:    make(chan Payload, 64),
		stop: make(chan struct{}),
	}
	go c.loop()
	return c
}

// SetDefault installs c as the package-level client, closing the previous one.
func SetDefault(c *Client) {
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if old != nil && old != c {
		old.Close()
	}
}

func getDefault() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

func Enabled() bool { return getDefault().Enabled() }

// Event queues an event. Empty names are ignored.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	p := Payload{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Run:     c.run,
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		p.Props = make(map[string]any, len(props))
		for k, v := range props {
			p.Props[k] = v
		}
	}
	c.pending.Add(1)
	select {
	case c.q <- p:
	default:
		c.pending.Add(-1)
	}
}

func Event(name string, props map[string]any) { getDefault().Event(name, props) }

// Flush waits until queued events were sent or ctx is done.
func (c *Client) Flush(ctx context.Context) {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Close stops the sender. Queued events are dropped.
func (c *Client) Close() { c.once.Do(func() { close(c.stop) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.stop:
			return
		case first := <-c.q:
			batch := []Payload{first}
		fill:
			for len(batch) < c.cfg.BatchSize {
				select {
				case p := <-c.q:
					batch = append(batch, p)
				default:
					break fill
				}
			}
			c.post(c.cfg.EventsURL, "application/json", batch)
			c.pending.Add(-int64(len(batch)))
		}
	}
}

func (c *Client) post(url, contentType string, body any) {
	var buf []byte
	switch b := body.(type) {
	case []byte:
		buf = b
	default:
		var err error
		if buf, err = json.Marshal(b); err != nil {
			return
		}
	}
	resp, err := c.http.R().
		SetHeader("Content-Type", contentType).
		SetRawBody(buf).
		Post(url)
	if err != nil {
		c.log.Debug("telemetry post failed", slog.String("url", url), slog.Any("err", err))
		return
	}
	if code := resp.StatusCode(); code >= 300 {
		c.log.Debug("telemetry endpoint rejected post", slog.String("url", url), slog.Int("status", code))
	}
	resp.Close()
}

// UploadCrash posts report to the crash endpoint in the background.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b)
}

func UploadCrash(report []byte) { getDefault().UploadCrash(report) }
