/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log configures the process-wide slog logger. Console output goes to
// stderr (never stdout, which the MCP transport owns), an optional rotating JSON
// file receives the same records, and records logged with a context carry the
// project and page that context was tagged with.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gowhiteboard/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization. FromEnv reads them from
//   - GWB_LOG_LEVEL=debug|info|warn|error
//   - GWB_LOG_FORMAT=console|json
//   - GWB_LOG_FILE=<path> (rotated JSON file)
//   - GWB_LOG_SOURCE=true|false
//   - GWB_LOG_MAX_SIZE_MB, GWB_LOG_MAX_BACKUPS (rotation)
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
	// MaxSizeMB and MaxBackups tune file rotation; zero means 10 MB and 3 files.
	MaxSizeMB  int
	MaxBackups int
	// Writer replaces stderr for console output.
	Writer io.Writer
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
)

var (
	mu       sync.RWMutex
	current  *slog.Logger
	rotating *lj.Logger
	level    = new(slog.LevelVar)
)

// L returns the application logger, initializing it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the application logger and slog's default. A previously opened log
// file is closed.
func Init(opts Options) {
	level.Set(ParseLevel(opts.Level))

	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource})
	} else {
		console = newConsoleHandler(out, level, opts.AddSource)
	}
	handlers := []slog.Handler{console}

	var file *lj.Logger
	if path := strings.TrimSpace(opts.File); path != "" {
		file = &lj.Logger{
			Filename:   path,
			MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     28,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}))
	}

	h := handlers[0]
	if len(handlers) > 1 {
		h = fanout(handlers)
	}
	logger := slog.New(&contextHandler{next: h}).With(
		slog.String("app", "gowhiteboard"),
		slog.String("ver", version.Version),
	)

	mu.Lock()
	prev := rotating
	current, rotating = logger, file
	mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	slog.SetDefault(logger)
}

// SetLevel changes the minimum level of the running logger without rebuilding it.
func SetLevel(s string) { level.Set(ParseLevel(s)) }

// Enabled reports whether records at lvl are currently emitted.
func Enabled(lvl slog.Level) bool { return lvl >= level.Level() }

// Close flushes and closes the rotating log file, if any.
func Close() error {
	mu.Lock()
	f := rotating
	rotating = nil
	mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// FromEnv builds Options from GWB_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:      getenv("GWB_LOG_LEVEL", "info"),
		Format:     getenv("GWB_LOG_FORMAT", "console"),
		AddSource:  strings.EqualFold(getenv("GWB_LOG_SOURCE", "false"), "true"),
		File:       os.Getenv("GWB_LOG_FILE"),
		MaxSizeMB:  atoi(os.Getenv("GWB_LOG_MAX_SIZE_MB")),
		MaxBackups: atoi(os.Getenv("GWB_LOG_MAX_BACKUPS")),
	}
}

// WithComponent returns the application logger tagged with a component name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// ParseLevel maps a level name to slog.Level; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type (
	projectKey struct{}
	pageKey    struct{}
)

// WithProject returns a context whose log records carry the project id.
func WithProject(ctx context.Context, project string) context.Context {
	return context.WithValue(ctx, projectKey{}, project)
}

// WithPage returns a context whose log records carry the page id.
func WithPage(ctx context.Context, page string) context.Context {
	return context.WithValue(ctx, pageKey{}, page)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
