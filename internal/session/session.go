/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session composes the store, the drawing surface and the tool
// controller into one editing session. Every public method runs under the
// session mutex, so callers from different goroutines (HTTP handlers, MCP
// tools, the desktop shell) observe the same sequence of state transitions
// a single UI thread would.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/store"
	"gowhiteboard/internal/surface"
	"gowhiteboard/internal/tools"
)

// Options configures a Session. Zero values select defaults.
type Options struct {
	Width, Height  int
	Background     string
	ThumbnailScale float64
	// SnapshotRetention is how many sidecar snapshots a save keeps; 0 keeps all.
	SnapshotRetention int
	Emitter           EventEmitter
	Logger            *slog.Logger
}

// Session is safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	store  *store.Store
	canvas *surface.Canvas
	ctrl   *tools.Controller
	emit   EventEmitter
	log    *slog.Logger
	opts   Options

	loading atomic.Bool
	// path is the bound project file; read lock-free by crash recovery.
	path atomic.Pointer[string]
	// lastWritten is the hash of the bytes this session last wrote or read at path.
	lastWritten atomic.Pointer[string]

	unsubscribe func()
	closed      bool
}

// New builds a session with a blank, unnamed working page.
func New(opts Options) *Session {
	if opts.Emitter == nil {
		opts.Emitter = NopEmitter{}
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("session")
	}
	s := &Session{
		store:  store.New(),
		canvas: surface.NewCanvas(opts.Width, opts.Height, opts.Background),
		emit:   opts.Emitter,
		log:    opts.Logger,
		opts:   opts,
	}
	empty := ""
	s.path.Store(&empty)
	s.lastWritten.Store(&empty)
	s.unsubscribe = s.store.Subscribe(s.onStoreChange)
	s.loadActivePage()
	s.ctrl = tools.New(s.store, s.canvas, tools.WithThumbnailScale(opts.ThumbnailScale))
	return s
}

// Close detaches the controller. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.ctrl.Close()
	s.unsubscribe()
}

// onStoreChange runs synchronously inside the store mutator that caused it,
// which is always inside a session method.
func (s *Session) onStoreChange(ch store.Change) {
	if ch.Has(store.ChangedActivePage) {
		s.loadActivePage()
	}
	if ch.Has(store.ChangedZoom) {
		s.canvas.SetZoom(s.store.Zoom())
	}
	s.emit.Emit(context.Background(), EventStoreChanged, ch.String())
}

// loadActivePage puts the active page's content on the surface. Undecodable
// content leaves an empty surface rather than the previous page's objects.
func (s *Session) loadActivePage() {
	page, ok := s.store.ActivePage()
	if !ok {
		_ = s.canvas.Load(drawing.EmptyData())
		return
	}
	if err := s.canvas.Load(page.Data); err != nil {
		s.log.Warn("page data rejected", slog.String("page", page.ID), slog.Any("err", err))
		_ = s.canvas.Load(drawing.EmptyData())
	}
}

// State returns a deep copy of the store state.
func (s *Session) State() store.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.State()
}

// Surface returns the drawing surface for read-only rendering.
func (s *Session) Surface() *surface.Canvas { return s.canvas }

// Tool returns the tool whose controller state is active.
func (s *Session) Tool() domain.ToolType { return s.ctrl.Tool() }

// ProjectPath returns the bound project file, "" when there is none.
func (s *Session) ProjectPath() string { return *s.path.Load() }

// CrashProject returns the working copy for crash autosaves.
func (s *Session) CrashProject() (domain.Project, bool) { return s.store.MergedProject() }

func (s *Session) setPath(p string) { s.path.Store(&p) }

func (s *Session) setLastWritten(h string) { s.lastWritten.Store(&h) }

// logCtx tags ctx with the current project and page for the log enricher.
func (s *Session) logCtx(ctx context.Context) context.Context {
	if p, ok := s.store.Project(); ok {
		ctx = applog.WithProject(ctx, p.ID)
	}
	if id := s.store.ActivePageID(); id != "" {
		ctx = applog.WithPage(ctx, id)
	}
	return ctx
}
