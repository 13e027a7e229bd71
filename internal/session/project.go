/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"gowhiteboard/internal/domain"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/storage"
	"gowhiteboard/internal/telemetry"
)

// NewProject discards the current project and starts a named one with a
// single blank page. The session is no longer bound to a file.
func (s *Session) NewProject(ctx context.Context, name string) (domain.Project, error) {
	name, err := domain.ValidateProjectName(name)
	if err != nil {
		return domain.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	proj := s.store.CreateNewProject(name)
	s.setPath("")
	s.setLastWritten("")
	applog.WithOperation(s.log, "new").InfoContext(s.logCtx(ctx), "project created", slog.String("name", name))
	telemetry.Event(telemetry.EventProjectCreated, nil)
	return proj, nil
}

// SetProjectName renames the open project.
func (s *Session) SetProjectName(name string) error {
	name, err := domain.ValidateProjectName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Project(); !ok {
		return domain.ErrNoProject
	}
	s.store.SetProjectName(name)
	return nil
}

// Save merges the working pages into the project, stamps it and returns the
// indented JSON document. A session bound to a file also writes it there
// (with backup) and refreshes the sidecar index.
func (s *Session) Save(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, s.ProjectPath())
}

// SaveTo binds the session to path and saves there.
func (s *Session) SaveTo(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("project path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	if _, err := s.saveLocked(ctx, abs); err != nil {
		return err
	}
	s.setPath(abs)
	return nil
}

func (s *Session) saveLocked(ctx context.Context, path string) ([]byte, error) {
	proj, ok := s.store.MergedProject()
	if !ok {
		return nil, domain.ErrNoProject
	}
	data, err := storage.Encode(proj)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	l := applog.WithOperation(s.log, "save")
	ctx = s.logCtx(ctx)
	if path != "" {
		ph := &storage.ProjectHandle{Path: path, Project: proj}
		if err := storage.Save(ph); err != nil {
			l.ErrorContext(ctx, "save failed", slog.String("path", path), slog.Any("err", err))
			return nil, err
		}
		s.setLastWritten(storage.ContentHash(string(data)))
		s.refreshSidecar(ctx, ph)
	}
	s.store.CommitSaved(proj)
	s.emit.Emit(ctx, EventProjectSaved, map[string]any{"id": proj.ID, "path": path})
	telemetry.Event(telemetry.EventProjectSaved, map[string]any{"pages": len(proj.Pages)})
	l.InfoContext(ctx, "project saved", slog.Int("pages", len(proj.Pages)), slog.Int("bytes", len(data)))
	return data, nil
}

// refreshSidecar snapshots the saved project and reindexes its text. The
// index is a cache, so failures only get logged.
func (s *Session) refreshSidecar(ctx context.Context, ph *storage.ProjectHandle) {
	l := applog.WithOperation(s.log, "index")
	if err := storage.SaveSnapshot(ctx, ph, time.Now()); err != nil {
		l.WarnContext(ctx, "snapshot failed", slog.Any("err", err))
	} else if s.opts.SnapshotRetention > 0 {
		if _, err := storage.PruneOldSnapshots(ctx, ph, s.opts.SnapshotRetention); err != nil {
			l.WarnContext(ctx, "prune snapshots failed", slog.Any("err", err))
		}
	}
	if err := storage.UpdateIndex(ctx, ph.Path, ph.Project); err != nil {
		l.WarnContext(ctx, "update index failed", slog.Any("err", err))
	}
}

// Load replaces the session state with the project read from r. Any read or
// parse failure returns an error wrapping domain.ErrMalformedProject and
// leaves the state untouched. Only one load runs at a time; a concurrent
// call fails with domain.ErrLoadInProgress.
func (s *Session) Load(ctx context.Context, r io.Reader) error {
	if !s.loading.CompareAndSwap(false, true) {
		return domain.ErrLoadInProgress
	}
	defer s.loading.Store(false)

	proj, err := storage.ReadProject(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(ctx, proj, "", "")
	return nil
}

// Open loads the project file at path and binds the session to it.
func (s *Session) Open(ctx context.Context, path string) error {
	if !s.loading.CompareAndSwap(false, true) {
		return domain.ErrLoadInProgress
	}
	defer s.loading.Store(false)

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	proj, err := storage.Decode(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(ctx, proj, abs, storage.ContentHash(string(data)))
	return nil
}

// OpenBackup loads the newest backup of path and binds the session to path,
// so the next save replaces the damaged file. The recovered state counts as
// unsaved.
func (s *Session) OpenBackup(ctx context.Context, path string) error {
	if !s.loading.CompareAndSwap(false, true) {
		return domain.ErrLoadInProgress
	}
	defer s.loading.Store(false)

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	ph, err := storage.OpenLatestBackup(abs)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(ctx, ph.Project, abs, "")
	s.store.MarkUnsaved()
	return nil
}

// Snapshots lists the saved snapshots of the bound project, newest first.
func (s *Session) Snapshots(ctx context.Context, limit int) ([]storage.Snapshot, error) {
	ph, err := s.boundHandle()
	if err != nil {
		return nil, err
	}
	return storage.ListSnapshots(ctx, ph, limit)
}

// RestoreSnapshot replaces the working project with snapshot id. The session
// stays bound to its file and is marked unsaved.
func (s *Session) RestoreSnapshot(ctx context.Context, id int64) error {
	if !s.loading.CompareAndSwap(false, true) {
		return domain.ErrLoadInProgress
	}
	defer s.loading.Store(false)

	ph, err := s.boundHandle()
	if err != nil {
		return err
	}
	snap, err := storage.GetSnapshot(ctx, ph, id)
	if err != nil {
		return err
	}
	proj, err := snap.Project()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(ctx, proj, ph.Path, "")
	s.store.MarkUnsaved()
	return nil
}

func (s *Session) boundHandle() (*storage.ProjectHandle, error) {
	path := s.ProjectPath()
	if path == "" {
		return nil, errors.New("project is not bound to a file")
	}
	p, ok := s.store.Project()
	if !ok {
		return nil, domain.ErrNoProject
	}
	return &storage.ProjectHandle{Path: path, Project: p}, nil
}

func (s *Session) applyLocked(ctx context.Context, proj domain.Project, path, hash string) {
	s.store.LoadProject(proj)
	s.setPath(path)
	s.setLastWritten(hash)
	ctx = s.logCtx(ctx)
	s.emit.Emit(ctx, EventProjectLoaded, map[string]any{"id": proj.ID, "path": path})
	telemetry.Event(telemetry.EventProjectLoaded, map[string]any{"pages": len(proj.Pages)})
	applog.WithOperation(s.log, "load").InfoContext(ctx, "project loaded", slog.String("name", proj.Name), slog.Int("pages", len(proj.Pages)))
}

// Watch reloads the bound project file whenever another process changes it
// and the session has no unsaved changes. The watcher is set up before Watch
// returns and stops when ctx is done.
func (s *Session) Watch(ctx context.Context) error {
	path := s.ProjectPath()
	if path == "" {
		return domain.ErrNoProject
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// watch the directory: saves replace the file by rename
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	l := applog.WithOperation(s.log, "watch")
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				s.reloadFromDisk(ctx, path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.Warn("watcher error", slog.Any("err", err))
			}
		}
	}()
	return nil
}

func (s *Session) reloadFromDisk(ctx context.Context, path string) {
	l := applog.WithOperation(s.log, "watch")
	data, err := os.ReadFile(path)
	if err != nil {
		return // removed or mid-replace; a later event follows
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ProjectPath() != path {
		return
	}
	hash := storage.ContentHash(string(data))
	if hash == *s.lastWritten.Load() {
		return
	}
	if s.store.HasUnsavedChanges() {
		l.Info("external change ignored, unsaved changes pending", slog.String("path", path))
		return
	}
	proj, err := storage.Decode(data)
	if err != nil {
		l.Warn("external change not loadable", slog.String("path", path), slog.Any("err", err))
		return
	}
	s.store.LoadProject(proj)
	s.setLastWritten(hash)
	s.emit.Emit(s.logCtx(ctx), EventProjectReloaded, map[string]any{"id": proj.ID, "path": path})
	l.Info("project reloaded from disk", slog.String("path", path))
}
