/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store holds the whiteboard's working state: the active project,
// its ordered pages, the active page and tool, drawing options and zoom.
// Mutators are synchronous and in-memory; subscribers are notified after the
// state lock is released.
package store

import (
	"slices"
	"strings"
	"sync"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
)

// Change is a bitmask describing which parts of the state a mutation touched.
type Change uint32

const (
	ChangedTool Change = 1 << iota
	ChangedOptions
	ChangedPages
	ChangedActivePage
	ChangedProject
	ChangedZoom
	ChangedSaved
)

// Has reports whether any bit of f is set in c.
func (c Change) Has(f Change) bool { return c&f != 0 }

func (c Change) String() string {
	names := []struct {
		bit  Change
		name string
	}{
		{ChangedTool, "tool"}, {ChangedOptions, "options"}, {ChangedPages, "pages"},
		{ChangedActivePage, "activePage"}, {ChangedProject, "project"}, {ChangedZoom, "zoom"},
		{ChangedSaved, "saved"},
	}
	var parts []string
	for _, n := range names {
		if c.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// State is a snapshot of the store. Pages is the working copy that is merged
// into Project on save.
type State struct {
	Project           *domain.Project       `json:"project"`
	Pages             []domain.Page         `json:"pages"`
	ActivePageID      string                `json:"activePageId"`
	ActiveTool        domain.ToolType       `json:"activeTool"`
	DrawingOptions    domain.DrawingOptions `json:"drawingOptions"`
	Zoom              float64               `json:"zoom"`
	HasUnsavedChanges bool                  `json:"hasUnsavedChanges"`
}

func (s State) clone() State {
	if s.Project != nil {
		p := s.Project.Clone()
		s.Project = &p
	}
	s.Pages = domain.ClonePages(s.Pages)
	return s
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	st     State
	now    func() int64
	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn func(Change)
}

// New returns a store with one blank page, the pen tool, default options and
// no project.
func New() *Store {
	s := &Store{now: domain.NowMillis}
	first := domain.NewPage(1, drawing.EmptyData(), s.now())
	s.st = State{
		Pages:          []domain.Page{first},
		ActivePageID:   first.ID,
		ActiveTool:     domain.ToolPen,
		DrawingOptions: domain.DefaultDrawingOptions(),
		Zoom:           1,
	}
	return s
}

// SetClock replaces the millisecond clock used for timestamps.
func (s *Store) SetClock(now func() int64) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Subscribe registers fn for change notifications and returns a cancel func.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(x subscriber) bool { return x.id == id })
	}
}

// update applies fn under the write lock and notifies subscribers afterwards.
func (s *Store) update(fn func(st *State, now int64) Change) Change {
	s.mu.Lock()
	wasUnsaved := s.st.HasUnsavedChanges
	ch := fn(&s.st, s.now())
	if s.st.HasUnsavedChanges != wasUnsaved {
		ch |= ChangedSaved
	}
	subs := slices.Clone(s.subs)
	s.mu.Unlock()
	if ch != 0 {
		for _, sub := range subs {
			sub.fn(ch)
		}
	}
	return ch
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.clone()
}

func (s *Store) ActiveTool() domain.ToolType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ActiveTool
}

func (s *Store) DrawingOptions() domain.DrawingOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.DrawingOptions
}

func (s *Store) ActivePageID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ActivePageID
}

func (s *Store) Zoom() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Zoom
}

func (s *Store) HasUnsavedChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.HasUnsavedChanges
}

// Project returns a copy of the active project, if any.
func (s *Store) Project() (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.Project == nil {
		return domain.Project{}, false
	}
	return s.st.Project.Clone(), true
}

// Pages returns a copy of the working page list.
func (s *Store) Pages() []domain.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ClonePages(s.st.Pages)
}

// Page looks up a page by id.
func (s *Store) Page(id string) (domain.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := domain.FindPage(s.st.Pages, id); i >= 0 {
		return s.st.Pages[i], true
	}
	return domain.Page{}, false
}

// ActivePage returns the page referenced by ActivePageID.
func (s *Store) ActivePage() (domain.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := domain.FindPage(s.st.Pages, s.st.ActivePageID); i >= 0 {
		return s.st.Pages[i], true
	}
	return domain.Page{}, false
}

// SetActiveTool sets the active tool. Setting the same tool again still
// notifies, so the tool controller re-enters the state.
func (s *Store) SetActiveTool(t domain.ToolType) {
	s.update(func(st *State, _ int64) Change {
		st.ActiveTool = t
		return ChangedTool
	})
}

// SetDrawingOptions merges the non-nil fields of p.
func (s *Store) SetDrawingOptions(p domain.DrawingOptionsPatch) {
	s.update(func(st *State, _ int64) Change {
		st.DrawingOptions = st.DrawingOptions.Merge(p)
		return ChangedOptions
	})
}

func (s *Store) SetColor(color string) {
	s.SetDrawingOptions(domain.DrawingOptionsPatch{Color: &color})
}

// SetStrokeWidth stores w unchanged; range checks are the caller's job.
func (s *Store) SetStrokeWidth(w int) {
	s.SetDrawingOptions(domain.DrawingOptionsPatch{StrokeWidth: &w})
}

func (s *Store) SetOpacity(o float64) {
	s.SetDrawingOptions(domain.DrawingOptionsPatch{Opacity: &o})
}

// AddPage appends a blank page named after its position, activates it and
// returns it.
func (s *Store) AddPage() domain.Page {
	var page domain.Page
	s.update(func(st *State, now int64) Change {
		page = domain.NewPage(len(st.Pages)+1, drawing.EmptyData(), now)
		st.Pages = append(st.Pages, page)
		st.ActivePageID = page.ID
		st.HasUnsavedChanges = true
		return ChangedPages | ChangedActivePage
	})
	return page
}

// DeletePage removes the page with id. It refuses (returns false) when only
// one page is left or the id is unknown. Deleting the active page activates
// the first remaining page.
func (s *Store) DeletePage(id string) bool {
	ok := false
	s.update(func(st *State, _ int64) Change {
		if len(st.Pages) <= 1 {
			return 0
		}
		i := domain.FindPage(st.Pages, id)
		if i < 0 {
			return 0
		}
		st.Pages = slices.Delete(slices.Clone(st.Pages), i, i+1)
		ch := ChangedPages
		if st.ActivePageID == id {
			st.ActivePageID = st.Pages[0].ID
			ch |= ChangedActivePage
		}
		st.HasUnsavedChanges = true
		ok = true
		return ch
	})
	return ok
}

// DuplicatePage inserts a copy right after the source page. The copy gets a
// new id, a " (Copy)" name suffix and fresh timestamps; the active page does
// not change.
func (s *Store) DuplicatePage(id string) (domain.Page, bool) {
	var dup domain.Page
	ok := false
	s.update(func(st *State, now int64) Change {
		i := domain.FindPage(st.Pages, id)
		if i < 0 {
			return 0
		}
		dup = st.Pages[i]
		dup.ID = domain.NewPageID()
		dup.Name = st.Pages[i].Name + " (Copy)"
		dup.CreatedAt = now
		dup.UpdatedAt = now
		st.Pages = slices.Insert(slices.Clone(st.Pages), i+1, dup)
		st.HasUnsavedChanges = true
		ok = true
		return ChangedPages
	})
	return dup, ok
}

// SetActivePage switches the active page without checking that it exists.
// It is not a content change.
func (s *Store) SetActivePage(id string) {
	s.update(func(st *State, _ int64) Change {
		st.ActivePageID = id
		return ChangedActivePage
	})
}

// UpdatePageData overwrites a page's content and thumbnail. The unsaved flag
// is raised even when no page matches.
func (s *Store) UpdatePageData(id, data, thumbnail string) {
	s.update(func(st *State, now int64) Change {
		var ch Change
		if i := domain.FindPage(st.Pages, id); i >= 0 {
			st.Pages = slices.Clone(st.Pages)
			st.Pages[i].Data = data
			st.Pages[i].Thumbnail = thumbnail
			st.Pages[i].UpdatedAt = now
			ch = ChangedPages
		}
		st.HasUnsavedChanges = true
		return ch
	})
}

// RenamePage overwrites a page's name. Unknown ids are ignored.
func (s *Store) RenamePage(id, name string) {
	s.update(func(st *State, now int64) Change {
		i := domain.FindPage(st.Pages, id)
		if i < 0 {
			return 0
		}
		st.Pages = slices.Clone(st.Pages)
		st.Pages[i].Name = name
		st.Pages[i].UpdatedAt = now
		st.HasUnsavedChanges = true
		return ChangedPages
	})
}

// CreateNewProject discards the current project and pages and starts a
// project with a single blank page.
func (s *Store) CreateNewProject(name string) domain.Project {
	var proj domain.Project
	s.update(func(st *State, now int64) Change {
		first := domain.NewPage(1, drawing.EmptyData(), now)
		proj = domain.Project{
			ID:        domain.NewProjectID(),
			Name:      name,
			Pages:     []domain.Page{first},
			CreatedAt: now,
			UpdatedAt: now,
		}
		p := proj.Clone()
		st.Project = &p
		st.Pages = []domain.Page{first}
		st.ActivePageID = first.ID
		st.HasUnsavedChanges = false
		return ChangedProject | ChangedPages | ChangedActivePage
	})
	return proj
}

// LoadProject replaces project and pages wholesale and activates the first
// page. A project without pages gets one blank page so the active page
// always resolves.
func (s *Store) LoadProject(p domain.Project) {
	s.update(func(st *State, now int64) Change {
		cp := p.Clone()
		if len(cp.Pages) == 0 {
			cp.Pages = []domain.Page{domain.NewPage(1, drawing.EmptyData(), now)}
		}
		st.Project = &cp
		st.Pages = domain.ClonePages(cp.Pages)
		st.ActivePageID = cp.Pages[0].ID
		st.HasUnsavedChanges = false
		return ChangedProject | ChangedPages | ChangedActivePage
	})
}

// SetProjectName renames the project. The unsaved flag is raised even when
// no project is open.
func (s *Store) SetProjectName(name string) {
	s.update(func(st *State, _ int64) Change {
		if st.Project != nil {
			p := st.Project.Clone()
			p.Name = name
			st.Project = &p
		}
		st.HasUnsavedChanges = true
		return ChangedProject
	})
}

// MergedProject returns the project with the working pages merged in and
// UpdatedAt stamped, ready to be written. It does not modify the store.
func (s *Store) MergedProject() (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.Project == nil {
		return domain.Project{}, false
	}
	p := s.st.Project.Clone()
	p.Pages = domain.ClonePages(s.st.Pages)
	p.UpdatedAt = s.now()
	return p, true
}

// CommitSaved stores the project that was written and clears the unsaved flag.
func (s *Store) CommitSaved(p domain.Project) {
	s.update(func(st *State, _ int64) Change {
		cp := p.Clone()
		st.Project = &cp
		st.HasUnsavedChanges = false
		return ChangedProject
	})
}

func (s *Store) MarkSaved() {
	s.update(func(st *State, _ int64) Change {
		st.HasUnsavedChanges = false
		return 0
	})
}

func (s *Store) MarkUnsaved() {
	s.update(func(st *State, _ int64) Change {
		st.HasUnsavedChanges = true
		return 0
	})
}

// SetZoom stores z unchanged; clamping is the caller's job.
func (s *Store) SetZoom(z float64) {
	s.update(func(st *State, _ int64) Change {
		st.Zoom = z
		return ChangedZoom
	})
}
