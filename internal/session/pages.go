/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"fmt"
	"math"
	"strings"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/tools"
	"gowhiteboard/internal/vector"
)

// AddPage appends a blank page and activates it.
func (s *Session) AddPage() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AddPage()
}

// DeletePage removes a page. The last page cannot be deleted.
func (s *Session) DeletePage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Page(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrPageNotFound, id)
	}
	if !s.store.DeletePage(id) {
		return domain.ErrLastPage
	}
	return nil
}

// DuplicatePage inserts a copy of the page right after it.
func (s *Session) DuplicatePage(id string) (domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.store.DuplicatePage(id)
	if !ok {
		return domain.Page{}, fmt.Errorf("%w: %s", domain.ErrPageNotFound, id)
	}
	return p, nil
}

// RenamePage renames a page; blank names are rejected.
func (s *Session) RenamePage(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("page name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Page(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrPageNotFound, id)
	}
	s.store.RenamePage(id, name)
	return nil
}

// SelectPage activates an existing page and shows it on the surface.
func (s *Session) SelectPage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Page(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrPageNotFound, id)
	}
	if s.store.ActivePageID() == id {
		return nil
	}
	s.store.SetActivePage(id)
	return nil
}

// SetTool switches the active tool by name.
func (s *Session) SetTool(name string) error {
	t, err := domain.ParseTool(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetActiveTool(t)
	return nil
}

func (s *Session) SetColor(color string) error {
	color = strings.TrimSpace(color)
	if color == "" {
		return fmt.Errorf("color is required")
	}
	c, err := vector.ParseColor(color)
	if err != nil {
		return fmt.Errorf("set color: %w", err)
	}
	// page documents only carry hex colours
	if !strings.HasPrefix(color, "#") && color != "transparent" {
		color = c.Hex()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetColor(color)
	return nil
}

// SetStrokeWidth clamps w to the supported range before storing it.
func (s *Session) SetStrokeWidth(w int) int {
	w = domain.ClampStrokeWidth(w)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetStrokeWidth(w)
	return w
}

// SetOpacity clamps o to [0.05, 1].
func (s *Session) SetOpacity(o float64) float64 {
	if math.IsNaN(o) {
		o = 1
	}
	o = math.Min(1, math.Max(0.05, o))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetOpacity(o)
	return o
}

func (s *Session) ZoomIn() float64  { return s.stepZoom(domain.ZoomStep) }
func (s *Session) ZoomOut() float64 { return s.stepZoom(-domain.ZoomStep) }

func (s *Session) stepZoom(d float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := domain.ClampZoom(s.store.Zoom() + d)
	s.store.SetZoom(z)
	return z
}

// SetZoom clamps z to the supported range and applies it.
func (s *Session) SetZoom(z float64) float64 {
	z = domain.ClampZoom(z)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetZoom(z)
	return z
}

// Pointer and key input in screen coordinates, forwarded to the surface.

func (s *Session) PointerDown(x, y float64) { s.input(func() { s.canvas.PointerDown(vector.Pt{X: x, Y: y}) }) }
func (s *Session) PointerMove(x, y float64) { s.input(func() { s.canvas.PointerMove(vector.Pt{X: x, Y: y}) }) }
func (s *Session) PointerUp(x, y float64)   { s.input(func() { s.canvas.PointerUp(vector.Pt{X: x, Y: y}) }) }
func (s *Session) DoubleClick(x, y float64) { s.input(func() { s.canvas.DoubleClick(vector.Pt{X: x, Y: y}) }) }
func (s *Session) KeyDown(key string)       { s.input(func() { s.canvas.KeyDown(key) }) }

func (s *Session) input(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Drag replays a press-move-release gesture from (x1,y1) to (x2,y2).
func (s *Session) Drag(x1, y1, x2, y2 float64) {
	s.input(func() {
		s.canvas.PointerDown(vector.Pt{X: x1, Y: y1})
		s.canvas.PointerMove(vector.Pt{X: x2, Y: y2})
		s.canvas.PointerUp(vector.Pt{X: x2, Y: y2})
	})
}

// Objects returns the content of the active page as shown on the surface.
func (s *Session) Objects() []drawing.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Objects()
}

// Selection returns the ids of the selected objects.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Active()
}

// AddText places a text object at canvas position (x,y) with the current
// drawing options.
func (s *Session) AddText(x, y float64, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.ActivePage(); !ok {
		return "", domain.ErrNoCanvas
	}
	o := tools.NewText(vector.Pt{X: x, Y: y}, s.store.DrawingOptions())
	o.Text = text
	return s.canvas.Add(o), nil
}

// EditText replaces the text of a text object.
func (s *Session) EditText(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.canvas.Object(id)
	if !ok || o.Kind != drawing.KindText {
		return fmt.Errorf("text object %s not found", id)
	}
	s.canvas.Update(id, func(o *drawing.Object) { o.Text = text })
	return nil
}

// DeleteSelection removes the selected objects and returns how many went.
func (s *Session) DeleteSelection() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.canvas.Active()
	if len(ids) == 0 {
		return 0
	}
	n := s.canvas.Remove(ids...)
	s.canvas.DiscardActive()
	return n
}
