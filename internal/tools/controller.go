/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tools maps the active tool onto a drawing surface. Each tool is a
// state that owns a fixed set of surface handlers: entering a state acquires
// them and leaving it releases them, so handlers never outlive their tool.
package tools

import (
	"log/slog"
	"math"
	"slices"
	"sync"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/render"
	"gowhiteboard/internal/store"
	"gowhiteboard/internal/surface"
	"gowhiteboard/internal/vector"
)

// Text defaults for new text objects.
const (
	DefaultText      = "Double-click to edit"
	DefaultFontSize  = 20
	DefaultTextWidth = 200
)

// DefaultThumbnailScale is the size factor of page thumbnails.
const DefaultThumbnailScale = 0.2

// Controller keeps the surface configured for the store's active tool and
// writes surface content back into the store.
type Controller struct {
	store *store.Store
	surf  surface.Adapter
	log   *slog.Logger
	scale float64

	mu       sync.Mutex
	tool     domain.ToolType
	handlers []handle
	nextID   int
	closed   bool

	cleanup []func()
}

type handle struct {
	id      int
	release func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithThumbnailScale sets the thumbnail size factor.
func WithThumbnailScale(s float64) Option {
	return func(c *Controller) {
		if s > 0 {
			c.scale = s
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.log = l } }

// New wires a controller between st and surf and enters the current tool.
func New(st *store.Store, surf surface.Adapter, opts ...Option) *Controller {
	c := &Controller{
		store: st,
		surf:  surf,
		log:   applog.WithComponent("tools"),
		scale: DefaultThumbnailScale,
	}
	for _, o := range opts {
		o(c)
	}
	c.cleanup = append(c.cleanup,
		st.Subscribe(c.onStoreChange),
		surf.Subscribe(c.onSurfaceEvent),
		surf.HandleKeys(c.onKey),
	)
	c.enter(st.ActiveTool(), st.DrawingOptions())
	return c
}

// Tool returns the tool whose state is currently entered.
func (c *Controller) Tool() domain.ToolType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

// Close releases every handler and subscription. It is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.releaseAllLocked()
	cleanup := c.cleanup
	c.cleanup = nil
	c.mu.Unlock()
	for _, fn := range cleanup {
		fn()
	}
}

func (c *Controller) onStoreChange(ch store.Change) {
	if ch.Has(store.ChangedTool | store.ChangedOptions) {
		c.enter(c.store.ActiveTool(), c.store.DrawingOptions())
	}
}

func (c *Controller) onSurfaceEvent(e surface.Event) {
	if e.Kind.Content() {
		c.Persist()
	}
}

// Persist serializes the surface and stores it, with a fresh thumbnail, as
// the active page's content.
func (c *Controller) Persist() {
	id := c.store.ActivePageID()
	if id == "" {
		return
	}
	data, err := c.surf.Serialize()
	if err != nil {
		c.log.Error("serialize page failed", slog.String("page", id), slog.Any("err", err))
		return
	}
	thumb, err := render.PNGDataURL(c.surf.Snapshot(c.scale))
	if err != nil {
		c.log.Warn("thumbnail failed", slog.String("page", id), slog.Any("err", err))
		thumb = ""
	}
	c.store.UpdatePageData(id, data, thumb)
}

func (c *Controller) onKey(e surface.KeyEvent) {
	if e.Key != "Delete" && e.Key != "Backspace" {
		return
	}
	ids := c.surf.Active()
	if len(ids) == 0 {
		return
	}
	c.surf.Remove(ids...)
	c.surf.DiscardActive()
}

// enter leaves the current state and enters the state for tool. Re-entering
// the same tool is a fresh activation.
func (c *Controller) enter(tool domain.ToolType, opts domain.DrawingOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.releaseAllLocked()
	c.tool = tool

	c.surf.SetDrawingMode(false, surface.Brush{})
	c.surf.SetSelection(true)
	c.surf.SetInteractive(true)

	switch {
	case tool.IsBrush():
		b, _ := BrushFor(tool, opts, c.surf.Background())
		c.surf.SetDrawingMode(true, b)
	case tool == domain.ToolText:
		c.surf.SetSelection(false)
		c.installTextLocked(opts)
	case tool.IsShape():
		c.surf.SetSelection(false)
		c.installShapeLocked(tool, opts)
	}
	c.log.Debug("tool entered", slog.String("tool", string(tool)))
}

func (c *Controller) releaseAllLocked() {
	for _, h := range c.handlers {
		h.release()
	}
	c.handlers = nil
}

// acquireLocked installs h and returns a release func that is safe to call
// from inside the handler and more than once.
func (c *Controller) acquireLocked(h surface.PointerHandler) func() {
	c.nextID++
	id := c.nextID
	rel := c.surf.HandlePointer(h)
	var once sync.Once
	release := func() { once.Do(rel) }
	c.handlers = append(c.handlers, handle{id: id, release: release})
	return func() {
		release()
		c.mu.Lock()
		c.handlers = slices.DeleteFunc(c.handlers, func(x handle) bool { return x.id == id })
		c.mu.Unlock()
	}
}

// installTextLocked adds a one-shot handler that drops a text object on the
// first pointer-down on empty canvas.
func (c *Controller) installTextLocked(opts domain.DrawingOptions) {
	var release func()
	release = c.acquireLocked(surface.PointerHandler{
		Down: func(e surface.PointerEvent) {
			if e.Target != "" {
				return
			}
			id := c.surf.Add(NewText(e.Point, opts))
			c.surf.SetActive(id)
			c.surf.BeginEdit(id)
			release()
		},
	})
}

// installShapeLocked adds the down/move/up set for drag-to-size shapes. The
// set is released on the first pointer-up.
func (c *Controller) installShapeLocked(tool domain.ToolType, opts domain.DrawingOptions) {
	var (
		drawingShape bool
		id           string
		anchor       vector.Pt
		release      func()
	)
	release = c.acquireLocked(surface.PointerHandler{
		Down: func(e surface.PointerEvent) {
			if e.Target != "" {
				return
			}
			drawingShape = true
			anchor = e.Point
			id = c.surf.Add(NewShape(tool, anchor, opts))
		},
		Move: func(e surface.PointerEvent) {
			if !drawingShape || id == "" {
				return
			}
			c.surf.Update(id, func(o *drawing.Object) { ResizeShape(o, anchor, e.Point) })
		},
		Up: func(surface.PointerEvent) {
			drawingShape = false
			id = ""
			release()
		},
	})
}

// NewText builds the placeholder text object placed by the text tool.
func NewText(at vector.Pt, opts domain.DrawingOptions) drawing.Object {
	return drawing.Object{
		Kind:     drawing.KindText,
		Left:     at.X,
		Top:      at.Y,
		Width:    DefaultTextWidth,
		FontSize: DefaultFontSize,
		Text:     DefaultText,
		Style:    drawing.Style{Fill: opts.Color, Opacity: opacity(opts)},
	}
}

// NewShape builds a zero-size shape anchored at p.
func NewShape(tool domain.ToolType, p vector.Pt, opts domain.DrawingOptions) drawing.Object {
	st := drawing.Style{Stroke: opts.Color, StrokeWidth: float64(opts.StrokeWidth), Fill: "transparent", Opacity: opacity(opts)}
	o := drawing.Object{Style: st}
	switch tool {
	case domain.ToolRectangle:
		o.Kind = drawing.KindRect
		o.Left, o.Top = p.X, p.Y
	case domain.ToolCircle:
		o.Kind = drawing.KindCircle
		o.CX, o.CY = p.X, p.Y
	case domain.ToolArrow:
		o.Kind = drawing.KindArrow
		o.X1, o.Y1, o.X2, o.Y2 = p.X, p.Y, p.X, p.Y
	default:
		o.Kind = drawing.KindLine
		o.X1, o.Y1, o.X2, o.Y2 = p.X, p.Y, p.X, p.Y
	}
	return o
}

// ResizeShape updates o for a drag from anchor to p: rectangles normalize to
// a top-left origin, circles keep the top-left of their bounding box on the
// anchor with radius = drag distance, lines move their far end.
func ResizeShape(o *drawing.Object, anchor, p vector.Pt) {
	switch o.Kind {
	case drawing.KindRect:
		r := vector.RectFromPoints(anchor, p)
		o.Left, o.Top, o.Width, o.Height = r.X, r.Y, r.W, r.H
	case drawing.KindCircle:
		r := math.Hypot(p.X-anchor.X, p.Y-anchor.Y)
		o.Radius = r
		o.CX, o.CY = anchor.X+r, anchor.Y+r
	case drawing.KindLine, drawing.KindArrow:
		o.X2, o.Y2 = p.X, p.Y
	}
}
