/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package surface

import (
	"image"
	"slices"
	"sync"
	"unicode/utf8"

	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/render"
	"gowhiteboard/internal/vector"
)

// Default canvas size in canvas units.
const (
	DefaultWidth  = 1280
	DefaultHeight = 800
)

// Canvas is a headless Adapter. Input arrives through PointerDown/Move/Up,
// DoubleClick and KeyDown in screen coordinates; callbacks and events are
// always invoked without the internal lock held, so handlers may call back
// into the canvas.
type Canvas struct {
	mu sync.Mutex

	background string
	objects    []drawing.Object
	locked     map[string]bool
	active     []string

	selection bool
	drawing   bool
	brush     Brush
	zoom      float64
	width     int
	height    int

	editing   string
	editFresh bool

	stroke    []vector.Pt
	capturing bool
	drag      *dragState
	band      *vector.Rect
	bandStart vector.Pt

	nextID   int
	subs     []sub[func(Event)]
	pointers []sub[PointerHandler]
	keys     []sub[KeyHandler]
}

type sub[T any] struct {
	id int
	fn T
}

type dragState struct {
	last  vector.Pt
	moved bool
}

var _ Adapter = (*Canvas)(nil)

// NewCanvas returns an empty canvas. Zero sizes use the defaults.
func NewCanvas(width, height int, background string) *Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if background == "" {
		background = drawing.DefaultBackground
	}
	return &Canvas{
		background: background,
		objects:    []drawing.Object{},
		locked:     map[string]bool{},
		selection:  true,
		zoom:       1,
		width:      width,
		height:     height,
	}
}

func (c *Canvas) emit(evs ...Event) {
	if len(evs) == 0 {
		return
	}
	c.mu.Lock()
	subs := slices.Clone(c.subs)
	c.mu.Unlock()
	for _, e := range evs {
		for _, s := range subs {
			s.fn(e)
		}
	}
}

func (c *Canvas) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, sub[func(Event)]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.subs = slices.DeleteFunc(c.subs, func(s sub[func(Event)]) bool { return s.id == id })
	}
}

func (c *Canvas) HandlePointer(h PointerHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.pointers = append(c.pointers, sub[PointerHandler]{id: id, fn: h})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pointers = slices.DeleteFunc(c.pointers, func(s sub[PointerHandler]) bool { return s.id == id })
	}
}

func (c *Canvas) HandleKeys(h KeyHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.keys = append(c.keys, sub[KeyHandler]{id: id, fn: h})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.keys = slices.DeleteFunc(c.keys, func(s sub[KeyHandler]) bool { return s.id == id })
	}
}

// Handlers returns the number of installed pointer and key handlers.
func (c *Canvas) Handlers() (pointer, key int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pointers), len(c.keys)
}

func (c *Canvas) Load(data string) error {
	doc, err := drawing.Decode(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.background = doc.Background
	c.objects = doc.Objects
	c.locked = map[string]bool{}
	c.active = nil
	c.editing = ""
	c.stroke, c.capturing, c.drag, c.band = nil, false, nil, nil
	return nil
}

func (c *Canvas) Serialize() (string, error) {
	c.mu.Lock()
	doc := c.documentLocked()
	c.mu.Unlock()
	return drawing.Encode(doc)
}

// Document returns a deep copy of the current content.
func (c *Canvas) Document() *drawing.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentLocked()
}

func (c *Canvas) documentLocked() *drawing.Document {
	doc := drawing.New(c.background)
	for _, o := range c.objects {
		doc.Objects = append(doc.Objects, o.Clone())
	}
	return doc
}

func (c *Canvas) indexLocked(id string) int {
	for i := range c.objects {
		if c.objects[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Canvas) Add(o drawing.Object) string {
	c.mu.Lock()
	if o.ID == "" || c.indexLocked(o.ID) >= 0 {
		o.ID = drawing.NewObjectID()
	}
	c.objects = append(c.objects, o.Clone())
	c.mu.Unlock()
	c.emit(Event{Kind: ObjectAdded, IDs: []string{o.ID}})
	return o.ID
}

func (c *Canvas) Update(id string, fn func(*drawing.Object)) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	fn(&c.objects[i])
	c.objects[i].ID = id
	c.mu.Unlock()
	c.emit(Event{Kind: ObjectModified, IDs: []string{id}})
	return true
}

func (c *Canvas) Remove(ids ...string) int {
	c.mu.Lock()
	var removed []string
	c.objects = slices.DeleteFunc(c.objects, func(o drawing.Object) bool {
		if slices.Contains(ids, o.ID) {
			removed = append(removed, o.ID)
			return true
		}
		return false
	})
	for _, id := range removed {
		delete(c.locked, id)
		if c.editing == id {
			c.editing = ""
		}
	}
	c.active = slices.DeleteFunc(c.active, func(id string) bool { return slices.Contains(removed, id) })
	c.mu.Unlock()
	if len(removed) > 0 {
		c.emit(Event{Kind: ObjectRemoved, IDs: removed})
	}
	return len(removed)
}

func (c *Canvas) Objects() []drawing.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]drawing.Object, len(c.objects))
	for i, o := range c.objects {
		out[i] = o.Clone()
	}
	return out
}

func (c *Canvas) Object(id string) (drawing.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.objects[i].Clone(), true
	}
	return drawing.Object{}, false
}

func (c *Canvas) SetActive(ids ...string) {
	c.mu.Lock()
	next := make([]string, 0, len(ids))
	for _, id := range ids {
		if c.indexLocked(id) >= 0 && !slices.Contains(next, id) {
			next = append(next, id)
		}
	}
	c.active = next
	if c.editing != "" && !slices.Contains(next, c.editing) {
		c.editing = ""
	}
	c.mu.Unlock()
	c.emit(Event{Kind: SelectionChanged, IDs: slices.Clone(next)})
}

func (c *Canvas) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.active)
}

func (c *Canvas) DiscardActive() {
	c.mu.Lock()
	had := len(c.active) > 0
	c.active = nil
	c.editing = ""
	c.mu.Unlock()
	if had {
		c.emit(Event{Kind: SelectionChanged})
	}
}

func (c *Canvas) SetInteractive(on bool, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(ids) == 0 {
		if on {
			c.locked = map[string]bool{}
			return
		}
		for _, o := range c.objects {
			c.locked[o.ID] = true
		}
		return
	}
	for _, id := range ids {
		if on {
			delete(c.locked, id)
		} else {
			c.locked[id] = true
		}
	}
}

// Interactive reports whether id can be picked and selected.
func (c *Canvas) Interactive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexLocked(id) >= 0 && !c.locked[id]
}

func (c *Canvas) SetSelection(enabled bool) {
	c.mu.Lock()
	c.selection = enabled
	c.mu.Unlock()
}

// Selection reports whether rubber-band multi-selection is enabled.
func (c *Canvas) Selection() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

func (c *Canvas) SetDrawingMode(on bool, b Brush) {
	c.mu.Lock()
	c.drawing = on
	c.brush = b
	if !on {
		c.stroke, c.capturing = nil, false
	}
	c.mu.Unlock()
}

// DrawingMode returns the freehand state and brush.
func (c *Canvas) DrawingMode() (bool, Brush) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawing, c.brush
}

func (c *Canvas) ToCanvas(screen vector.Pt) vector.Pt {
	c.mu.Lock()
	z := c.zoom
	c.mu.Unlock()
	return vector.Pt{X: screen.X / z, Y: screen.Y / z}
}

func (c *Canvas) Snapshot(scale float64) *image.RGBA {
	c.mu.Lock()
	doc := c.documentLocked()
	w, h := c.width, c.height
	c.mu.Unlock()
	return render.Render(doc, w, h, scale)
}

func (c *Canvas) SetZoom(z float64) {
	if z <= 0 {
		return
	}
	c.mu.Lock()
	c.zoom = z
	c.mu.Unlock()
}

func (c *Canvas) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

func (c *Canvas) SetDimensions(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	c.mu.Lock()
	c.width, c.height = w, h
	c.mu.Unlock()
}

func (c *Canvas) Dimensions() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *Canvas) Background() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.background
}

// BeginEdit selects a text object and routes key input into it. The first
// printable key replaces the whole text.
func (c *Canvas) BeginEdit(id string) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 || c.objects[i].Kind != drawing.KindText {
		c.mu.Unlock()
		return
	}
	c.active = []string{id}
	c.editing = id
	c.editFresh = true
	c.mu.Unlock()
	c.emit(Event{Kind: SelectionChanged, IDs: []string{id}})
}

func (c *Canvas) Editing() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

// hitLocked returns the top-most interactive object containing p.
func (c *Canvas) hitLocked(p vector.Pt) string {
	for i := len(c.objects) - 1; i >= 0; i-- {
		o := c.objects[i]
		if c.locked[o.ID] {
			continue
		}
		if o.Node().Hit(p) {
			return o.ID
		}
	}
	return ""
}

// SelectionBounds returns the bounding boxes of the active objects.
func (c *Canvas) SelectionBounds() []vector.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []vector.Rect
	for _, id := range c.active {
		if i := c.indexLocked(id); i >= 0 {
			out = append(out, c.objects[i].Bounds())
		}
	}
	return out
}

func (c *Canvas) pointerHandlers() []sub[PointerHandler] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.pointers)
}

// PointerDown starts a gesture at a screen position.
func (c *Canvas) PointerDown(screen vector.Pt) {
	p := c.ToCanvas(screen)
	var evs []Event
	c.mu.Lock()
	target := ""
	if c.drawing {
		c.capturing = true
		c.stroke = []vector.Pt{p}
	} else {
		target = c.hitLocked(p)
		if c.editing != "" && c.editing != target {
			c.editing = ""
		}
		switch {
		case target != "":
			if !slices.Contains(c.active, target) {
				c.active = []string{target}
				evs = append(evs, Event{Kind: SelectionChanged, IDs: []string{target}})
			}
			c.drag = &dragState{last: p}
		default:
			if len(c.active) > 0 {
				c.active = nil
				evs = append(evs, Event{Kind: SelectionChanged})
			}
			if c.selection {
				c.bandStart = p
				c.band = &vector.Rect{X: p.X, Y: p.Y}
			}
		}
	}
	c.mu.Unlock()
	c.emit(evs...)
	for _, h := range c.pointerHandlers() {
		if h.fn.Down != nil {
			h.fn.Down(PointerEvent{Point: p, Target: target})
		}
	}
}

// PointerMove continues the current gesture, if any.
func (c *Canvas) PointerMove(screen vector.Pt) {
	p := c.ToCanvas(screen)
	c.mu.Lock()
	switch {
	case c.capturing:
		if last := c.stroke[len(c.stroke)-1]; last != p {
			c.stroke = append(c.stroke, p)
		}
	case c.drag != nil:
		dx, dy := p.X-c.drag.last.X, p.Y-c.drag.last.Y
		if dx != 0 || dy != 0 {
			for _, id := range c.active {
				if i := c.indexLocked(id); i >= 0 && !c.locked[id] {
					c.objects[i].Move(dx, dy)
				}
			}
			c.drag.last = p
			c.drag.moved = true
		}
	case c.band != nil:
		r := vector.RectFromPoints(c.bandStart, p)
		c.band = &r
	}
	target := ""
	if !c.drawing {
		target = c.hitLocked(p)
	}
	c.mu.Unlock()
	for _, h := range c.pointerHandlers() {
		if h.fn.Move != nil {
			h.fn.Move(PointerEvent{Point: p, Target: target})
		}
	}
}

// PointerUp ends the current gesture: a freehand stroke becomes a path
// object, a drag reports the moved objects, a rubber band selects.
func (c *Canvas) PointerUp(screen vector.Pt) {
	p := c.ToCanvas(screen)
	var evs []Event
	c.mu.Lock()
	switch {
	case c.capturing:
		if last := c.stroke[len(c.stroke)-1]; last != p {
			c.stroke = append(c.stroke, p)
		}
		o := drawing.Object{
			ID:     drawing.NewObjectID(),
			Kind:   drawing.KindPath,
			Points: make([]drawing.Point, len(c.stroke)),
			Style:  drawing.Style{Stroke: c.brush.Color, StrokeWidth: c.brush.Width, Fill: "transparent"},
		}
		for i, q := range c.stroke {
			o.Points[i] = drawing.Point{X: q.X, Y: q.Y}
		}
		c.objects = append(c.objects, o)
		c.stroke, c.capturing = nil, false
		evs = append(evs, Event{Kind: ObjectAdded, IDs: []string{o.ID}})
	case c.drag != nil:
		if c.drag.moved && len(c.active) > 0 {
			evs = append(evs, Event{Kind: ObjectModified, IDs: slices.Clone(c.active)})
		}
		c.drag = nil
	case c.band != nil:
		band := *c.band
		c.band = nil
		var sel []string
		if !band.Empty() {
			for _, o := range c.objects {
				if !c.locked[o.ID] && band.Intersects(o.Bounds()) {
					sel = append(sel, o.ID)
				}
			}
		}
		if len(sel) > 0 {
			c.active = sel
			evs = append(evs, Event{Kind: SelectionChanged, IDs: slices.Clone(sel)})
		}
	}
	target := ""
	if !c.drawing {
		target = c.hitLocked(p)
	}
	c.mu.Unlock()
	c.emit(evs...)
	for _, h := range c.pointerHandlers() {
		if h.fn.Up != nil {
			h.fn.Up(PointerEvent{Point: p, Target: target})
		}
	}
}

// DoubleClick enters text editing on a text object under the pointer.
func (c *Canvas) DoubleClick(screen vector.Pt) {
	p := c.ToCanvas(screen)
	c.mu.Lock()
	target := ""
	if !c.drawing {
		target = c.hitLocked(p)
	}
	c.mu.Unlock()
	if target != "" {
		c.BeginEdit(target)
	}
}

// KeyDown routes a key press. While a text object is being edited the key
// edits its text and is not delivered to key handlers.
func (c *Canvas) KeyDown(key string) {
	c.mu.Lock()
	if c.editing != "" {
		id := c.editing
		i := c.indexLocked(id)
		changed := false
		switch {
		case i < 0:
			c.editing = ""
		case key == "Escape":
			c.editing = ""
		case key == "Backspace":
			t := c.objects[i].Text
			if c.editFresh {
				t = ""
			} else if len(t) > 0 {
				_, size := utf8.DecodeLastRuneInString(t)
				t = t[:len(t)-size]
			}
			c.objects[i].Text = t
			c.editFresh = false
			changed = true
		case key == "Enter":
			if c.editFresh {
				c.objects[i].Text = ""
			}
			c.objects[i].Text += "\n"
			c.editFresh = false
			changed = true
		case utf8.RuneCountInString(key) == 1:
			if c.editFresh {
				c.objects[i].Text = ""
			}
			c.objects[i].Text += key
			c.editFresh = false
			changed = true
		}
		c.mu.Unlock()
		if changed {
			c.emit(Event{Kind: ObjectModified, IDs: []string{id}})
		}
		return
	}
	keys := slices.Clone(c.keys)
	c.mu.Unlock()
	for _, h := range keys {
		h.fn(KeyEvent{Key: key})
	}
}
