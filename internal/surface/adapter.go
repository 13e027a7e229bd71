/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package surface provides the drawing surface the tool controller drives:
// an object model with selection, freehand capture, pointer and key routing,
// and (de)serialization of page content.
package surface

import (
	"image"

	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/vector"
)

// EventKind classifies surface notifications.
type EventKind int

const (
	ObjectAdded EventKind = iota + 1
	ObjectRemoved
	ObjectModified
	SelectionChanged
)

func (k EventKind) String() string {
	switch k {
	case ObjectAdded:
		return "object:added"
	case ObjectRemoved:
		return "object:removed"
	case ObjectModified:
		return "object:modified"
	case SelectionChanged:
		return "selection:changed"
	}
	return "unknown"
}

// Content reports whether the event changes page content.
func (k EventKind) Content() bool {
	return k == ObjectAdded || k == ObjectRemoved || k == ObjectModified
}

// Event is delivered to subscribers after a change has been applied.
type Event struct {
	Kind EventKind
	IDs  []string
}

// Brush configures freehand capture.
type Brush struct {
	Color string
	Width float64
}

// PointerEvent carries a pointer position in canvas coordinates and the
// top-most interactive object under it ("" for empty canvas).
type PointerEvent struct {
	Point  vector.Pt
	Target string
}

// PointerHandler is a set of optional pointer callbacks installed together.
type PointerHandler struct {
	Down func(PointerEvent)
	Move func(PointerEvent)
	Up   func(PointerEvent)
}

// KeyEvent is a key press, named like DOM KeyboardEvent.key ("Delete", "a").
type KeyEvent struct {
	Key string
}

type KeyHandler func(KeyEvent)

// Adapter is the capability set the tool controller and the session need
// from a drawing surface.
type Adapter interface {
	// Load replaces all content from serialized page data without emitting
	// content events.
	Load(data string) error
	Serialize() (string, error)

	// Add appends o on top and returns its id (assigned when empty).
	Add(o drawing.Object) string
	// Update mutates the object in place and emits ObjectModified.
	Update(id string, fn func(*drawing.Object)) bool
	Remove(ids ...string) int
	Objects() []drawing.Object
	Object(id string) (drawing.Object, bool)

	SetActive(ids ...string)
	Active() []string
	DiscardActive()
	// SetInteractive toggles selectability of the given objects, or of all
	// objects when no ids are passed.
	SetInteractive(on bool, ids ...string)
	SetSelection(enabled bool)
	SetDrawingMode(on bool, b Brush)

	ToCanvas(screen vector.Pt) vector.Pt
	Snapshot(scale float64) *image.RGBA

	Subscribe(fn func(Event)) (cancel func())
	HandlePointer(h PointerHandler) (release func())
	HandleKeys(h KeyHandler) (release func())

	SetZoom(z float64)
	Zoom() float64
	SetDimensions(w, h int)
	Dimensions() (int, int)
	Background() string

	BeginEdit(id string)
	Editing() string
}
