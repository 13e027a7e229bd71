//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"gowhiteboard/internal/session"
)

// BoardCanvas shows the rendered active page and forwards mouse and key
// input to the session. Widget coordinates are screen coordinates of the
// surface, so the image is laid out at zoom scale from the top-left.
type BoardCanvas struct {
	widget.BaseWidget
	sess *session.Session

	pressed bool
	last    fyne.Position
	focused bool
	// OnChanged runs after input that may have changed the page.
	OnChanged func()
}

var (
	_ desktop.Mouseable   = (*BoardCanvas)(nil)
	_ desktop.Hoverable   = (*BoardCanvas)(nil)
	_ fyne.Focusable      = (*BoardCanvas)(nil)
	_ fyne.DoubleTappable = (*BoardCanvas)(nil)
)

func NewBoardCanvas(sess *session.Session) *BoardCanvas {
	b := &BoardCanvas{sess: sess}
	b.ExtendBaseWidget(b)
	return b
}

// boardSize is the surface size at the current zoom.
func (b *BoardCanvas) boardSize() fyne.Size {
	surf := b.sess.Surface()
	w, h := surf.Dimensions()
	z := float32(surf.Zoom())
	return fyne.NewSize(float32(w)*z, float32(h)*z)
}

func (b *BoardCanvas) snapshot() image.Image {
	surf := b.sess.Surface()
	return surf.Snapshot(surf.Zoom())
}

func (b *BoardCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})
	img := canvas.NewImageFromImage(b.snapshot())
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleFastest
	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	border.StrokeWidth = 1
	return &boardRenderer{b: b, bg: bg, img: img, border: border, objects: []fyne.CanvasObject{bg, img, border}}
}

func (b *BoardCanvas) changed() {
	b.Refresh()
	if b.OnChanged != nil {
		b.OnChanged()
	}
}

func (b *BoardCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.requestFocus()
	b.pressed = true
	b.last = e.Position
	b.sess.PointerDown(float64(e.Position.X), float64(e.Position.Y))
	b.Refresh()
}

func (b *BoardCanvas) MouseUp(e *desktop.MouseEvent) {
	if !b.pressed {
		return
	}
	b.pressed = false
	b.sess.PointerUp(float64(e.Position.X), float64(e.Position.Y))
	b.changed()
}

func (b *BoardCanvas) MouseIn(*desktop.MouseEvent) {}

func (b *BoardCanvas) MouseMoved(e *desktop.MouseEvent) {
	if !b.pressed {
		return
	}
	b.last = e.Position
	b.sess.PointerMove(float64(e.Position.X), float64(e.Position.Y))
	b.Refresh()
}

// MouseOut ends a gesture that leaves the widget where it was last seen.
func (b *BoardCanvas) MouseOut() {
	if b.pressed {
		b.pressed = false
		b.sess.PointerUp(float64(b.last.X), float64(b.last.Y))
		b.changed()
	}
}

func (b *BoardCanvas) DoubleTapped(e *fyne.PointEvent) {
	b.sess.DoubleClick(float64(e.Position.X), float64(e.Position.Y))
	b.changed()
}

func (b *BoardCanvas) requestFocus() {
	if c := fyne.CurrentApp().Driver().CanvasForObject(b); c != nil {
		c.Focus(b)
	}
}

func (b *BoardCanvas) FocusGained() { b.focused = true }
func (b *BoardCanvas) FocusLost()   { b.focused = false }

func (b *BoardCanvas) TypedRune(r rune) {
	b.sess.KeyDown(string(r))
	b.changed()
}

func (b *BoardCanvas) TypedKey(e *fyne.KeyEvent) {
	name := keyName(e.Name)
	if name == "" {
		return
	}
	b.sess.KeyDown(name)
	b.changed()
}

// keyName maps fyne key names to the DOM-style names the surface expects.
// Printable keys arrive through TypedRune instead.
func keyName(k fyne.KeyName) string {
	switch k {
	case fyne.KeyDelete:
		return "Delete"
	case fyne.KeyBackspace:
		return "Backspace"
	case fyne.KeyEscape:
		return "Escape"
	case fyne.KeyReturn, fyne.KeyEnter:
		return "Enter"
	}
	return ""
}

type boardRenderer struct {
	b       *BoardCanvas
	bg      *canvas.Rectangle
	img     *canvas.Image
	border  *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *boardRenderer) Destroy()                     {}
func (r *boardRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *boardRenderer) MinSize() fyne.Size           { return r.b.boardSize() }

func (r *boardRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	bs := r.b.boardSize()
	r.img.Resize(bs)
	r.img.Move(fyne.NewPos(0, 0))
	r.border.Resize(bs)
	r.border.Move(fyne.NewPos(0, 0))
}

func (r *boardRenderer) Refresh() {
	r.img.Image = r.b.snapshot()
	r.Layout(r.b.Size())
	r.img.Refresh()
	canvas.Refresh(r.b)
}
