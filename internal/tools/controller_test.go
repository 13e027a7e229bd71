/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tools

import (
	"strings"
	"testing"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/store"
	"gowhiteboard/internal/surface"
	"gowhiteboard/internal/vector"
)

func setup(t *testing.T) (*store.Store, *surface.Canvas, *Controller) {
	t.Helper()
	st := store.New()
	cv := surface.NewCanvas(400, 300, "")
	c := New(st, cv)
	t.Cleanup(c.Close)
	return st, cv, c
}

func pt(x, y float64) vector.Pt { return vector.Pt{X: x, Y: y} }

func TestInitialToolIsPen(t *testing.T) {
	_, cv, c := setup(t)
	if c.Tool() != domain.ToolPen {
		t.Fatalf("tool = %s", c.Tool())
	}
	on, b := cv.DrawingMode()
	if !on || b.Color != "#000000" || b.Width != 2 {
		t.Fatalf("pen brush not configured: %v %+v", on, b)
	}
}

func TestBrushFor(t *testing.T) {
	opts := domain.DrawingOptions{Color: "#3b82f6", StrokeWidth: 4, Opacity: 1}
	b, ok := BrushFor(domain.ToolHighlighter, opts, "#ffffff")
	if !ok || b.Color != "#3b82f680" || b.Width != 12 {
		t.Fatalf("highlighter brush %+v", b)
	}
	b, _ = BrushFor(domain.ToolEraser, opts, "#ffffff")
	if b.Color != "#ffffff" || b.Width != 8 {
		t.Fatalf("eraser brush %+v", b)
	}
	b, _ = BrushFor(domain.ToolPen, domain.DrawingOptions{Color: "#000000", StrokeWidth: 2, Opacity: 0.5}, "#ffffff")
	if b.Color != "#00000080" {
		t.Fatalf("pen opacity not applied: %+v", b)
	}
	if _, ok := BrushFor(domain.ToolRectangle, opts, ""); ok {
		t.Fatalf("rectangle has no brush")
	}
}

func TestEnteringStateResetsSurface(t *testing.T) {
	st, cv, _ := setup(t)
	id := cv.Add(drawing.Object{Kind: drawing.KindRect, Width: 10, Height: 10})
	cv.SetInteractive(false)

	st.SetActiveTool(domain.ToolRectangle)
	if on, _ := cv.DrawingMode(); on {
		t.Fatalf("shape tools must turn drawing mode off")
	}
	if cv.Selection() {
		t.Fatalf("shape tools disable multi-selection")
	}
	if !cv.Interactive(id) {
		t.Fatalf("entering a state makes every object interactive")
	}

	st.SetActiveTool(domain.ToolSelect)
	if !cv.Selection() {
		t.Fatalf("select enables multi-selection")
	}
	if p, _ := cv.Handlers(); p != 0 {
		t.Fatalf("select should not keep pointer handlers, got %d", p)
	}
}

func TestRectangleGesture(t *testing.T) {
	st, cv, c := setup(t)
	st.SetActiveTool(domain.ToolRectangle)
	st.SetColor("#ef4444")
	st.SetStrokeWidth(3)
	if c.Tool() != domain.ToolRectangle {
		t.Fatalf("tool = %s", c.Tool())
	}

	cv.PointerDown(pt(50, 80))
	cv.PointerMove(pt(30, 40))
	cv.PointerMove(pt(10, 10))
	cv.PointerUp(pt(10, 10))

	objs := cv.Objects()
	if len(objs) != 1 {
		t.Fatalf("expected one rect, got %d", len(objs))
	}
	r := objs[0]
	if r.Kind != drawing.KindRect || r.Left != 10 || r.Top != 10 || r.Width != 40 || r.Height != 70 {
		t.Fatalf("unexpected rect %+v", r)
	}
	if r.Style.Stroke != "#ef4444" || r.Style.StrokeWidth != 3 || r.Style.Fill != "transparent" {
		t.Fatalf("unexpected style %+v", r.Style)
	}
	if p, _ := cv.Handlers(); p != 0 {
		t.Fatalf("shape handlers should be released on pointer-up, %d left", p)
	}

	// stored page content follows the final geometry
	page, _ := st.ActivePage()
	doc, err := drawing.Decode(page.Data)
	if err != nil || len(doc.Objects) != 1 || doc.Objects[0].Height != 70 {
		t.Fatalf("page data not updated: %v %+v", err, doc)
	}
	if !strings.HasPrefix(page.Thumbnail, "data:image/png;base64,") {
		t.Fatalf("thumbnail missing")
	}
	if !st.HasUnsavedChanges() {
		t.Fatalf("drawing should mark unsaved")
	}

	// a second gesture does nothing until the tool is re-entered
	cv.PointerDown(pt(200, 200))
	cv.PointerUp(pt(250, 250))
	if len(cv.Objects()) != 1 {
		t.Fatalf("released handlers must not draw")
	}
	st.SetActiveTool(domain.ToolRectangle)
	cv.PointerDown(pt(200, 200))
	cv.PointerMove(pt(250, 260))
	cv.PointerUp(pt(250, 260))
	if len(cv.Objects()) != 2 {
		t.Fatalf("re-entering the tool should allow another shape")
	}
}

func TestShapeDownOnObjectDoesNotDraw(t *testing.T) {
	st, cv, _ := setup(t)
	cv.Add(drawing.Object{Kind: drawing.KindRect, Left: 0, Top: 0, Width: 100, Height: 100})
	st.SetActiveTool(domain.ToolLine)
	cv.PointerDown(pt(50, 50))
	cv.PointerMove(pt(60, 60))
	cv.PointerUp(pt(60, 60))
	if n := len(cv.Objects()); n != 1 {
		t.Fatalf("pointer-down on an object must not start a shape, have %d objects", n)
	}
}

func TestCircleAndArrowGeometry(t *testing.T) {
	st, cv, _ := setup(t)
	st.SetActiveTool(domain.ToolCircle)
	cv.PointerDown(pt(100, 100))
	cv.PointerMove(pt(103, 104))
	cv.PointerUp(pt(103, 104))

	st.SetActiveTool(domain.ToolArrow)
	cv.PointerDown(pt(300, 10))
	cv.PointerMove(pt(350, 60))
	cv.PointerUp(pt(350, 60))

	objs := cv.Objects()
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objs))
	}
	// bounding box starts at the drag origin and grows down-right
	if c := objs[0]; c.Kind != drawing.KindCircle || c.CX != 105 || c.CY != 105 || c.Radius != 5 {
		t.Fatalf("unexpected circle %+v", c)
	}
	if b := objs[0].Bounds(); b.X != 100 || b.Y != 100 || b.W != 10 || b.H != 10 {
		t.Fatalf("circle bounds %+v, want top-left at the drag origin", b)
	}
	if a := objs[1]; a.Kind != drawing.KindArrow || a.X1 != 300 || a.Y1 != 10 || a.X2 != 350 || a.Y2 != 60 {
		t.Fatalf("unexpected arrow %+v", a)
	}
}

func TestTextToolIsOneShot(t *testing.T) {
	st, cv, _ := setup(t)
	st.SetColor("#22c55e")
	st.SetActiveTool(domain.ToolText)
	if cv.Selection() {
		t.Fatalf("text tool disables multi-selection")
	}
	cv.PointerDown(pt(40, 60))
	cv.PointerUp(pt(40, 60))

	objs := cv.Objects()
	if len(objs) != 1 {
		t.Fatalf("expected one text object")
	}
	txt := objs[0]
	if txt.Kind != drawing.KindText || txt.Text != DefaultText || txt.FontSize != 20 || txt.Width != 200 || txt.Style.Fill != "#22c55e" {
		t.Fatalf("unexpected text object %+v", txt)
	}
	if txt.Left != 40 || txt.Top != 60 {
		t.Fatalf("text should be placed at the pointer: %+v", txt)
	}
	if cv.Editing() != txt.ID {
		t.Fatalf("new text should be in edit mode")
	}
	if got := cv.Active(); len(got) != 1 || got[0] != txt.ID {
		t.Fatalf("new text should be active: %v", got)
	}
	if p, _ := cv.Handlers(); p != 0 {
		t.Fatalf("text handler should release itself")
	}
	cv.KeyDown("Escape")
	cv.PointerDown(pt(300, 250))
	if len(cv.Objects()) != 1 {
		t.Fatalf("second click must not add another text")
	}
}

func TestPenStrokePersistsPage(t *testing.T) {
	st, cv, _ := setup(t)
	st.MarkSaved()
	cv.PointerDown(pt(10, 10))
	cv.PointerMove(pt(20, 20))
	cv.PointerUp(pt(30, 10))

	page, _ := st.ActivePage()
	doc, _ := drawing.Decode(page.Data)
	if len(doc.Objects) != 1 || doc.Objects[0].Kind != drawing.KindPath {
		t.Fatalf("stroke not persisted: %+v", doc.Objects)
	}
	if !st.HasUnsavedChanges() {
		t.Fatalf("stroke should mark unsaved")
	}
}

func TestHighlighterAndEraserBrushes(t *testing.T) {
	st, cv, _ := setup(t)
	st.SetDrawingOptions(domain.DrawingOptionsPatch{})
	st.SetActiveTool(domain.ToolHighlighter)
	if _, b := cv.DrawingMode(); b.Color != "#00000080" || b.Width != 6 {
		t.Fatalf("highlighter brush %+v", b)
	}
	st.SetActiveTool(domain.ToolEraser)
	if _, b := cv.DrawingMode(); b.Color != "#ffffff" || b.Width != 4 {
		t.Fatalf("eraser brush %+v", b)
	}
	st.SetStrokeWidth(5)
	if _, b := cv.DrawingMode(); b.Width != 10 {
		t.Fatalf("options change should re-enter the state, brush %+v", b)
	}
}

func TestDeleteKeyRemovesSelection(t *testing.T) {
	st, cv, _ := setup(t)
	a := cv.Add(drawing.Object{Kind: drawing.KindRect, Width: 10, Height: 10})
	b := cv.Add(drawing.Object{Kind: drawing.KindRect, Left: 50, Width: 10, Height: 10})
	cv.Add(drawing.Object{Kind: drawing.KindRect, Left: 100, Width: 10, Height: 10})

	for _, tool := range []domain.ToolType{domain.ToolSelect, domain.ToolPen, domain.ToolCircle} {
		st.SetActiveTool(tool)
		cv.KeyDown("Delete") // nothing selected: no-op
	}
	if len(cv.Objects()) != 3 {
		t.Fatalf("delete without a selection must not remove anything")
	}
	cv.SetActive(a, b)
	cv.KeyDown("Backspace")
	if objs := cv.Objects(); len(objs) != 1 || len(cv.Active()) != 0 {
		t.Fatalf("expected selection removed, have %d objects", len(objs))
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	st := store.New()
	cv := surface.NewCanvas(100, 100, "")
	c := New(st, cv)
	st.SetActiveTool(domain.ToolRectangle)
	c.Close()
	c.Close()
	if p, k := cv.Handlers(); p != 0 || k != 0 {
		t.Fatalf("handlers leaked after Close: %d %d", p, k)
	}
	st.SetActiveTool(domain.ToolText)
	if p, _ := cv.Handlers(); p != 0 {
		t.Fatalf("closed controller reacted to store changes")
	}
	cv.Add(drawing.Object{Kind: drawing.KindRect})
	st.MarkSaved()
	if st.HasUnsavedChanges() {
		t.Fatalf("closed controller should not persist")
	}
}

func TestResizeShapeNormalizes(t *testing.T) {
	o := NewShape(domain.ToolRectangle, pt(10, 10), domain.DefaultDrawingOptions())
	ResizeShape(&o, pt(10, 10), pt(50, 80))
	if o.Left != 10 || o.Top != 10 || o.Width != 40 || o.Height != 70 {
		t.Fatalf("unexpected rect %+v", o)
	}
}
