/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/storage"
)

func newTestSession(t *testing.T) (*Session, *MockEmitter) {
	t.Helper()
	em := &MockEmitter{}
	s := New(Options{Width: 200, Height: 100, Emitter: em})
	t.Cleanup(s.Close)
	return s, em
}

func drawRect(s *Session, x1, y1, x2, y2 float64) {
	_ = s.SetTool("rectangle")
	s.Drag(x1, y1, x2, y2)
}

func TestNewSessionHasWorkingPageButNoProject(t *testing.T) {
	s, _ := newTestSession(t)
	st := s.State()
	if st.Project != nil || len(st.Pages) != 1 || st.ActivePageID != st.Pages[0].ID {
		t.Fatalf("unexpected initial state %+v", st)
	}
	if s.Tool() != domain.ToolPen {
		t.Fatalf("tool = %s", s.Tool())
	}
	if _, err := s.Save(context.Background()); !errors.Is(err, domain.ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
}

func TestNewProjectValidatesName(t *testing.T) {
	s, _ := newTestSession(t)
	if _, err := s.NewProject(context.Background(), "   "); !errors.Is(err, domain.ErrEmptyProjectName) {
		t.Fatalf("expected ErrEmptyProjectName, got %v", err)
	}
	p, err := s.NewProject(context.Background(), "  Demo ")
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	if p.Name != "Demo" || len(p.Pages) != 1 {
		t.Fatalf("unexpected project %+v", p)
	}
	if s.State().HasUnsavedChanges {
		t.Fatalf("new project must start saved")
	}
}

func TestPageScenario(t *testing.T) {
	s, _ := newTestSession(t)
	if _, err := s.NewProject(context.Background(), "Demo"); err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	s.AddPage()
	third := s.AddPage()
	st := s.State()
	if len(st.Pages) != 3 || st.ActivePageID != third.ID {
		t.Fatalf("after two adds: %d pages, active %s", len(st.Pages), st.ActivePageID)
	}
	if err := s.DeletePage(st.Pages[1].ID); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	st = s.State()
	if len(st.Pages) != 2 || st.ActivePageID != third.ID {
		t.Fatalf("after delete: %d pages, active %s", len(st.Pages), st.ActivePageID)
	}
	if err := s.DeletePage("page-missing"); !errors.Is(err, domain.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	_ = s.DeletePage(st.Pages[0].ID)
	if err := s.DeletePage(third.ID); !errors.Is(err, domain.ErrLastPage) {
		t.Fatalf("expected ErrLastPage, got %v", err)
	}
	if err := s.SelectPage("page-missing"); !errors.Is(err, domain.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	if err := s.RenamePage(third.ID, " "); err == nil {
		t.Fatalf("blank page name accepted")
	}
	if err := s.RenamePage(third.ID, "Ideas"); err != nil || s.State().Pages[0].Name != "Ideas" {
		t.Fatalf("rename failed: %v", err)
	}
}

func TestRectangleGestureAndPageSwitch(t *testing.T) {
	s, _ := newTestSession(t)
	_, _ = s.NewProject(context.Background(), "Demo")
	first := s.State().ActivePageID

	drawRect(s, 10, 10, 50, 80)
	objs := s.Objects()
	if len(objs) != 1 {
		t.Fatalf("expected one object, got %d", len(objs))
	}
	r := objs[0]
	if r.Kind != drawing.KindRect || r.Left != 10 || r.Top != 10 || r.Width != 40 || r.Height != 70 {
		t.Fatalf("unexpected rect %+v", r)
	}
	if !s.State().HasUnsavedChanges {
		t.Fatalf("drawing should mark unsaved")
	}

	s.AddPage()
	if n := len(s.Objects()); n != 0 {
		t.Fatalf("new page should show an empty surface, got %d objects", n)
	}
	dup, err := s.DuplicatePage(first)
	if err != nil {
		t.Fatalf("DuplicatePage: %v", err)
	}
	if err := s.SelectPage(dup.ID); err != nil {
		t.Fatalf("SelectPage: %v", err)
	}
	if objs := s.Objects(); len(objs) != 1 || objs[0].ID != r.ID {
		t.Fatalf("duplicate should carry the rectangle, got %+v", objs)
	}
}

func TestOptionsAreClamped(t *testing.T) {
	s, _ := newTestSession(t)
	if w := s.SetStrokeWidth(25); w != domain.MaxStrokeWidth {
		t.Fatalf("stroke width = %d", w)
	}
	if o := s.SetOpacity(3); o != 1 {
		t.Fatalf("opacity = %v", o)
	}
	if z := s.SetZoom(10); z != domain.MaxZoom {
		t.Fatalf("zoom = %v", z)
	}
	if z := s.ZoomOut(); z != 2.9 {
		t.Fatalf("zoom out = %v", z)
	}
	if s.Surface().Zoom() != 2.9 {
		t.Fatalf("surface zoom not applied: %v", s.Surface().Zoom())
	}
	if err := s.SetColor("not-a-color"); err == nil {
		t.Fatalf("bad color accepted")
	}
	if err := s.SetTool("laser"); err == nil {
		t.Fatalf("unknown tool accepted")
	}
	if err := s.SetColor("#3b82f6"); err != nil || s.State().DrawingOptions.Color != "#3b82f6" {
		t.Fatalf("SetColor: %v", err)
	}
	if err := s.SetColor("rgba(239, 68, 68, 0.5)"); err != nil {
		t.Fatalf("SetColor rgba: %v", err)
	}
	if c := s.State().DrawingOptions.Color; c != "#ef444480" {
		t.Fatalf("rgba colour stored as %q, want #ef444480", c)
	}
}

func TestSaveToAndOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, em := newTestSession(t)
	_, _ = s.NewProject(ctx, "Board")
	drawRect(s, 5, 5, 25, 25)
	path := filepath.Join(t.TempDir(), "board.json")
	if err := s.SaveTo(ctx, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if s.State().HasUnsavedChanges {
		t.Fatalf("save should clear the unsaved flag")
	}
	if em.Count(EventProjectSaved) != 1 {
		t.Fatalf("saved event missing: %v", em.Names())
	}
	snaps, err := storage.ListSnapshots(ctx, &storage.ProjectHandle{Path: path, Project: *s.State().Project}, 0)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("expected one snapshot, got %d (%v)", len(snaps), err)
	}

	other, _ := newTestSession(t)
	if err := other.Open(ctx, path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	a, b := s.State(), other.State()
	if b.Project.ID != a.Project.ID || len(b.Pages) != 1 || b.Pages[0].Data != a.Pages[0].Data {
		t.Fatalf("round trip mismatch")
	}
	if len(other.Objects()) != 1 {
		t.Fatalf("opened page should be on the surface")
	}
}

func TestSaveReturnsIndentedJSON(t *testing.T) {
	s, _ := newTestSession(t)
	_, _ = s.NewProject(context.Background(), "Board")
	data, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !bytes.Contains(data, []byte("\n  \"name\": \"Board\"")) {
		t.Fatalf("expected indented JSON, got %s", data)
	}
	p, err := storage.Decode(data)
	if err != nil || p.Name != "Board" {
		t.Fatalf("saved JSON does not decode: %v", err)
	}
}

func TestLoadMalformedLeavesStateUntouched(t *testing.T) {
	s, _ := newTestSession(t)
	_, _ = s.NewProject(context.Background(), "Keep")
	before := s.State()
	for _, in := range []string{"{", "{\"id\":1}", ""} {
		if err := s.Load(context.Background(), strings.NewReader(in)); !errors.Is(err, domain.ErrMalformedProject) {
			t.Fatalf("Load(%q) = %v, want ErrMalformedProject", in, err)
		}
	}
	after := s.State()
	if after.Project.ID != before.Project.ID || after.Project.Name != "Keep" {
		t.Fatalf("state changed by failed load")
	}
}

type blockingReader struct{ release chan struct{} }

func (b blockingReader) Read([]byte) (int, error) {
	<-b.release
	return 0, io.ErrUnexpectedEOF
}

func TestConcurrentLoadFailsFast(t *testing.T) {
	s, _ := newTestSession(t)
	br := blockingReader{release: make(chan struct{})}
	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background(), br) }()
	deadline := time.Now().Add(2 * time.Second)
	for !s.loading.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("first load never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := s.Load(context.Background(), strings.NewReader("{}")); !errors.Is(err, domain.ErrLoadInProgress) {
		t.Fatalf("expected ErrLoadInProgress, got %v", err)
	}
	close(br.release)
	if err := <-done; !errors.Is(err, domain.ErrMalformedProject) {
		t.Fatalf("first load = %v", err)
	}
	if s.loading.Load() {
		t.Fatalf("load guard not released")
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestImportImageSelectsObject(t *testing.T) {
	ctx := context.Background()
	s, em := newTestSession(t)
	id, err := s.ImportImage(ctx, "photo.PNG", bytes.NewReader(pngBytes(t, 1000, 250)))
	if err != nil {
		t.Fatalf("ImportImage: %v", err)
	}
	if sel := s.Selection(); len(sel) != 1 || sel[0] != id {
		t.Fatalf("imported image should be selected, got %v", sel)
	}
	objs := s.Objects()
	if len(objs) != 1 || objs[0].Kind != drawing.KindImage || objs[0].Left != 100 || objs[0].Scale != 0.5 {
		t.Fatalf("unexpected image object %+v", objs)
	}
	if em.Count(EventImageImported) != 1 {
		t.Fatalf("import event missing")
	}
	if _, err := s.ImportImage(ctx, "notes.docx", strings.NewReader("x")); !errors.Is(err, domain.ErrImportNotSupportedYet) {
		t.Fatalf("docx: %v", err)
	}
	if _, err := s.ImportImage(ctx, "notes.txt", strings.NewReader("x")); !errors.Is(err, domain.ErrUnsupportedFileType) {
		t.Fatalf("txt: %v", err)
	}
	if len(s.Objects()) != 1 {
		t.Fatalf("rejected imports must not change the page")
	}
}

func TestExports(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	drawRect(s, 10, 10, 60, 60)

	png1, err := s.ExportPNG(ctx)
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	if png1.FileName != "whiteboard-export.png" {
		t.Fatalf("file name = %q", png1.FileName)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(png1.Data))
	if err != nil || cfg.Width != 200 || cfg.Height != 100 {
		t.Fatalf("png config = %+v, %v", cfg, err)
	}

	_, _ = s.NewProject(ctx, "Plan")
	svg, err := s.ExportSVG(ctx)
	if err != nil || svg.FileName != "Plan-export.svg" || !bytes.Contains(svg.Data, []byte("<svg")) {
		t.Fatalf("ExportSVG = %q, %v", svg.FileName, err)
	}
	pdf, err := s.ExportPDF(ctx)
	if err != nil || !bytes.HasPrefix(pdf.Data, []byte("%PDF")) {
		t.Fatalf("ExportPDF: %v", err)
	}
}

func TestSearchScansWorkingPagesAndIndex(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	_, _ = s.NewProject(ctx, "Notes")
	if _, err := s.AddText(20, 20, "Hello Whiteboard"); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	res, err := s.Search(ctx, "whiteboard")
	if err != nil || len(res) != 1 || res[0].Snippet != "Hello [Whiteboard]" {
		t.Fatalf("scan results = %+v, %v", res, err)
	}

	path := filepath.Join(t.TempDir(), "notes.json")
	if err := s.SaveTo(ctx, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if _, err := os.Stat(storage.IndexPath(path)); err != nil {
		t.Fatalf("index not written on save: %v", err)
	}
	res, err = s.Search(ctx, "whiteboard")
	if err != nil || len(res) != 1 || res[0].PageIndex != 0 {
		t.Fatalf("indexed results = %+v, %v", res, err)
	}
	if res, _ := s.Search(ctx, "  "); res != nil {
		t.Fatalf("blank search should return nothing")
	}
}

func TestThumbnailIsCachedForBoundProject(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	_, _ = s.NewProject(ctx, "Thumbs")
	drawRect(s, 10, 10, 90, 90)
	path := filepath.Join(t.TempDir(), "thumbs.json")
	if err := s.SaveTo(ctx, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	page := s.State().Pages[0]
	b, err := s.Thumbnail(ctx, page.ID, 40, 40)
	if err != nil || len(b) == 0 {
		t.Fatalf("Thumbnail: %v", err)
	}
	cached, err := storage.GetPreview(ctx, path, page.ID, storage.ContentHash(page.Data), 40, 40)
	if err != nil || !bytes.Equal(cached, b) {
		t.Fatalf("thumbnail not cached: %v", err)
	}
	if _, err := s.Thumbnail(ctx, "page-missing", 40, 40); !errors.Is(err, domain.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}

func TestWatchReloadsExternalChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, em := newTestSession(t)
	_, _ = s.NewProject(ctx, "Shared")
	path := filepath.Join(t.TempDir(), "shared.json")
	if err := s.SaveTo(ctx, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ph, err := storage.Open(path)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	ph.Project.Name = "Shared (edited)"
	if err := storage.Save(ph); err != nil {
		t.Fatalf("external save: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for em.Count(EventProjectReloaded) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("external change was not reloaded: %v", em.Names())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.State().Project.Name; got != "Shared (edited)" {
		t.Fatalf("project name = %q", got)
	}
}

func TestWatchRequiresBoundProject(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.Watch(context.Background()); !errors.Is(err, domain.ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
}

func TestCrashSourceExposesWorkingCopy(t *testing.T) {
	s, _ := newTestSession(t)
	if _, ok := s.CrashProject(); ok {
		t.Fatalf("no project yet")
	}
	_, _ = s.NewProject(context.Background(), "Crashy")
	drawRect(s, 1, 1, 20, 20)
	p, ok := s.CrashProject()
	if !ok || p.Name != "Crashy" || !strings.Contains(p.Pages[0].Data, "rect") {
		t.Fatalf("crash project = %+v", p)
	}
	if s.ProjectPath() != "" {
		t.Fatalf("unsaved project should have no path")
	}
}

func TestRestoreSnapshot(t *testing.T) {
	ctx := context.Background()
	s, em := newTestSession(t)
	if err := s.RestoreSnapshot(ctx, 1); err == nil {
		t.Fatalf("restore without a bound file must fail")
	}
	_, _ = s.NewProject(ctx, "Board")
	path := filepath.Join(t.TempDir(), "board.json")
	if err := s.SaveTo(ctx, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	drawRect(s, 5, 5, 25, 25)
	if _, err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snaps, err := s.Snapshots(ctx, 0)
	if err != nil || len(snaps) != 2 {
		t.Fatalf("expected two snapshots, got %d (%v)", len(snaps), err)
	}
	loaded := em.Count(EventProjectLoaded)
	if err := s.RestoreSnapshot(ctx, snaps[1].ID); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}
	if len(s.Objects()) != 0 {
		t.Fatalf("older snapshot has no objects, got %d", len(s.Objects()))
	}
	if !s.State().HasUnsavedChanges || s.ProjectPath() == "" {
		t.Fatalf("restore should keep the binding and mark the session unsaved")
	}
	if em.Count(EventProjectLoaded) != loaded+1 {
		t.Fatalf("restore should emit a load event")
	}
	if err := s.RestoreSnapshot(ctx, 424242); !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}
