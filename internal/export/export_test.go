/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/render"
)

func samplePage(t *testing.T, id string) domain.Page {
	t.Helper()
	doc := drawing.New("")
	doc.Objects = []drawing.Object{
		{ID: "p", Kind: drawing.KindPath, Points: []drawing.Point{{X: 10, Y: 10}, {X: 60, Y: 40}}, Style: drawing.Style{Stroke: "#000000", StrokeWidth: 4}},
		{ID: "r", Kind: drawing.KindRect, Left: 20, Top: 20, Width: 80, Height: 40, Style: drawing.Style{Stroke: "#ff0000", StrokeWidth: 2, Fill: "transparent"}},
		{ID: "c", Kind: drawing.KindCircle, CX: 200, CY: 100, Radius: 30, Style: drawing.Style{Stroke: "#00ff00", StrokeWidth: 2, Fill: "#00ff0080"}},
		{ID: "a", Kind: drawing.KindArrow, X1: 10, Y1: 200, X2: 120, Y2: 200, Style: drawing.Style{Stroke: "#0000ff", StrokeWidth: 2}},
		{ID: "t", Kind: drawing.KindText, Left: 300, Top: 300, Width: 200, Text: "Fish & <chips>", FontSize: 20, Style: drawing.Style{Fill: "#000000"}},
	}
	img := render.Render(drawing.New(""), 8, 4, 1)
	b, err := render.EncodePNG(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc.Objects = append(doc.Objects, drawing.Object{ID: "i", Kind: drawing.KindImage, Left: 100, Top: 100, Width: 8, Height: 4, Scale: 1, Src: render.DataURL("image/png", b)})
	data, err := drawing.Encode(doc)
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}
	return domain.Page{ID: id, Name: id, Data: data}
}

func TestFileName(t *testing.T) {
	if got := FileName("", "png"); got != "whiteboard-export.png" {
		t.Fatalf("got %q", got)
	}
	if got := FileName("My Board", ".pdf"); got != "My Board-export.pdf" {
		t.Fatalf("got %q", got)
	}
	if got := FileName("a/b", "svg"); got != "a_b-export.svg" {
		t.Fatalf("got %q", got)
	}
}

func TestWritePNGUsesPageSizeAndScale(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, samplePage(t, "p1"), PageOptions{Width: 400, Height: 300, Scale: 0.5}); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Fatalf("unexpected size %v", b)
	}
}

func TestThumbnailFits(t *testing.T) {
	b, err := ThumbnailPNG(samplePage(t, "p1"), 128, 128)
	if err != nil {
		t.Fatalf("ThumbnailPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() > 128 || img.Bounds().Dy() > 128 {
		t.Fatalf("thumbnail too large: %v", img.Bounds())
	}
}

func TestWritePDF(t *testing.T) {
	proj := domain.Project{Name: "PDF", Pages: []domain.Page{samplePage(t, "p1"), samplePage(t, "p2")}}
	var buf bytes.Buffer
	if err := WritePDF(&buf, proj, PDFOptions{}); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "%PDF-") {
		t.Fatalf("not a pdf")
	}
	if n := strings.Count(out, "/Type /Page\n"); n != 2 {
		t.Logf("page object count %d", n)
	}
	if err := WritePDF(&bytes.Buffer{}, domain.Project{}, PDFOptions{}); err == nil {
		t.Fatalf("expected error for a project without pages")
	}
}

func TestWriteSVGEscapesAndDrawsAll(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, samplePage(t, "p1"), PageOptions{}); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	s := buf.String()
	for _, want := range []string{"<polyline id=\"p\"", "<rect id=\"r\"", "<circle id=\"c\"", "<g id=\"a\"", "Fish &amp; &lt;chips&gt;", "<image id=\"i\"", "viewBox=\"0 0 1280 800\""} {
		if !strings.Contains(s, want) {
			t.Fatalf("svg missing %q", want)
		}
	}
}

func TestBatchExport(t *testing.T) {
	dir := t.TempDir()
	proj := domain.Project{Name: "Batch", Pages: []domain.Page{samplePage(t, "p1"), samplePage(t, "p2")}}
	files, err := BatchExport(proj, BatchOptions{Preset: PresetPrint, OutDir: dir, Width: 200, Height: 100})
	if err != nil {
		t.Fatalf("BatchExport: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected pdf + 2 png, got %v", files)
	}
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil || st.Size() == 0 {
			t.Fatalf("missing output %s: %v", f, err)
		}
	}
	if filepath.Base(files[0]) != "Batch-export.pdf" {
		t.Fatalf("unexpected pdf name %s", files[0])
	}
	if _, err := BatchExport(proj, BatchOptions{OutDir: dir, Formats: []string{"cbz"}}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
