/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"image/color"
	"testing"

	"gowhiteboard/internal/drawing"
)

func rgbaAt(img *image.RGBA, x, y int) color.RGBA { return img.RGBAAt(x, y) }

func TestRenderBackgroundAndScale(t *testing.T) {
	doc := drawing.New("#ff0000")
	img := Render(doc, 100, 50, 0.2)
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Fatalf("unexpected size %v", b)
	}
	if c := rgbaAt(img, 5, 5); c != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("background pixel = %v", c)
	}
	if nilImg := Render(nil, 10, 10, 1); rgbaAt(nilImg, 1, 1) != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("nil document should render white")
	}
}

func TestRenderRectStrokeAndFill(t *testing.T) {
	doc := drawing.New("")
	doc.Objects = []drawing.Object{{
		ID: "r", Kind: drawing.KindRect, Left: 10, Top: 10, Width: 40, Height: 70,
		Style: drawing.Style{Stroke: "#000000", StrokeWidth: 4, Fill: "transparent"},
	}}
	img := Render(doc, 100, 100, 1)
	if c := rgbaAt(img, 10, 40); c.R > 10 {
		t.Fatalf("left edge should be black, got %v", c)
	}
	if c := rgbaAt(img, 30, 40); c != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("transparent fill should leave interior white, got %v", c)
	}

	doc.Objects[0].Style.Fill = "#00ff00"
	img = Render(doc, 100, 100, 1)
	if c := rgbaAt(img, 30, 40); c.G != 255 || c.R != 0 {
		t.Fatalf("fill should be green, got %v", c)
	}
}

func TestRenderHighlighterIsTranslucent(t *testing.T) {
	doc := drawing.New("")
	doc.Objects = []drawing.Object{{
		ID: "p", Kind: drawing.KindPath, Points: []drawing.Point{{X: 10, Y: 50}, {X: 90, Y: 50}},
		Style: drawing.Style{Stroke: "#0000ff80", StrokeWidth: 12},
	}}
	img := Render(doc, 100, 100, 1)
	c := rgbaAt(img, 50, 50)
	if c.B != 255 || c.R < 100 || c.R > 160 {
		t.Fatalf("expected half-blended blue over white, got %v", c)
	}
}

func TestRenderTextAndArrowPaintPixels(t *testing.T) {
	doc := drawing.New("")
	doc.Objects = []drawing.Object{
		{ID: "t", Kind: drawing.KindText, Left: 0, Top: 0, Width: 200, FontSize: 20, Text: "Hello", Style: drawing.Style{Fill: "#000000"}},
		{ID: "a", Kind: drawing.KindArrow, X1: 20, Y1: 150, X2: 180, Y2: 150, Style: drawing.Style{Stroke: "#ef4444", StrokeWidth: 2}},
	}
	img := Render(doc, 200, 200, 1)
	if countDark(img, image.Rect(0, 0, 100, 30)) == 0 {
		t.Fatalf("text produced no pixels")
	}
	// barbs extend above the shaft near the tip
	if c := rgbaAt(img, 100, 150); c.G > 120 {
		t.Fatalf("arrow shaft missing, got %v", c)
	}
	if countDark(img, image.Rect(165, 140, 180, 148)) == 0 {
		t.Fatalf("arrow head missing")
	}
}

func TestRenderImageObject(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 0
		if i%4 == 3 {
			src.Pix[i] = 255
		}
	}
	url, err := PNGDataURL(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc := drawing.New("")
	doc.Objects = []drawing.Object{{ID: "i", Kind: drawing.KindImage, Left: 10, Top: 10, Width: 4, Height: 4, Scale: 5, Src: url}}
	img := Render(doc, 50, 50, 1)
	if c := rgbaAt(img, 20, 20); c.R > 10 {
		t.Fatalf("image should cover (20,20), got %v", c)
	}
	if c := rgbaAt(img, 40, 40); c.R != 255 {
		t.Fatalf("outside the image should stay white, got %v", c)
	}
}

func TestFitKeepsAspect(t *testing.T) {
	img := Fit(image.NewRGBA(image.Rect(0, 0, 1000, 500)), 100, 100)
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("unexpected fit size %v", b)
	}
}

func countDark(img *image.RGBA, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.R < 200 || c.G < 200 || c.B < 200 {
				n++
			}
		}
	}
	return n
}
