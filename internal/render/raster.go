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
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"

	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/textlayout"
	"gowhiteboard/internal/vector"
)

// Render rasterizes doc onto a width x height canvas scaled by scale.
func Render(doc *drawing.Document, width, height int, scale float64) *image.RGBA {
	if scale <= 0 {
		scale = 1
	}
	w := max(1, int(math.Round(float64(width)*scale)))
	h := max(1, int(math.Round(float64(height)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := vector.White
	if doc != nil {
		bg = vector.MustColor(doc.Background)
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	if doc == nil {
		return dst
	}
	r := &rasterizer{dst: dst, scale: scale}
	for _, o := range doc.Objects {
		r.object(o)
	}
	return r.dst
}

// Highlight draws a selection outline around each rect.
func Highlight(dst *image.RGBA, rects []vector.Rect, scale float64) {
	r := &rasterizer{dst: dst, scale: scale}
	sel := vector.Color{R: 0x3b, G: 0x82, B: 0xf6, A: 255}
	for _, b := range rects {
		b = b.Inset(-3, -3)
		r.strokePolyline(corners(b), true, 1/scale, sel)
	}
}

type rasterizer struct {
	dst   *image.RGBA
	scale float64
}

func (r *rasterizer) object(o drawing.Object) {
	alpha := o.Style.Alpha()
	stroke := vector.MustColor(o.Style.Stroke).WithOpacity(alpha)
	fill := vector.MustColor(o.Style.Fill).WithOpacity(alpha)
	width := o.Style.StrokeWidth
	switch o.Kind {
	case drawing.KindPath:
		pts := make([]vector.Pt, len(o.Points))
		for i, p := range o.Points {
			pts[i] = vector.Pt{X: p.X, Y: p.Y}
		}
		r.strokePolyline(pts, false, width, stroke)
	case drawing.KindRect:
		pts := corners(o.Bounds())
		r.fillPolygon(pts, fill)
		r.strokePolyline(pts, true, width, stroke)
	case drawing.KindCircle:
		p := vector.EllipsePath(o.Bounds())
		for _, pl := range p.Flatten(2 / r.scale) {
			r.fillPolygon(pl.Pts, fill)
			r.strokePolyline(pl.Pts, true, width, stroke)
		}
	case drawing.KindLine:
		r.strokePolyline([]vector.Pt{{X: o.X1, Y: o.Y1}, {X: o.X2, Y: o.Y2}}, false, width, stroke)
	case drawing.KindArrow:
		a, b := vector.Pt{X: o.X1, Y: o.Y1}, vector.Pt{X: o.X2, Y: o.Y2}
		r.strokePolyline([]vector.Pt{a, b}, false, width, stroke)
		if vector.Dist(a, b) > 0 {
			l, rr := vector.ArrowHead(a, b, ArrowHeadSize(width))
			r.strokePolyline([]vector.Pt{l, b, rr}, false, width, stroke)
		}
	case drawing.KindText:
		r.text(o, fill)
	case drawing.KindImage:
		r.image(o)
	}
}

// ArrowHeadSize returns the barb length for a given stroke width.
func ArrowHeadSize(strokeWidth float64) float64 { return math.Max(10, 4*strokeWidth) }

func corners(b vector.Rect) []vector.Pt {
	return []vector.Pt{{X: b.X, Y: b.Y}, {X: b.X + b.W, Y: b.Y}, {X: b.X + b.W, Y: b.Y + b.H}, {X: b.X, Y: b.Y + b.H}}
}

func (r *rasterizer) newRasterizer() *xvector.Rasterizer {
	b := r.dst.Bounds()
	z := xvector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	return z
}

func (r *rasterizer) pt(p vector.Pt) (float32, float32) {
	return float32(p.X * r.scale), float32(p.Y * r.scale)
}

func (r *rasterizer) fillPolygon(pts []vector.Pt, c vector.Color) {
	if c.A == 0 || len(pts) < 3 {
		return
	}
	z := r.newRasterizer()
	z.MoveTo(r.pt(pts[0]))
	for _, p := range pts[1:] {
		z.LineTo(r.pt(p))
	}
	z.ClosePath()
	z.Draw(r.dst, r.dst.Bounds(), image.NewUniform(c), image.Point{})
}

// strokePolyline outlines pts with round joins and caps. Every piece is wound
// the same way so overlapping coverage clamps instead of cancelling.
func (r *rasterizer) strokePolyline(pts []vector.Pt, closed bool, width float64, c vector.Color) {
	if c.A == 0 || width <= 0 || len(pts) == 0 {
		return
	}
	if closed && len(pts) > 1 {
		pts = append(pts[:len(pts):len(pts)], pts[0])
	}
	hw := width / 2
	z := r.newRasterizer()
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		l := vector.Dist(a, b)
		if l == 0 {
			continue
		}
		nx, ny := -(b.Y-a.Y)/l*hw, (b.X-a.X)/l*hw
		z.MoveTo(r.pt(vector.Pt{X: a.X + nx, Y: a.Y + ny}))
		z.LineTo(r.pt(vector.Pt{X: b.X + nx, Y: b.Y + ny}))
		z.LineTo(r.pt(vector.Pt{X: b.X - nx, Y: b.Y - ny}))
		z.LineTo(r.pt(vector.Pt{X: a.X - nx, Y: a.Y - ny}))
		z.ClosePath()
	}
	for _, p := range pts {
		r.disc(z, p, hw)
	}
	z.Draw(r.dst, r.dst.Bounds(), image.NewUniform(c), image.Point{})
}

func (r *rasterizer) disc(z *xvector.Rasterizer, c vector.Pt, radius float64) {
	n := int(math.Ceil(radius * r.scale))
	n = min(64, max(8, n*2))
	// clockwise in screen space to match the segment quads
	for i := 0; i <= n; i++ {
		a := -2 * math.Pi * float64(i) / float64(n)
		p := vector.Pt{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)}
		if i == 0 {
			z.MoveTo(r.pt(p))
		} else {
			z.LineTo(r.pt(p))
		}
	}
	z.ClosePath()
}

func (r *rasterizer) text(o drawing.Object, c vector.Color) {
	if c.A == 0 || o.FontSize <= 0 {
		return
	}
	box := o.TextLayout()
	face, met := textlayout.Default().Resolve(textlayout.FontSpec{Size: o.FontSize * r.scale})
	d := &font.Drawer{Dst: r.dst, Src: image.NewUniform(c), Face: face}
	for i, line := range box.Lines {
		x := o.Left * r.scale
		y := (o.Top+float64(i)*box.LineHeight)*r.scale + met.Ascent
		d.Dot = fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
		d.DrawString(line.Text)
	}
}

func (r *rasterizer) image(o drawing.Object) {
	img, ok := decodeCached(o.Src)
	if !ok {
		// placeholder so a broken image is still visible
		b := o.Bounds()
		r.strokePolyline(corners(b), true, 1, vector.Color{R: 0x9c, G: 0xa3, B: 0xaf, A: 255})
		return
	}
	b := o.Bounds()
	rect := image.Rect(
		int(math.Round(b.X*r.scale)), int(math.Round(b.Y*r.scale)),
		int(math.Round((b.X+b.W)*r.scale)), int(math.Round((b.Y+b.H)*r.scale)),
	)
	var opts *xdraw.Options
	if a := o.Style.Alpha(); a < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(a*255 + 0.5)})}
	}
	xdraw.CatmullRom.Scale(r.dst, rect, img, img.Bounds(), draw.Over, opts)
}

// Fit scales img down to fit within maxW x maxH keeping its aspect ratio.
func Fit(img image.Image, maxW, maxH int) *image.RGBA {
	b := img.Bounds()
	s := math.Min(1, math.Min(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy())))
	w := max(1, int(float64(b.Dx())*s))
	h := max(1, int(float64(b.Dy())*s))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
