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
	"fmt"
	"io"
	"strings"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/render"
	"gowhiteboard/internal/vector"
)

// WriteSVG writes one page as a standalone SVG document. The viewBox is the page in canvas
// units; Scale sets the width/height attributes.
func WriteSVG(w io.Writer, page domain.Page, opt PageOptions) error {
	opt = opt.withDefaults()
	doc, err := drawing.Decode(page.Data)
	if err != nil {
		return fmt.Errorf("page %s: %w", page.ID, err)
	}
	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	pxW := float64(opt.Width) * opt.Scale
	pxH := float64(opt.Height) * opt.Scale
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%gpx\" height=\"%gpx\" viewBox=\"0 0 %d %d\">\n", pxW, pxH, opt.Width, opt.Height)
	wf("  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" fill=\"%s\"/>\n", opt.Width, opt.Height, svgColor(vector.MustColor(doc.Background)))

	for _, o := range doc.Objects {
		paint := svgPaint(o.Style)
		switch o.Kind {
		case drawing.KindPath:
			if len(o.Points) == 0 {
				continue
			}
			pts := make([]string, len(o.Points))
			for i, p := range o.Points {
				pts[i] = fmt.Sprintf("%g,%g", p.X, p.Y)
			}
			wf("  <polyline id=\"%s\" points=\"%s\" fill=\"none\"%s/>\n", escAttr(o.ID), strings.Join(pts, " "), svgStroke(o.Style))
		case drawing.KindRect:
			b := o.Bounds()
			wf("  <rect id=\"%s\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\"%s/>\n", escAttr(o.ID), b.X, b.Y, b.W, b.H, paint)
		case drawing.KindCircle:
			wf("  <circle id=\"%s\" cx=\"%g\" cy=\"%g\" r=\"%g\"%s/>\n", escAttr(o.ID), o.CX, o.CY, o.Radius, paint)
		case drawing.KindLine:
			wf("  <line id=\"%s\" x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\"%s/>\n", escAttr(o.ID), o.X1, o.Y1, o.X2, o.Y2, svgStroke(o.Style))
		case drawing.KindArrow:
			a, b := vector.Pt{X: o.X1, Y: o.Y1}, vector.Pt{X: o.X2, Y: o.Y2}
			wf("  <g id=\"%s\" fill=\"none\"%s>\n", escAttr(o.ID), svgStroke(o.Style))
			wf("    <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\"/>\n", a.X, a.Y, b.X, b.Y)
			if vector.Dist(a, b) > 0 {
				l, r := vector.ArrowHead(a, b, render.ArrowHeadSize(o.Style.StrokeWidth))
				wf("    <polyline points=\"%g,%g %g,%g %g,%g\"/>\n", l.X, l.Y, b.X, b.Y, r.X, r.Y)
			}
			wf("  </g>\n")
		case drawing.KindText:
			box := o.TextLayout()
			wf("  <text id=\"%s\" x=\"%g\" y=\"%g\" font-family=\"Go, Helvetica, Arial, sans-serif\" font-size=\"%g\" fill=\"%s\"%s>",
				escAttr(o.ID), o.Left, o.Top+box.Metrics.Ascent, o.FontSize, svgColor(vector.MustColor(o.Style.Fill)), svgOpacity(o.Style))
			for i, line := range box.Lines {
				dy := 0.0
				if i > 0 {
					dy = box.LineHeight
				}
				wf("<tspan x=\"%g\" dy=\"%g\">%s</tspan>", o.Left, dy, escText(line.Text))
			}
			wf("</text>\n")
		case drawing.KindImage:
			b := o.Bounds()
			wf("  <image id=\"%s\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" preserveAspectRatio=\"none\" href=\"%s\"%s/>\n",
				escAttr(o.ID), b.X, b.Y, b.W, b.H, escAttr(o.Src), svgOpacity(o.Style))
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// ExportPageSVG writes one page as SVG to outPath.
func ExportPageSVG(page domain.Page, outPath string, opt PageOptions) error {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, page, opt); err != nil {
		return err
	}
	return writeOut(outPath, buf.Bytes())
}

func svgPaint(s drawing.Style) string {
	return fmt.Sprintf(" fill=\"%s\"%s", svgColor(vector.MustColor(s.Fill)), svgStroke(s))
}

func svgStroke(s drawing.Style) string {
	c := vector.MustColor(s.Stroke)
	if s.StrokeWidth <= 0 || c.A == 0 {
		return " stroke=\"none\"" + svgOpacity(s)
	}
	return fmt.Sprintf(" stroke=\"%s\" stroke-width=\"%g\" stroke-linecap=\"round\" stroke-linejoin=\"round\"%s", svgColor(c), s.StrokeWidth, svgOpacity(s))
}

func svgOpacity(s drawing.Style) string {
	if a := s.Alpha(); a < 1 {
		return fmt.Sprintf(" opacity=\"%g\"", a)
	}
	return ""
}

// svgColor writes #rrggbb, or #rrggbbaa for translucent colors; fully transparent is none.
func svgColor(c vector.Color) string {
	if c.A == 0 {
		return "none"
	}
	return c.Hex()
}

func escAttr(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
