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

	"github.com/jung-kurt/gofpdf"
	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/render"
	"gowhiteboard/internal/vector"
)

// PDFOptions controls PDF export behavior.
// Units are points; one canvas unit maps to one point, so a page is Width x Height pt.
// Text uses the built-in Helvetica so nothing is embedded.
type PDFOptions struct {
	Width  float64
	Height float64
	Author string
	Pages  []int // zero-based; if empty, export all pages
}

// WritePDF writes every selected page of proj as one page of a PDF document.
func WritePDF(w io.Writer, proj domain.Project, opt PDFOptions) error {
	if len(proj.Pages) == 0 {
		return fmt.Errorf("project has no pages")
	}
	if opt.Width <= 0 || opt.Height <= 0 {
		def := PageOptions{}.withDefaults()
		opt.Width, opt.Height = float64(def.Width), float64(def.Height)
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: opt.Width, Ht: opt.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(exportTitle(proj.Name), true)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	pdf.SetCreator("gowhiteboard", false)
	pw := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	for _, idx := range pageIndexes(len(proj.Pages), opt.Pages) {
		if idx < 0 || idx >= len(proj.Pages) {
			continue
		}
		pg := proj.Pages[idx]
		doc, err := drawing.Decode(pg.Data)
		if err != nil {
			return fmt.Errorf("page %s: %w", pg.ID, err)
		}
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: opt.Width, Ht: opt.Height})
		bg := vector.MustColor(doc.Background)
		pw.fill(bg)
		pdf.Rect(0, 0, opt.Width, opt.Height, "F")
		for i, o := range doc.Objects {
			pw.object(fmt.Sprintf("p%d-o%d", idx, i), o)
		}
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("pdf page %d: %w", idx+1, err)
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportProjectPDF writes the project PDF to outPath.
func ExportProjectPDF(proj domain.Project, outPath string, opt PDFOptions) error {
	var buf bytes.Buffer
	if err := WritePDF(&buf, proj, opt); err != nil {
		return err
	}
	return writeOut(outPath, buf.Bytes())
}

func exportTitle(name string) string {
	if name == "" {
		return DefaultName
	}
	return name
}

type pdfWriter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (w *pdfWriter) object(name string, o drawing.Object) {
	pdf := w.pdf
	pdf.SetAlpha(o.Style.Alpha(), "Normal")
	defer pdf.SetAlpha(1, "Normal")

	stroke := vector.MustColor(o.Style.Stroke)
	fill := vector.MustColor(o.Style.Fill)
	drawStroke := stroke.A > 0 && o.Style.StrokeWidth > 0
	if drawStroke {
		w.draw(stroke)
		pdf.SetLineWidth(o.Style.StrokeWidth)
	}
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")
	style := ""
	if fill.A > 0 {
		w.fill(fill)
		style += "F"
	}
	if drawStroke {
		style += "D"
	}

	switch o.Kind {
	case drawing.KindPath:
		if !drawStroke || len(o.Points) == 0 {
			return
		}
		if len(o.Points) == 1 {
			// a single click leaves a dot
			p := o.Points[0]
			w.fill(stroke)
			pdf.Circle(p.X, p.Y, o.Style.StrokeWidth/2, "F")
			return
		}
		pdf.MoveTo(o.Points[0].X, o.Points[0].Y)
		for _, p := range o.Points[1:] {
			pdf.LineTo(p.X, p.Y)
		}
		pdf.DrawPath("D")
	case drawing.KindRect:
		if style != "" {
			b := o.Bounds()
			pdf.Rect(b.X, b.Y, b.W, b.H, style)
		}
	case drawing.KindCircle:
		if style != "" {
			pdf.Circle(o.CX, o.CY, o.Radius, style)
		}
	case drawing.KindLine, drawing.KindArrow:
		if !drawStroke {
			return
		}
		a, b := vector.Pt{X: o.X1, Y: o.Y1}, vector.Pt{X: o.X2, Y: o.Y2}
		pdf.Line(a.X, a.Y, b.X, b.Y)
		if o.Kind == drawing.KindArrow && vector.Dist(a, b) > 0 {
			l, r := vector.ArrowHead(a, b, render.ArrowHeadSize(o.Style.StrokeWidth))
			pdf.MoveTo(l.X, l.Y)
			pdf.LineTo(b.X, b.Y)
			pdf.LineTo(r.X, r.Y)
			pdf.DrawPath("D")
		}
	case drawing.KindText:
		w.text(o, fill)
	case drawing.KindImage:
		w.image(name, o)
	}
}

func (w *pdfWriter) text(o drawing.Object, c vector.Color) {
	if c.A == 0 || o.FontSize <= 0 {
		return
	}
	box := o.TextLayout()
	w.pdf.SetFont("Helvetica", "", o.FontSize)
	w.pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	for i, line := range box.Lines {
		y := o.Top + float64(i)*box.LineHeight + box.Metrics.Ascent
		w.pdf.Text(o.Left, y, w.tr(line.Text))
	}
}

// image re-encodes the source as PNG since gofpdf reads only PNG, JPEG and GIF.
func (w *pdfWriter) image(name string, o drawing.Object) {
	b := o.Bounds()
	img, _, err := render.DecodeDataURL(o.Src)
	if err != nil {
		w.draw(vector.Color{R: 0x9c, G: 0xa3, B: 0xaf, A: 255})
		w.pdf.SetLineWidth(1)
		w.pdf.Rect(b.X, b.Y, b.W, b.H, "D")
		return
	}
	data, err := render.EncodePNG(img)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	w.pdf.ImageOptions(name, b.X, b.Y, b.W, b.H, false, opts, 0, "")
}

func (w *pdfWriter) draw(c vector.Color) { w.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B)) }
func (w *pdfWriter) fill(c vector.Color) { w.pdf.SetFillColor(int(c.R), int(c.G), int(c.B)) }

func pageIndexes(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return specific
}
