/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package drawing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"gowhiteboard/internal/textlayout"
	"gowhiteboard/internal/vector"
)

// Version is the current document schema version.
const Version = 1

// DefaultBackground is the canvas colour of a new page.
const DefaultBackground = "#ffffff"

// Kind names a drawable object type.
type Kind string

const (
	KindPath   Kind = "path"
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
	KindLine   Kind = "line"
	KindArrow  Kind = "arrow"
	KindText   Kind = "text"
	KindImage  Kind = "image"
)

// Point is a serialized path vertex.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Style holds paint attributes shared by every kind.
type Style struct {
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
}

// Alpha returns the effective opacity; zero means unset and reads as opaque.
func (s Style) Alpha() float64 {
	if s.Opacity <= 0 || s.Opacity > 1 {
		return 1
	}
	return s.Opacity
}

// Object is one drawable. Only the fields relevant to Kind are populated:
//
//	path         Points
//	rect         Left, Top, Width, Height
//	circle       CX, CY, Radius
//	line, arrow  X1, Y1, X2, Y2
//	text         Left, Top, Width, Text, FontSize
//	image        Left, Top, Width, Height (natural size), Scale, Src (data URL)
type Object struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	Z        int     `json:"z"`
	Left     float64 `json:"left,omitempty"`
	Top      float64 `json:"top,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	CX       float64 `json:"cx,omitempty"`
	CY       float64 `json:"cy,omitempty"`
	Radius   float64 `json:"radius,omitempty"`
	X1       float64 `json:"x1,omitempty"`
	Y1       float64 `json:"y1,omitempty"`
	X2       float64 `json:"x2,omitempty"`
	Y2       float64 `json:"y2,omitempty"`
	Points   []Point `json:"points,omitempty"`
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Src      string  `json:"src,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
	Style    Style   `json:"style"`
}

// Document is the content of one page.
type Document struct {
	Version    int      `json:"version"`
	Background string   `json:"background,omitempty"`
	Objects    []Object `json:"objects"`
}

// NewObjectID returns a fresh object identifier.
func NewObjectID() string { return "obj-" + uuid.NewString() }

// New returns an empty document with the given background ("" for the default).
func New(background string) *Document {
	if background == "" {
		background = DefaultBackground
	}
	return &Document{Version: Version, Background: background, Objects: []Object{}}
}

// EmptyData is the serialized form of a blank page.
func EmptyData() string {
	s, _ := Encode(New(""))
	return s
}

var ErrInvalidDocument = errors.New("invalid drawing document")

// Decode parses page data. An empty string decodes to a blank document so
// pages created by older files still open.
func Decode(data string) (*Document, error) {
	if strings.TrimSpace(data) == "" {
		return New(""), nil
	}
	if err := Validate([]byte(data)); err != nil {
		return nil, err
	}
	var d Document
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if d.Background == "" {
		d.Background = DefaultBackground
	}
	if d.Objects == nil {
		d.Objects = []Object{}
	}
	sort.SliceStable(d.Objects, func(i, j int) bool { return d.Objects[i].Z < d.Objects[j].Z })
	return &d, nil
}

// Encode serializes d, renumbering z to slice order.
func Encode(d *Document) (string, error) {
	if d == nil {
		d = New("")
	}
	out := *d
	out.Version = Version
	if out.Background == "" {
		out.Background = DefaultBackground
	}
	out.Objects = make([]Object, len(d.Objects))
	for i, o := range d.Objects {
		o.Z = i
		out.Objects[i] = o
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	cp := *d
	cp.Objects = make([]Object, len(d.Objects))
	for i, o := range d.Objects {
		cp.Objects[i] = o.Clone()
	}
	return &cp
}

// Index returns the position of the object with id, or -1.
func (d *Document) Index(id string) int {
	for i := range d.Objects {
		if d.Objects[i].ID == id {
			return i
		}
	}
	return -1
}

// Texts returns the contents of all text objects in paint order.
func (d *Document) Texts() []string {
	var out []string
	for _, o := range d.Objects {
		if o.Kind == KindText && strings.TrimSpace(o.Text) != "" {
			out = append(out, o.Text)
		}
	}
	return out
}

// Clone returns a deep copy of o.
func (o Object) Clone() Object {
	if o.Points != nil {
		pts := make([]Point, len(o.Points))
		copy(pts, o.Points)
		o.Points = pts
	}
	return o
}

// Move translates the object by dx, dy.
func (o *Object) Move(dx, dy float64) {
	switch o.Kind {
	case KindPath:
		for i := range o.Points {
			o.Points[i].X += dx
			o.Points[i].Y += dy
		}
	case KindCircle:
		o.CX += dx
		o.CY += dy
	case KindLine, KindArrow:
		o.X1 += dx
		o.Y1 += dy
		o.X2 += dx
		o.Y2 += dy
	default:
		o.Left += dx
		o.Top += dy
	}
}

// TextLayout wraps a text object's content at its box width.
func (o Object) TextLayout() textlayout.TextBox {
	return textlayout.Wrap(textlayout.Default(), textlayout.FontSpec{Size: o.FontSize}, o.Text, o.Width)
}

// TextHeight is the height of the wrapped text block.
func (o Object) TextHeight() float64 {
	return math.Ceil(o.TextLayout().Height)
}

// Bounds returns the object's bounding box, ignoring stroke width.
func (o Object) Bounds() vector.Rect {
	switch o.Kind {
	case KindPath:
		pts := make([]vector.Pt, len(o.Points))
		for i, p := range o.Points {
			pts[i] = vector.Pt{X: p.X, Y: p.Y}
		}
		return vector.BoundsOf(pts)
	case KindCircle:
		return vector.R(o.CX-o.Radius, o.CY-o.Radius, 2*o.Radius, 2*o.Radius)
	case KindLine, KindArrow:
		return vector.RectFromPoints(vector.Pt{X: o.X1, Y: o.Y1}, vector.Pt{X: o.X2, Y: o.Y2})
	case KindText:
		return vector.R(o.Left, o.Top, o.Width, o.TextHeight())
	case KindImage:
		s := o.Scale
		if s <= 0 {
			s = 1
		}
		return vector.R(o.Left, o.Top, o.Width*s, o.Height*s)
	default:
		return vector.R(o.Left, o.Top, o.Width, o.Height)
	}
}

// Node builds a hit-testable geometry node for o.
func (o Object) Node() vector.Node {
	st := vector.Stroke{Enabled: o.Style.StrokeWidth > 0, Width: o.Style.StrokeWidth, Color: vector.MustColor(o.Style.Stroke), Cap: vector.CapRound}
	fill := vector.Fill{}
	if c, err := vector.ParseColor(o.Style.Fill); err == nil && c.A > 0 {
		fill = vector.Fill{Enabled: true, Color: c}
	}
	switch o.Kind {
	case KindPath:
		pts := make([]vector.Pt, len(o.Points))
		for i, p := range o.Points {
			pts[i] = vector.Pt{X: p.X, Y: p.Y}
		}
		return vector.NewPolyline(pts, st)
	case KindCircle:
		return vector.NewEllipse(o.Bounds(), fill, st)
	case KindLine, KindArrow:
		return vector.NewLine(vector.Pt{X: o.X1, Y: o.Y1}, vector.Pt{X: o.X2, Y: o.Y2}, st)
	case KindText, KindImage:
		return vector.NewRect(o.Bounds(), vector.Fill{Enabled: true}, vector.Stroke{})
	default:
		return vector.NewRect(o.Bounds(), fill, st)
	}
}
