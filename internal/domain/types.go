/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model of a whiteboard project.
// Projects serialize to the same JSON shape the browser client reads and writes,
// so timestamps stay in Unix milliseconds.

import (
	"fmt"
	"math"
	"strings"
)

// ToolType is one of the fixed interaction modes of the canvas.
type ToolType string

const (
	ToolSelect      ToolType = "select"
	ToolPen         ToolType = "pen"
	ToolHighlighter ToolType = "highlighter"
	ToolEraser      ToolType = "eraser"
	ToolText        ToolType = "text"
	ToolRectangle   ToolType = "rectangle"
	ToolCircle      ToolType = "circle"
	ToolLine        ToolType = "line"
	ToolArrow       ToolType = "arrow"
)

var allTools = []ToolType{
	ToolSelect, ToolPen, ToolHighlighter, ToolEraser, ToolText,
	ToolRectangle, ToolCircle, ToolLine, ToolArrow,
}

// Tools lists every tool in toolbar order.
func Tools() []ToolType {
	out := make([]ToolType, len(allTools))
	copy(out, allTools)
	return out
}

// ParseTool validates enum membership.
func ParseTool(s string) (ToolType, error) {
	t := ToolType(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range allTools {
		if k == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// IsShape reports whether the tool draws a shape by dragging.
func (t ToolType) IsShape() bool {
	switch t {
	case ToolRectangle, ToolCircle, ToolLine, ToolArrow:
		return true
	}
	return false
}

// IsBrush reports whether the tool uses freehand drawing mode.
func (t ToolType) IsBrush() bool {
	return t == ToolPen || t == ToolHighlighter || t == ToolEraser
}

// DrawingOptions is the style applied by brush and shape tools.
// StrokeWidth is expected in [MinStrokeWidth, MaxStrokeWidth]; callers clamp.
type DrawingOptions struct {
	Color       string  `json:"color"`
	StrokeWidth int     `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

// DrawingOptionsPatch carries a partial update; nil fields are left unchanged.
type DrawingOptionsPatch struct {
	Color       *string  `json:"color,omitempty"`
	StrokeWidth *int     `json:"strokeWidth,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
}

// DefaultDrawingOptions returns black, 2px, fully opaque.
func DefaultDrawingOptions() DrawingOptions {
	return DrawingOptions{Color: "#000000", StrokeWidth: 2, Opacity: 1}
}

// Merge applies the non-nil fields of p.
func (o DrawingOptions) Merge(p DrawingOptionsPatch) DrawingOptions {
	if p.Color != nil {
		o.Color = *p.Color
	}
	if p.StrokeWidth != nil {
		o.StrokeWidth = *p.StrokeWidth
	}
	if p.Opacity != nil {
		o.Opacity = *p.Opacity
	}
	return o
}

// Page is one canvas worth of content. Data is the serialized drawing document and is
// never interpreted by the store.
type Page struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Data      string `json:"data"`
	Thumbnail string `json:"thumbnail,omitempty"` // PNG data URL
	CreatedAt int64  `json:"createdAt"`           // unix millis
	UpdatedAt int64  `json:"updatedAt"`
}

// Project is the unit that is saved and loaded. Page order is display order.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Pages     []Page `json:"pages"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Clone returns a copy that shares no slices with p.
func (p Project) Clone() Project {
	p.Pages = ClonePages(p.Pages)
	return p
}

// ClonePages copies a page list. Page fields are values, so a shallow copy suffices.
func ClonePages(pages []Page) []Page {
	if pages == nil {
		return nil
	}
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}

// FindPage returns the index of the page with id or -1.
func FindPage(pages []Page, id string) int {
	for i := range pages {
		if pages[i].ID == id {
			return i
		}
	}
	return -1
}

// Caller-side limits.
const (
	MinStrokeWidth = 1
	MaxStrokeWidth = 20
	MinZoom        = 0.1
	MaxZoom        = 3.0
	ZoomStep       = 0.1
)

// ClampStrokeWidth limits w to [MinStrokeWidth, MaxStrokeWidth].
func ClampStrokeWidth(w int) int {
	if w < MinStrokeWidth {
		return MinStrokeWidth
	}
	if w > MaxStrokeWidth {
		return MaxStrokeWidth
	}
	return w
}

// ClampZoom limits z to [MinZoom, MaxZoom] and rounds to two decimals so repeated
// steps do not accumulate float drift.
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	z = math.Round(z*100) / 100
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// ValidateProjectName trims name and rejects blank names.
func ValidateProjectName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", ErrEmptyProjectName
	}
	return n, nil
}

// PaletteColor is a named swatch offered by the colour picker.
type PaletteColor struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var palette = []PaletteColor{
	{"Black", "#000000"},
	{"White", "#FFFFFF"},
	{"Red", "#EF4444"},
	{"Orange", "#F59E0B"},
	{"Yellow", "#FCD34D"},
	{"Green", "#10B981"},
	{"Blue", "#3B82F6"},
	{"Indigo", "#6366F1"},
	{"Purple", "#8B5CF6"},
	{"Pink", "#EC4899"},
	{"Cyan", "#06B6D4"},
	{"Teal", "#14B8A6"},
}

// Palette returns the preset colours.
func Palette() []PaletteColor {
	out := make([]PaletteColor, len(palette))
	copy(out, palette)
	return out
}
