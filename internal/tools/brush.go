/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tools

import (
	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/surface"
	"gowhiteboard/internal/vector"
)

// HighlighterAlpha is the fixed alpha of highlighter strokes (hex 80).
const HighlighterAlpha = 0x80

// BrushFor returns the freehand brush for a brush tool. The second result is
// false for tools that do not draw freehand.
func BrushFor(tool domain.ToolType, opts domain.DrawingOptions, background string) (surface.Brush, bool) {
	w := float64(opts.StrokeWidth)
	switch tool {
	case domain.ToolPen:
		return surface.Brush{Color: strokeColor(opts), Width: w}, true
	case domain.ToolHighlighter:
		c := vector.MustColor(opts.Color)
		c.A = HighlighterAlpha
		return surface.Brush{Color: c.WithOpacity(opacity(opts)).Hex(), Width: 3 * w}, true
	case domain.ToolEraser:
		// paints over with the canvas colour; objects underneath stay
		return surface.Brush{Color: background, Width: 2 * w}, true
	}
	return surface.Brush{}, false
}

func opacity(opts domain.DrawingOptions) float64 {
	if opts.Opacity <= 0 || opts.Opacity > 1 {
		return 1
	}
	return opts.Opacity
}

func strokeColor(opts domain.DrawingOptions) string {
	if opacity(opts) == 1 {
		return opts.Color
	}
	return vector.MustColor(opts.Color).WithOpacity(opacity(opts)).Hex()
}
