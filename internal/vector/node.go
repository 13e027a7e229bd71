/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// Node is a scene item that can be hit-tested and measured.
// It supports basic transforms, styling, bounds, and hit-testing.
type Node interface {
	Bounds() Rect
	Transform() Affine2D
	SetTransform(Affine2D)
	Fill() Fill
	Stroke() Stroke
	SetFill(Fill)
	SetStroke(Stroke)
	Hit(p Pt) bool
}

// HitTolerance is the minimum pick distance for thin strokes.
const HitTolerance = 4.0

type baseNode struct {
	xf     Affine2D
	fill   Fill
	stroke Stroke
}

func (b *baseNode) Transform() Affine2D     { return b.xf }
func (b *baseNode) SetTransform(m Affine2D) { b.xf = m }
func (b *baseNode) Fill() Fill              { return b.fill }
func (b *baseNode) Stroke() Stroke          { return b.stroke }
func (b *baseNode) SetFill(f Fill)          { b.fill = f }
func (b *baseNode) SetStroke(s Stroke)      { b.stroke = s }

func (b *baseNode) pad() float64 {
	if !b.stroke.Enabled {
		return 0
	}
	return b.stroke.Width / 2
}

func (b *baseNode) reach() float64 { return math.Max(b.pad(), HitTolerance) }

// RectNode draws an axis-aligned rectangle before transform.
type RectNode struct {
	baseNode
	rect Rect
}

func NewRect(r Rect, f Fill, s Stroke) *RectNode {
	return &RectNode{baseNode: baseNode{xf: Identity, fill: f, stroke: s}, rect: r}
}

func (n *RectNode) Bounds() Rect { return n.xf.ApplyRect(n.rect) }

// Hit treats the whole box as solid, including unfilled rectangles, so a
// shape can be grabbed anywhere inside its outline.
func (n *RectNode) Hit(p Pt) bool {
	q := n.xf.Invert().Apply(p)
	pad := n.pad()
	return n.rect.Inset(-pad, -pad).Contains(q)
}

// EllipseNode represents an ellipse inside rect.
type EllipseNode struct {
	baseNode
	rect Rect
}

func NewEllipse(r Rect, f Fill, s Stroke) *EllipseNode {
	return &EllipseNode{baseNode: baseNode{xf: Identity, fill: f, stroke: s}, rect: r}
}

func (n *EllipseNode) Bounds() Rect { return n.xf.ApplyRect(n.rect) }

func (n *EllipseNode) Hit(p Pt) bool {
	q := n.xf.Invert().Apply(p)
	pad := n.pad()
	c := n.rect.Center()
	rx := n.rect.W/2 + pad
	ry := n.rect.H/2 + pad
	if rx <= 0 || ry <= 0 {
		return Dist(q, c) <= HitTolerance
	}
	dx := (q.X - c.X) / rx
	dy := (q.Y - c.Y) / ry
	return dx*dx+dy*dy <= 1
}

// LineNode is a single straight segment.
type LineNode struct {
	baseNode
	A, B Pt
}

func NewLine(a, b Pt, s Stroke) *LineNode {
	return &LineNode{baseNode: baseNode{xf: Identity, stroke: s}, A: a, B: b}
}

func (n *LineNode) Bounds() Rect {
	pad := n.pad()
	return n.xf.ApplyRect(RectFromPoints(n.A, n.B).Inset(-pad, -pad))
}

func (n *LineNode) Hit(p Pt) bool {
	q := n.xf.Invert().Apply(p)
	return DistToSegment(q, n.A, n.B) <= n.reach()
}

// PolylineNode is an open sequence of segments, such as a freehand stroke.
type PolylineNode struct {
	baseNode
	Pts []Pt
}

func NewPolyline(pts []Pt, s Stroke) *PolylineNode {
	cp := make([]Pt, len(pts))
	copy(cp, pts)
	return &PolylineNode{baseNode: baseNode{xf: Identity, stroke: s}, Pts: cp}
}

func (n *PolylineNode) Bounds() Rect {
	pad := n.pad()
	return n.xf.ApplyRect(BoundsOf(n.Pts).Inset(-pad, -pad))
}

func (n *PolylineNode) Hit(p Pt) bool {
	if len(n.Pts) == 0 {
		return false
	}
	q := n.xf.Invert().Apply(p)
	reach := n.reach()
	if len(n.Pts) == 1 {
		return Dist(q, n.Pts[0]) <= reach
	}
	for i := 1; i < len(n.Pts); i++ {
		if DistToSegment(q, n.Pts[i-1], n.Pts[i]) <= reach {
			return true
		}
	}
	return false
}

// PathNode references a path geometry and hit-tests its flattened outline.
type PathNode struct {
	baseNode
	path  Path
	lines []Polyline
	bbox  Rect
}

func NewPath(p Path, f Fill, s Stroke) *PathNode {
	return &PathNode{baseNode: baseNode{xf: Identity, fill: f, stroke: s}, path: p, lines: p.Flatten(2), bbox: p.Bounds()}
}

func (n *PathNode) Path() Path   { return n.path }
func (n *PathNode) Bounds() Rect { return n.xf.ApplyRect(n.bbox) }

func (n *PathNode) Hit(p Pt) bool {
	q := n.xf.Invert().Apply(p)
	if n.fill.Enabled && n.bbox.Contains(q) {
		return true
	}
	reach := n.reach()
	for _, pl := range n.lines {
		pts := pl.Pts
		if pl.Closed && len(pts) > 1 {
			pts = append(pts[:len(pts):len(pts)], pts[0])
		}
		for i := 1; i < len(pts); i++ {
			if DistToSegment(q, pts[i-1], pts[i]) <= reach {
				return true
			}
		}
	}
	return false
}

// Group is a container for child nodes with its own transform.
type Group struct {
	baseNode
	Children []Node
}

func NewGroup(children ...Node) *Group {
	g := &Group{baseNode: baseNode{xf: Identity}}
	g.Children = append(g.Children, children...)
	return g
}

func (g *Group) Bounds() Rect {
	var b Rect
	for i, c := range g.Children {
		cb := c.Bounds()
		if i == 0 {
			b = cb
		} else {
			b = b.Union(cb)
		}
	}
	return g.xf.ApplyRect(b)
}

func (g *Group) Hit(p Pt) bool {
	q := g.xf.Invert().Apply(p)
	for i := len(g.Children) - 1; i >= 0; i-- { // top-most first
		if g.Children[i].Hit(q) {
			return true
		}
	}
	return false
}
