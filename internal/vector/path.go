/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Path commands and shapes.

import "math"

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [6]float64 // enough for cubic; unused slots are zero
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float64{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [6]float64{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float64{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// Bounds returns an axis-aligned bounding box of the path including control
// points. Good enough for selection rectangles.
func (p *Path) Bounds() Rect {
	var pts []Pt
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo, LineTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]})
		case QuadTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]})
		case CubicTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}, Pt{c.Data[4], c.Data[5]})
		}
	}
	return BoundsOf(pts)
}

// Polyline is a flattened subpath.
type Polyline struct {
	Pts    []Pt
	Closed bool
}

// Flatten converts the path into polylines, subdividing curves into
// segments no longer than roughly step units.
func (p *Path) Flatten(step float64) []Polyline {
	if step <= 0 {
		step = 1
	}
	var out []Polyline
	var cur Polyline
	var pen, start Pt
	flush := func() {
		if len(cur.Pts) > 0 {
			out = append(out, cur)
		}
		cur = Polyline{}
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			flush()
			pen = Pt{c.Data[0], c.Data[1]}
			start = pen
			cur.Pts = append(cur.Pts, pen)
		case LineTo:
			if len(cur.Pts) == 0 {
				cur.Pts = append(cur.Pts, pen)
			}
			pen = Pt{c.Data[0], c.Data[1]}
			cur.Pts = append(cur.Pts, pen)
		case QuadTo:
			if len(cur.Pts) == 0 {
				cur.Pts = append(cur.Pts, pen)
			}
			c1, end := Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}
			n := segments(Dist(pen, c1)+Dist(c1, end), step)
			for i := 1; i <= n; i++ {
				t := float64(i) / float64(n)
				u := 1 - t
				cur.Pts = append(cur.Pts, Pt{
					X: u*u*pen.X + 2*u*t*c1.X + t*t*end.X,
					Y: u*u*pen.Y + 2*u*t*c1.Y + t*t*end.Y,
				})
			}
			pen = end
		case CubicTo:
			if len(cur.Pts) == 0 {
				cur.Pts = append(cur.Pts, pen)
			}
			c1, c2, end := Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}, Pt{c.Data[4], c.Data[5]}
			n := segments(Dist(pen, c1)+Dist(c1, c2)+Dist(c2, end), step)
			for i := 1; i <= n; i++ {
				t := float64(i) / float64(n)
				u := 1 - t
				cur.Pts = append(cur.Pts, Pt{
					X: u*u*u*pen.X + 3*u*u*t*c1.X + 3*u*t*t*c2.X + t*t*t*end.X,
					Y: u*u*u*pen.Y + 3*u*u*t*c1.Y + 3*u*t*t*c2.Y + t*t*t*end.Y,
				})
			}
			pen = end
		case Close:
			cur.Closed = true
			flush()
			pen = start
		}
	}
	flush()
	return out
}

func segments(length, step float64) int {
	n := int(math.Ceil(length / step))
	if n < 1 {
		return 1
	}
	if n > 256 {
		return 256
	}
	return n
}

// EllipsePath approximates the ellipse inscribed in r with four cubic arcs.
func EllipsePath(r Rect) Path {
	const k = 0.5522847498
	cx, cy := r.X+r.W/2, r.Y+r.H/2
	rx, ry := r.W/2, r.H/2
	var p Path
	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+k*ry, cx+k*rx, cy+ry, cx, cy+ry)
	p.CubicTo(cx-k*rx, cy+ry, cx-rx, cy+k*ry, cx-rx, cy)
	p.CubicTo(cx-rx, cy-k*ry, cx-k*rx, cy-ry, cx, cy-ry)
	p.CubicTo(cx+k*rx, cy-ry, cx+rx, cy-k*ry, cx+rx, cy)
	p.Close()
	return p
}

// ArrowHead returns the two barb end points of an arrow pointing from a to
// b. size is the barb length; barbs open at 30 degrees.
func ArrowHead(a, b Pt, size float64) (Pt, Pt) {
	ang := math.Atan2(b.Y-a.Y, b.X-a.X)
	const spread = math.Pi / 6
	l := Pt{b.X - size*math.Cos(ang-spread), b.Y - size*math.Sin(ang-spread)}
	r := Pt{b.X - size*math.Cos(ang+spread), b.Y - size*math.Sin(ang+spread)}
	return l, r
}
