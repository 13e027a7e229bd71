/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
}

func TestRectFromPointsNormalizes(t *testing.T) {
	r := RectFromPoints(Pt{50, 80}, Pt{10, 10})
	if r != R(10, 10, 40, 70) {
		t.Fatalf("unexpected rect: %+v", r)
	}
	if r2 := RectFromPoints(Pt{10, 10}, Pt{50, 80}); r2 != r {
		t.Fatalf("order should not matter: %+v vs %+v", r2, r)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
	back := m.Invert().Apply(p)
	if math.Abs(back.X-1) > 1e-9 || math.Abs(back.Y-1) > 1e-9 {
		t.Fatalf("inverse did not round-trip: %+v", back)
	}
}

func TestDistToSegment(t *testing.T) {
	a, b := Pt{0, 0}, Pt{10, 0}
	if d := DistToSegment(Pt{5, 3}, a, b); d != 3 {
		t.Fatalf("perpendicular distance = %v", d)
	}
	if d := DistToSegment(Pt{13, 4}, a, b); d != 5 {
		t.Fatalf("endpoint distance = %v", d)
	}
	if d := DistToSegment(Pt{3, 4}, a, a); d != 5 {
		t.Fatalf("degenerate segment distance = %v", d)
	}
}

func TestUnionAndIntersects(t *testing.T) {
	u := R(0, 0, 10, 10).Union(R(5, 5, 10, 10))
	if u != R(0, 0, 15, 15) {
		t.Fatalf("unexpected union: %+v", u)
	}
	if !R(0, 0, 10, 10).Intersects(R(10, 10, 5, 5)) {
		t.Fatalf("touching rects should intersect")
	}
	if R(0, 0, 10, 10).Intersects(R(11, 0, 5, 5)) {
		t.Fatalf("disjoint rects should not intersect")
	}
}

func TestFloatRound(t *testing.T) {
	if v := FloatRound(1.23456, 2); v != 1.23 {
		t.Fatalf("got %v", v)
	}
	if v := FloatRound(1.5, -1); v != 1.5 {
		t.Fatalf("negative places should be a no-op, got %v", v)
	}
}
