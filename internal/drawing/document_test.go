/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package drawing

import (
	"errors"
	"strings"
	"testing"

	"gowhiteboard/internal/vector"
)

func TestEmptyDataDecodes(t *testing.T) {
	d, err := Decode(EmptyData())
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if d.Version != Version || d.Background != DefaultBackground || len(d.Objects) != 0 {
		t.Fatalf("unexpected empty document: %+v", d)
	}
	blank, err := Decode("")
	if err != nil || len(blank.Objects) != 0 {
		t.Fatalf("blank data should decode to an empty document: %+v %v", blank, err)
	}
}

func TestEncodeRenumbersZAndDecodeSorts(t *testing.T) {
	d := New("")
	d.Objects = append(d.Objects,
		Object{ID: "a", Kind: KindRect, Z: 7, Left: 1, Top: 2, Width: 3, Height: 4, Style: Style{Stroke: "#000000", StrokeWidth: 2}},
		Object{ID: "b", Kind: KindCircle, Z: 3, CX: 10, CY: 10, Radius: 5},
	)
	s, err := Encode(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(s, `"id":"a","kind":"rect","z":0`) {
		t.Fatalf("z was not renumbered: %s", s)
	}
	// input z values are kept on the caller's copy
	if d.Objects[0].Z != 7 {
		t.Fatalf("Encode must not mutate its input")
	}

	raw := `{"version":1,"objects":[{"id":"top","kind":"rect","z":2},{"id":"bottom","kind":"line","z":0},{"id":"mid","kind":"text","z":1,"text":"hi"}]}`
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	order := []string{got.Objects[0].ID, got.Objects[1].ID, got.Objects[2].ID}
	if strings.Join(order, ",") != "bottom,mid,top" {
		t.Fatalf("unexpected paint order %v", order)
	}
}

func TestDecodeRejectsSchemaViolations(t *testing.T) {
	bad := []string{
		`{"objects":[]}`,
		`{"version":1,"objects":[{"id":"x","kind":"triangle"}]}`,
		`{"version":1,"objects":[{"id":"x","kind":"rect","style":{"stroke":"red"}}]}`,
		`not json`,
	}
	for _, in := range bad {
		if _, err := Decode(in); !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("Decode(%s) error = %v, want ErrInvalidDocument", in, err)
		}
	}
}

func TestObjectBoundsAndMove(t *testing.T) {
	c := Object{Kind: KindCircle, CX: 50, CY: 50, Radius: 10}
	if b := c.Bounds(); b != vector.R(40, 40, 20, 20) {
		t.Fatalf("circle bounds %+v", b)
	}
	l := Object{Kind: KindArrow, X1: 30, Y1: 5, X2: 10, Y2: 25}
	l.Move(5, 5)
	if b := l.Bounds(); b != vector.R(15, 10, 20, 20) {
		t.Fatalf("arrow bounds after move %+v", b)
	}
	img := Object{Kind: KindImage, Left: 100, Top: 100, Width: 1000, Height: 500, Scale: 0.5}
	if b := img.Bounds(); b != vector.R(100, 100, 500, 250) {
		t.Fatalf("image bounds %+v", b)
	}
	p := Object{Kind: KindPath, Points: []Point{{0, 0}, {4, 8}}}
	cp := p.Clone()
	cp.Move(1, 1)
	if p.Points[0].X != 0 {
		t.Fatalf("Clone must copy points")
	}
}

func TestObjectNodeHit(t *testing.T) {
	r := Object{Kind: KindRect, Left: 10, Top: 10, Width: 40, Height: 70, Style: Style{Stroke: "#000000", StrokeWidth: 2, Fill: "transparent"}}
	if !r.Node().Hit(vector.Pt{X: 30, Y: 40}) {
		t.Fatalf("rect interior should hit")
	}
	txt := Object{Kind: KindText, Left: 0, Top: 0, Width: 200, FontSize: 20, Text: "Double-click to edit"}
	if !txt.Node().Hit(vector.Pt{X: 100, Y: 10}) {
		t.Fatalf("text box should hit")
	}
}

func TestTexts(t *testing.T) {
	d := New("")
	d.Objects = []Object{{ID: "1", Kind: KindText, Text: "hello"}, {ID: "2", Kind: KindRect}, {ID: "3", Kind: KindText, Text: "  "}}
	got := d.Texts()
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("unexpected texts %v", got)
	}
}
