/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func TestParseColor(t *testing.T) {
	cases := map[string]Color{
		"#000000":                Black,
		"#fff":                   White,
		"#FF000080":              {255, 0, 0, 128},
		"transparent":            Transparent,
		" #3b82f6 ":              {0x3b, 0x82, 0xf6, 255},
		"rgb(59, 130, 246)":      {59, 130, 246, 255},
		"RGBA(255,0,0,0.5)":      {255, 0, 0, 128},
		"rgba( 0, 0, 0, 0 )":     Transparent,
		"rgba(34, 197, 94, 1.0)": {34, 197, 94, 255},
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseColor(%q) = %+v, want %+v", in, got, want)
		}
	}
	for _, bad := range []string{"red", "#12", "#zzzzzz", "rgb(1,2)", "rgba(1,2,3)", "rgb(256,0,0)", "rgba(0,0,0,1.5)", "rgb(1,2,3"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestColorHexAndOpacity(t *testing.T) {
	c := MustColor("#ef4444")
	if c.Hex() != "#ef4444" {
		t.Fatalf("hex = %s", c.Hex())
	}
	half := c.WithOpacity(0.5)
	if half.A != 128 || half.Hex() != "#ef444480" {
		t.Fatalf("unexpected half-opacity colour %+v %s", half, half.Hex())
	}
	_, _, _, a := Transparent.RGBA()
	if a != 0 {
		t.Fatalf("transparent alpha = %d", a)
	}
}
