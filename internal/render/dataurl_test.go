/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"errors"
	"image"
	"strings"
	"testing"
)

func TestDataURLRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	url, err := PNGDataURL(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %.30s", url)
	}
	img, format, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format != "png" || img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("unexpected decode result %s %v", format, img.Bounds())
	}
}

func TestParseDataURLErrors(t *testing.T) {
	for _, in := range []string{"http://x", "data:image/png;base64", "data:text/plain,hello", "data:image/png;base64,!!"} {
		if _, _, err := ParseDataURL(in); !errors.Is(err, ErrBadDataURL) {
			t.Fatalf("ParseDataURL(%q) err = %v", in, err)
		}
	}
}
