/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"path/filepath"
	"strings"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/render"
)

const (
	// ImportOrigin is where imported images are placed on the page.
	ImportOrigin = 100.0
	// ImportMaxSide bounds the displayed size of an imported image.
	ImportMaxSide = 500.0
	// MaxImportBytes caps the size of a single imported file.
	MaxImportBytes = 32 << 20
	// MaxImportSide and MaxImportPixels cap the declared dimensions, which a
	// small compressed file can inflate far beyond its byte size.
	MaxImportSide   = 16384
	MaxImportPixels = 64 << 20
)

var imageMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

var documentExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true}

// ImportKind classifies a file name for import.
func ImportKind(name string) (mime string, err error) {
	ext := strings.ToLower(filepath.Ext(name))
	if documentExts[ext] {
		return "", domain.ErrImportNotSupportedYet
	}
	if m, ok := imageMIME[ext]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFileType, ext)
}

// ImportScale returns the uniform scale that fits w x h into ImportMaxSide, never enlarging.
func ImportScale(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return math.Min(1, math.Min(ImportMaxSide/float64(w), ImportMaxSide/float64(h)))
}

// ImportImage reads an image file and returns the drawable to add to the page. The original
// bytes are embedded as a data URL.
func ImportImage(name string, r io.Reader) (drawing.Object, error) {
	mime, err := ImportKind(name)
	if err != nil {
		return drawing.Object{}, err
	}
	b, err := io.ReadAll(io.LimitReader(r, MaxImportBytes+1))
	if err != nil {
		return drawing.Object{}, fmt.Errorf("read image: %w", err)
	}
	if len(b) > MaxImportBytes {
		return drawing.Object{}, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrImageTooLarge, filepath.Base(name), MaxImportBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return drawing.Object{}, fmt.Errorf("decode image %s: %w", filepath.Base(name), err)
	}
	if err := checkImportDimensions(cfg.Width, cfg.Height); err != nil {
		return drawing.Object{}, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	if m, ok := imageMIME["."+format]; ok {
		mime = m
	}
	return drawing.Object{
		ID:     drawing.NewObjectID(),
		Kind:   drawing.KindImage,
		Left:   ImportOrigin,
		Top:    ImportOrigin,
		Width:  float64(cfg.Width),
		Height: float64(cfg.Height),
		Scale:  ImportScale(cfg.Width, cfg.Height),
		Src:    render.DataURL(mime, b),
	}, nil
}

func checkImportDimensions(w, h int) error {
	if w > MaxImportSide || h > MaxImportSide {
		return fmt.Errorf("%w: %dx%d, sides are limited to %d", domain.ErrImageTooLarge, w, h, MaxImportSide)
	}
	if int64(w)*int64(h) > MaxImportPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", domain.ErrImageTooLarge, w, h, MaxImportPixels)
	}
	return nil
}
