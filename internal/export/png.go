/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/render"
	"gowhiteboard/internal/storage"
	"gowhiteboard/internal/surface"
)

// DefaultName is used for exports of unnamed projects.
const DefaultName = "whiteboard"

// PageOptions controls raster exports. Zero values select the canvas defaults.
type PageOptions struct {
	Width  int     // page width in canvas units
	Height int     // page height in canvas units
	Scale  float64 // output pixels per canvas unit
}

func (o PageOptions) withDefaults() PageOptions {
	if o.Width <= 0 {
		o.Width = surface.DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = surface.DefaultHeight
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	return o
}

// FileName returns "<name>-export.<ext>", falling back to DefaultName for an empty name.
// Path separators in the name are replaced.
func FileName(projectName, ext string) string {
	return storage.SafeFileName(projectName) + "-export." + strings.TrimPrefix(ext, ".")
}

// PageImage renders one page.
func PageImage(page domain.Page, opt PageOptions) (*image.RGBA, error) {
	opt = opt.withDefaults()
	doc, err := drawing.Decode(page.Data)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", page.ID, err)
	}
	return render.Render(doc, opt.Width, opt.Height, opt.Scale), nil
}

// PagePNG renders one page and returns the encoded PNG.
func PagePNG(page domain.Page, opt PageOptions) ([]byte, error) {
	img, err := PageImage(page, opt)
	if err != nil {
		return nil, err
	}
	return render.EncodePNG(img)
}

// WritePNG renders one page as PNG to w.
func WritePNG(w io.Writer, page domain.Page, opt PageOptions) error {
	b, err := PagePNG(page, opt)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// ExportPagePNG writes one page as PNG to outPath, creating parent directories.
func ExportPagePNG(page domain.Page, outPath string, opt PageOptions) error {
	b, err := PagePNG(page, opt)
	if err != nil {
		return err
	}
	return writeOut(outPath, b)
}

// ThumbnailPNG renders a small preview fitting maxW x maxH.
func ThumbnailPNG(page domain.Page, maxW, maxH int) ([]byte, error) {
	img, err := PageImage(page, PageOptions{})
	if err != nil {
		return nil, err
	}
	return render.EncodePNG(render.Fit(img, maxW, maxH))
}

func writeOut(outPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(outPath), err)
	}
	return nil
}
