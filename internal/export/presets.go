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
	"path/filepath"
	"strings"

	"gowhiteboard/internal/domain"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Formats understood by BatchExport.
const (
	FormatPNG = "png"
	FormatPDF = "pdf"
	FormatSVG = "svg"
)

// BatchOptions controls batch export across formats and pages.
//
// Path semantics:
//   - OutDir is required; it is created if missing.
//   - PDF is a single file <name>-export.pdf covering the selected pages.
//   - PNG/SVG write page-<n>.(png|svg) into png/ or svg/ subfolders of OutDir.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, png, svg; empty means preset defaults
	Pages   []int    // zero-based indices; empty means all pages
	Scale   float64  // raster scale; zero means the preset default
	Width   int
	Height  int
	OutDir  string
}

// BatchExport writes the selected pages in every requested format and returns the written files.
func BatchExport(proj domain.Project, opt BatchOptions) ([]string, error) {
	if len(proj.Pages) == 0 {
		return nil, fmt.Errorf("project has no pages")
	}
	if strings.TrimSpace(opt.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = presetScale(opt.Preset)
	}
	po := PageOptions{Width: opt.Width, Height: opt.Height, Scale: scale}
	pages := pageIndexes(len(proj.Pages), opt.Pages)

	var written []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case FormatPDF:
			out := filepath.Join(opt.OutDir, FileName(proj.Name, FormatPDF))
			d := po.withDefaults()
			if err := ExportProjectPDF(proj, out, PDFOptions{Width: float64(d.Width), Height: float64(d.Height), Pages: pages}); err != nil {
				return written, fmt.Errorf("pdf: %w", err)
			}
			written = append(written, out)
		case FormatPNG, FormatSVG:
			ext := strings.ToLower(strings.TrimSpace(f))
			for _, idx := range pages {
				if idx < 0 || idx >= len(proj.Pages) {
					continue
				}
				out := filepath.Join(opt.OutDir, ext, fmt.Sprintf("page-%d.%s", idx+1, ext))
				var err error
				if ext == FormatPNG {
					err = ExportPagePNG(proj.Pages[idx], out, po)
				} else {
					err = ExportPageSVG(proj.Pages[idx], out, po)
				}
				if err != nil {
					return written, fmt.Errorf("%s page %d: %w", ext, idx+1, err)
				}
				written = append(written, out)
			}
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{FormatPNG, FormatSVG}
	case PresetPrint:
		return []string{FormatPDF, FormatPNG}
	default:
		return []string{FormatPDF}
	}
}

func presetScale(p PresetName) float64 {
	if p == PresetPrint {
		return 2
	}
	return 1
}
