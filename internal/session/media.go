/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/export"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/render"
	"gowhiteboard/internal/storage"
	"gowhiteboard/internal/telemetry"
)

// Export is a rendered download.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportPNG rasterizes the active page as shown on the surface. The store is
// not touched.
func (s *Session) ExportPNG(ctx context.Context) (Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.ActivePage(); !ok {
		return Export{}, domain.ErrNoCanvas
	}
	b, err := render.EncodePNG(s.canvas.Snapshot(1))
	if err != nil {
		return Export{}, fmt.Errorf("encode png: %w", err)
	}
	s.exported(ctx, "png", len(b))
	return Export{FileName: export.FileName(s.projectName(), "png"), ContentType: "image/png", Data: b}, nil
}

// ExportSVG writes the active page as SVG.
func (s *Session) ExportSVG(ctx context.Context) (Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.store.ActivePage()
	if !ok {
		return Export{}, domain.ErrNoCanvas
	}
	var buf bytes.Buffer
	if err := export.WriteSVG(&buf, page, s.pageOptions()); err != nil {
		return Export{}, err
	}
	s.exported(ctx, "svg", buf.Len())
	return Export{FileName: export.FileName(s.projectName(), "svg"), ContentType: "image/svg+xml", Data: buf.Bytes()}, nil
}

// ExportPDF writes every working page, one PDF page each.
func (s *Session) ExportPDF(ctx context.Context) (Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj := s.workingProject()
	if len(proj.Pages) == 0 {
		return Export{}, domain.ErrNoCanvas
	}
	w, h := s.canvas.Dimensions()
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, proj, export.PDFOptions{Width: float64(w), Height: float64(h)}); err != nil {
		return Export{}, err
	}
	s.exported(ctx, "pdf", buf.Len())
	return Export{FileName: export.FileName(proj.Name, "pdf"), ContentType: "application/pdf", Data: buf.Bytes()}, nil
}

func (s *Session) exported(ctx context.Context, format string, n int) {
	applog.WithOperation(s.log, "export").InfoContext(s.logCtx(ctx), "page exported", slog.String("format", format), slog.Int("bytes", n))
	telemetry.Event(telemetry.EventExport, map[string]any{"format": format})
}

func (s *Session) projectName() string {
	if p, ok := s.store.Project(); ok {
		return p.Name
	}
	return ""
}

// workingProject is the merged project, or the bare working pages when no
// project was created yet.
func (s *Session) workingProject() domain.Project {
	if p, ok := s.store.MergedProject(); ok {
		return p
	}
	return domain.Project{Pages: s.store.Pages()}
}

func (s *Session) pageOptions() export.PageOptions {
	w, h := s.canvas.Dimensions()
	return export.PageOptions{Width: w, Height: h, Scale: 1}
}

// ImportImage decodes an image upload, places it on the active page and
// selects it. It returns the new object's id.
func (s *Session) ImportImage(ctx context.Context, name string, r io.Reader) (string, error) {
	if _, err := storage.ImportKind(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	_, ok := s.store.ActivePage()
	s.mu.Unlock()
	if !ok {
		return "", domain.ErrNoCanvas
	}
	obj, err := storage.ImportImage(name, r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.canvas.Add(obj)
	s.canvas.SetActive(id)
	s.emit.Emit(s.logCtx(ctx), EventImageImported, map[string]any{"id": id, "name": name})
	telemetry.Event(telemetry.EventImageImported, nil)
	return id, nil
}

// Thumbnail returns a PNG of the page fitted into w x h. Sessions bound to a
// file cache it in the sidecar index keyed by the page content.
func (s *Session) Thumbnail(ctx context.Context, pageID string, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %dx%d", w, h)
	}
	s.mu.Lock()
	page, ok := s.store.Page(pageID)
	path := s.ProjectPath()
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPageNotFound, pageID)
	}
	gen := func(context.Context) ([]byte, error) { return export.ThumbnailPNG(page, w, h) }
	if path == "" {
		return gen(ctx)
	}
	b, err := storage.GetOrCreatePreview(ctx, path, page.ID, storage.ContentHash(page.Data), w, h, gen)
	if err != nil {
		s.log.Warn("preview cache unavailable", slog.String("page", page.ID), slog.Any("err", err))
		return gen(ctx)
	}
	return b, nil
}

// Search finds text objects containing text. A saved, unmodified project is
// searched through its sidecar index; otherwise the working pages are scanned.
func (s *Session) Search(ctx context.Context, text string) ([]storage.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	s.mu.Lock()
	path := s.ProjectPath()
	dirty := s.store.HasUnsavedChanges()
	proj := s.workingProject()
	s.mu.Unlock()

	if path != "" && !dirty && proj.ID != "" {
		err := storage.BuildIndexIfEmpty(ctx, path, proj)
		if err == nil {
			return storage.Search(ctx, path, storage.SearchQuery{ProjectID: proj.ID, Text: storage.PhraseQuery(text), Limit: 100})
		}
		s.log.Warn("index unavailable, scanning pages", slog.Any("err", err))
	}
	return scanPages(proj.Pages, text), nil
}

func scanPages(pages []domain.Page, text string) []storage.SearchResult {
	needle := strings.ToLower(text)
	var out []storage.SearchResult
	for i, pg := range pages {
		doc, err := drawing.Decode(pg.Data)
		if err != nil {
			continue
		}
		for _, o := range doc.Objects {
			if o.Kind != drawing.KindText {
				continue
			}
			lower := strings.ToLower(o.Text)
			at := strings.Index(lower, needle)
			if at < 0 {
				continue
			}
			snippet := o.Text
			if len(lower) == len(o.Text) {
				end := at + len(needle)
				snippet = o.Text[:at] + "[" + o.Text[at:end] + "]" + o.Text[end:]
			}
			out = append(out, storage.SearchResult{
				PageID:    pg.ID,
				PageIndex: i,
				PageName:  pg.Name,
				ObjectID:  o.ID,
				Text:      o.Text,
				Snippet:   snippet,
			})
		}
	}
	return out
}
