/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gowhiteboard/internal/backend"
	"gowhiteboard/internal/session"
	"gowhiteboard/internal/storage"
	"gowhiteboard/internal/store"
)

func newTestServer(t *testing.T) (*Server, *session.Session) {
	t.Helper()
	sess := session.New(session.Options{Width: 320, Height: 200})
	t.Cleanup(sess.Close)
	return New(sess, Options{}), sess
}

func do(t *testing.T, s *Server, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, want, b)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	resp := do(t, s, http.MethodGet, "/health/live", nil)
	expectStatus(t, resp, http.StatusOK)
	if m := decode[map[string]string](t, resp); m["status"] != "alive" {
		t.Fatalf("unexpected body %v", m)
	}
}

func TestProjectAndPageRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	resp := do(t, s, http.MethodPost, "/api/project", map[string]string{"name": " "})
	expectStatus(t, resp, http.StatusBadRequest)
	if m := decode[map[string]string](t, resp); m["error"] != "please enter a project name" {
		t.Fatalf("unexpected error body %v", m)
	}

	resp = do(t, s, http.MethodPost, "/api/project", map[string]string{"name": "Demo"})
	expectStatus(t, resp, http.StatusCreated)

	resp = do(t, s, http.MethodPost, "/api/pages", nil)
	expectStatus(t, resp, http.StatusCreated)

	st := decode[store.State](t, do(t, s, http.MethodGet, "/api/state", nil))
	if len(st.Pages) != 2 || st.ActivePageID != st.Pages[1].ID {
		t.Fatalf("unexpected state %+v", st)
	}

	expectStatus(t, do(t, s, http.MethodDelete, "/api/pages/page-nope", nil), http.StatusNotFound)
	expectStatus(t, do(t, s, http.MethodDelete, "/api/pages/"+st.Pages[0].ID, nil), http.StatusNoContent)
	expectStatus(t, do(t, s, http.MethodDelete, "/api/pages/"+st.Pages[1].ID, nil), http.StatusConflict)

	expectStatus(t, do(t, s, http.MethodPatch, "/api/pages/"+st.Pages[1].ID, map[string]string{"name": "Sketch"}), http.StatusNoContent)
	pages := decode[[]map[string]any](t, do(t, s, http.MethodGet, "/api/pages", nil))
	if len(pages) != 1 || pages[0]["name"] != "Sketch" {
		t.Fatalf("unexpected pages %v", pages)
	}
}

func TestDrawingThroughInputRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	expectStatus(t, do(t, s, http.MethodPut, "/api/tool", map[string]string{"tool": "laser"}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPut, "/api/tool", map[string]string{"tool": "rectangle"}), http.StatusOK)
	for _, ev := range []map[string]any{
		{"type": "down", "x": 10, "y": 10},
		{"type": "move", "x": 50, "y": 80},
		{"type": "up", "x": 50, "y": 80},
	} {
		expectStatus(t, do(t, s, http.MethodPost, "/api/input/pointer", ev), http.StatusNoContent)
	}
	expectStatus(t, do(t, s, http.MethodPost, "/api/input/pointer", map[string]any{"type": "hover"}), http.StatusBadRequest)

	body := decode[struct {
		Objects []struct {
			Kind   string  `json:"kind"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"objects"`
	}](t, do(t, s, http.MethodGet, "/api/objects", nil))
	if len(body.Objects) != 1 || body.Objects[0].Kind != "rect" || body.Objects[0].Width != 40 || body.Objects[0].Height != 70 {
		t.Fatalf("unexpected objects %+v", body.Objects)
	}

	opts := decode[map[string]any](t, do(t, s, http.MethodPatch, "/api/options", map[string]any{"strokeWidth": 40, "color": "#ef4444"}))
	if opts["strokeWidth"] != float64(20) || opts["color"] != "#ef4444" {
		t.Fatalf("options not clamped/applied: %v", opts)
	}
	z := decode[map[string]float64](t, do(t, s, http.MethodPut, "/api/zoom", map[string]float64{"zoom": 0.01}))
	if z["zoom"] != 0.1 {
		t.Fatalf("zoom = %v", z["zoom"])
	}
}

func TestExportRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	expectStatus(t, do(t, s, http.MethodPost, "/api/project", map[string]string{"name": "Demo"}), http.StatusCreated)

	resp := do(t, s, http.MethodGet, "/api/export/png", nil)
	expectStatus(t, resp, http.StatusOK)
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "Demo-export.png") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	cfg, err := png.DecodeConfig(resp.Body)
	if err != nil || cfg.Width != 320 || cfg.Height != 200 {
		t.Fatalf("png = %+v, %v", cfg, err)
	}
	expectStatus(t, do(t, s, http.MethodGet, "/api/export/svg", nil), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodGet, "/api/export/pdf", nil), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodGet, "/api/export/gif", nil), http.StatusBadRequest)
}

func TestSaveAndLoadRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	expectStatus(t, do(t, s, http.MethodPost, "/api/project/save", nil), http.StatusConflict)
	expectStatus(t, do(t, s, http.MethodPost, "/api/project", map[string]string{"name": "Roundtrip"}), http.StatusCreated)

	resp := do(t, s, http.MethodPost, "/api/project/save", nil)
	expectStatus(t, resp, http.StatusOK)
	saved, _ := io.ReadAll(resp.Body)
	if _, err := storage.Decode(saved); err != nil {
		t.Fatalf("saved document invalid: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/project/load", strings.NewReader("{broken"))
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	expectStatus(t, resp, http.StatusBadRequest)

	req = httptest.NewRequest(http.MethodPost, "/api/project/load", bytes.NewReader(saved))
	resp, err = s.App().Test(req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	expectStatus(t, resp, http.StatusOK)
	if st := decode[store.State](t, resp); st.Project == nil || st.Project.Name != "Roundtrip" || st.HasUnsavedChanges {
		t.Fatalf("unexpected state after load %+v", st)
	}
}

func multipartFile(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImportRoute(t *testing.T) {
	s, sess := newTestServer(t)
	var img bytes.Buffer
	_ = png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 30)))

	body, ct := multipartFile(t, "pic.png", img.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", ct)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	expectStatus(t, resp, http.StatusCreated)
	if len(sess.Selection()) != 1 {
		t.Fatalf("imported image not selected")
	}

	body, ct = multipartFile(t, "doc.pdf", []byte("%PDF"))
	req = httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", ct)
	resp, err = s.App().Test(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	expectStatus(t, resp, http.StatusBadRequest)

	// tiny file, enormous declared width
	var wide bytes.Buffer
	_ = png.Encode(&wide, image.NewGray(image.Rect(0, 0, storage.MaxImportSide+1, 1)))
	body, ct = multipartFile(t, "wide.png", wide.Bytes())
	req = httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", ct)
	resp, err = s.App().Test(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	expectStatus(t, resp, http.StatusBadRequest)
	if len(sess.Objects()) != 1 {
		t.Fatalf("rejected image must not be added, have %d objects", len(sess.Objects()))
	}
}

func TestSearchRoute(t *testing.T) {
	s, _ := newTestServer(t)
	expectStatus(t, do(t, s, http.MethodPost, "/api/text", map[string]any{"x": 5, "y": 5, "text": ""}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPost, "/api/text", map[string]any{"x": 5, "y": 5, "text": "Sprint goals"}), http.StatusCreated)
	res := decode[struct {
		Results []storage.SearchResult `json:"results"`
	}](t, do(t, s, http.MethodGet, "/api/search?q=goals", nil))
	if len(res.Results) != 1 || res.Results[0].Text != "Sprint goals" {
		t.Fatalf("unexpected results %+v", res.Results)
	}
}

func TestAuthSecretGuardsAPI(t *testing.T) {
	sess := session.New(session.Options{Width: 320, Height: 200})
	t.Cleanup(sess.Close)
	s := New(sess, Options{AuthSecret: "shared"})

	expectStatus(t, do(t, s, http.MethodGet, "/health/live", nil), http.StatusOK)
	resp := do(t, s, http.MethodGet, "/api/state", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	if e := decode[map[string]string](t, resp); !strings.Contains(e["error"], "invalid token") {
		t.Fatalf("unexpected error body %v", e)
	}

	tok, err := backend.SignToken("shared", "tester", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err = s.App().Test(req)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	expectStatus(t, resp, http.StatusOK)
}
