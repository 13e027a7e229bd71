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
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"gowhiteboard/internal/session"
	"gowhiteboard/internal/storage"
)

type nameRequest struct {
	Name string `json:"name"`
}

type optionsRequest struct {
	Color       *string  `json:"color"`
	StrokeWidth *int     `json:"strokeWidth"`
	Opacity     *float64 `json:"opacity"`
}

type pointerRequest struct {
	Type string  `json:"type"` // down | move | up | dblclick
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type textRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

func (s *Server) routes(api fiber.Router) {
	api.Get("/state", s.getState)

	api.Post("/project", s.createProject)
	api.Patch("/project", s.renameProject)
	api.Post("/project/save", s.saveProject)
	api.Post("/project/load", s.loadProject)

	api.Get("/pages", s.listPages)
	api.Post("/pages", s.addPage)
	api.Delete("/pages/:id", s.deletePage)
	api.Patch("/pages/:id", s.renamePage)
	api.Post("/pages/:id/duplicate", s.duplicatePage)
	api.Post("/pages/:id/select", s.selectPage)
	api.Get("/pages/:id/thumbnail", s.pageThumbnail)

	api.Get("/objects", s.listObjects)
	api.Post("/text", s.addText)
	api.Delete("/selection", s.deleteSelection)

	api.Put("/tool", s.setTool)
	api.Patch("/options", s.setOptions)
	api.Put("/zoom", s.setZoom)
	api.Post("/zoom/in", func(c fiber.Ctx) error { return c.JSON(fiber.Map{"zoom": s.sess.ZoomIn()}) })
	api.Post("/zoom/out", func(c fiber.Ctx) error { return c.JSON(fiber.Map{"zoom": s.sess.ZoomOut()}) })

	api.Post("/input/pointer", s.pointer)
	api.Post("/input/key", s.key)

	api.Get("/export/:format", s.exportPage)
	api.Post("/import", s.importImage)
	api.Get("/search", s.search)
}

func (s *Server) getState(c fiber.Ctx) error { return c.JSON(s.sess.State()) }

func (s *Server) createProject(c fiber.Ctx) error {
	var req nameRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	p, err := s.sess.NewProject(c.Context(), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) renameProject(c fiber.Ctx) error {
	var req nameRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	if err := s.sess.SetProjectName(req.Name); err != nil {
		return err
	}
	return c.JSON(s.sess.State().Project)
}

// saveProject returns the project document as a download.
func (s *Server) saveProject(c fiber.Ctx) error {
	data, err := s.sess.Save(c.Context())
	if err != nil {
		return err
	}
	name := "whiteboard"
	if p := s.sess.State().Project; p != nil {
		name = p.Name
	}
	c.Attachment(storage.SafeFileName(name) + storage.FileExt)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(data)
}

// loadProject accepts the project document as the raw body or as a
// multipart "file" upload.
func (s *Server) loadProject(c fiber.Ctx) error {
	body := c.Body()
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		if err := s.sess.Load(c.Context(), f); err != nil {
			return err
		}
		return c.JSON(s.sess.State())
	}
	if err := s.sess.Load(c.Context(), bytes.NewReader(body)); err != nil {
		return err
	}
	return c.JSON(s.sess.State())
}

func (s *Server) listPages(c fiber.Ctx) error { return c.JSON(s.sess.State().Pages) }

func (s *Server) addPage(c fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(s.sess.AddPage())
}

func (s *Server) deletePage(c fiber.Ctx) error {
	if err := s.sess.DeletePage(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) renamePage(c fiber.Ctx) error {
	var req nameRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "page name is required")
	}
	if err := s.sess.RenamePage(c.Params("id"), req.Name); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) duplicatePage(c fiber.Ctx) error {
	p, err := s.sess.DuplicatePage(c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) selectPage(c fiber.Ctx) error {
	if err := s.sess.SelectPage(c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"activePageId": c.Params("id")})
}

func (s *Server) pageThumbnail(c fiber.Ctx) error {
	w, err := intQuery(c, "w", 160)
	if err != nil {
		return err
	}
	h, err := intQuery(c, "h", 100)
	if err != nil {
		return err
	}
	b, err := s.sess.Thumbnail(c.Context(), c.Params("id"), w, h)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(b)
}

func (s *Server) listObjects(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"objects": s.sess.Objects(), "selection": s.sess.Selection()})
}

func (s *Server) addText(c fiber.Ctx) error {
	var req textRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}
	id, err := s.sess.AddText(req.X, req.Y, req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) deleteSelection(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"deleted": s.sess.DeleteSelection()})
}

func (s *Server) setTool(c fiber.Ctx) error {
	var req struct {
		Tool string `json:"tool"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	if err := s.sess.SetTool(req.Tool); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"activeTool": s.sess.Tool()})
}

func (s *Server) setOptions(c fiber.Ctx) error {
	var req optionsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	if req.Color != nil {
		if err := s.sess.SetColor(*req.Color); err != nil {
			return badRequest(err)
		}
	}
	if req.StrokeWidth != nil {
		s.sess.SetStrokeWidth(*req.StrokeWidth)
	}
	if req.Opacity != nil {
		s.sess.SetOpacity(*req.Opacity)
	}
	return c.JSON(s.sess.State().DrawingOptions)
}

func (s *Server) setZoom(c fiber.Ctx) error {
	var req struct {
		Zoom float64 `json:"zoom"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	return c.JSON(fiber.Map{"zoom": s.sess.SetZoom(req.Zoom)})
}

func (s *Server) pointer(c fiber.Ctx) error {
	var req pointerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	switch req.Type {
	case "down":
		s.sess.PointerDown(req.X, req.Y)
	case "move":
		s.sess.PointerMove(req.X, req.Y)
	case "up":
		s.sess.PointerUp(req.X, req.Y)
	case "dblclick":
		s.sess.DoubleClick(req.X, req.Y)
	default:
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown pointer event %q", req.Type))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) key(c fiber.Ctx) error {
	var req struct {
		Key string `json:"key"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(err)
	}
	if req.Key == "" {
		return fiber.NewError(fiber.StatusBadRequest, "key is required")
	}
	s.sess.KeyDown(req.Key)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) exportPage(c fiber.Ctx) error {
	var (
		out session.Export
		err error
	)
	switch strings.ToLower(c.Params("format")) {
	case "png":
		out, err = s.sess.ExportPNG(c.Context())
	case "pdf":
		out, err = s.sess.ExportPDF(c.Context())
	case "svg":
		out, err = s.sess.ExportSVG(c.Context())
	default:
		return fiber.NewError(fiber.StatusBadRequest, "format must be png, pdf or svg")
	}
	if err != nil {
		return err
	}
	c.Attachment(out.FileName)
	c.Set(fiber.HeaderContentType, out.ContentType)
	return c.Send(out.Data)
}

func (s *Server) importImage(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file required in multipart/form-data")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	id, err := s.sess.ImportImage(c.Context(), fh.Filename, f)
	if err != nil {
		if statusFor(err) == fiber.StatusInternalServerError {
			// undecodable or oversized upload
			return badRequest(err)
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) search(c fiber.Ctx) error {
	res, err := s.sess.Search(c.Context(), c.Query("q"))
	if err != nil {
		return err
	}
	if res == nil {
		res = []storage.SearchResult{}
	}
	return c.JSON(fiber.Map{"results": res})
}

func intQuery(c fiber.Ctx, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", key))
	}
	return n, nil
}
