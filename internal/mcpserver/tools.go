/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"gowhiteboard/internal/domain"
)

func (s *Server) registerBoardTools() {
	s.addTool(mcp.NewTool("whiteboard_state",
		mcp.WithDescription("Return the project, pages, active page, tool, drawing options, zoom and the objects on the active page"),
	), s.handleState)

	s.addTool(mcp.NewTool("set_tool",
		mcp.WithDescription("Activate a tool"),
		mcp.WithString("tool",
			mcp.Description("Tool name"),
			mcp.Required(),
			mcp.Enum(toolNames()...),
		),
	), s.handleSetTool)

	s.addTool(mcp.NewTool("set_drawing_options",
		mcp.WithDescription("Change colour, stroke width (1-20) and/or opacity (0.05-1) of new strokes and shapes"),
		mcp.WithString("color", mcp.Description("Hex colour such as #ef4444")),
		mcp.WithNumber("strokeWidth", mcp.Description("Stroke width in pixels")),
		mcp.WithNumber("opacity", mcp.Description("Opacity between 0.05 and 1")),
	), s.handleSetOptions)

	s.addTool(mcp.NewTool("search_text",
		mcp.WithDescription("Find text objects on all pages"),
		mcp.WithString("query", mcp.Description("Text to look for"), mcp.Required()),
	), s.handleSearch)
}

func toolNames() []string {
	var out []string
	for _, t := range domain.Tools() {
		out = append(out, string(t))
	}
	return out
}

func (s *Server) handleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.sess.State()
	pages := make([]map[string]any, 0, len(st.Pages))
	for i, p := range st.Pages {
		pages = append(pages, map[string]any{"index": i, "id": p.ID, "name": p.Name})
	}
	out := map[string]any{
		"pages":             pages,
		"activePageId":      st.ActivePageID,
		"activeTool":        st.ActiveTool,
		"drawingOptions":    st.DrawingOptions,
		"zoom":              st.Zoom,
		"hasUnsavedChanges": st.HasUnsavedChanges,
		"objects":           s.sess.Objects(),
		"selection":         s.sess.Selection(),
	}
	if st.Project != nil {
		out["project"] = map[string]any{"id": st.Project.ID, "name": st.Project.Name}
	}
	return jsonResult(out)
}

func (s *Server) handleSetTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.sess.SetTool(req.GetString("tool", "")); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("active tool: %s", s.sess.Tool())), nil
}

func (s *Server) handleSetOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if c, ok := args["color"].(string); ok && c != "" {
		if err := s.sess.SetColor(c); err != nil {
			return toolError(err)
		}
	}
	if _, ok := args["strokeWidth"]; ok {
		s.sess.SetStrokeWidth(req.GetInt("strokeWidth", domain.DefaultDrawingOptions().StrokeWidth))
	}
	if _, ok := args["opacity"]; ok {
		s.sess.SetOpacity(req.GetFloat("opacity", 1))
	}
	return jsonResult(s.sess.State().DrawingOptions)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return toolError(err)
	}
	res, err := s.sess.Search(ctx, q)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(res)
}

func (s *Server) registerPageTools() {
	s.addTool(mcp.NewTool("add_page",
		mcp.WithDescription("Append a blank page and make it active"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.sess.AddPage())
	})

	s.addTool(mcp.NewTool("delete_page",
		mcp.WithDescription("Delete a page; the last page cannot be deleted"),
		mcp.WithString("pageId", mcp.Description("ID of the page"), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.sess.DeletePage(req.GetString("pageId", "")); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText("page deleted"), nil
	})

	s.addTool(mcp.NewTool("duplicate_page",
		mcp.WithDescription("Insert a copy of a page right after it"),
		mcp.WithString("pageId", mcp.Description("ID of the page"), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := s.sess.DuplicatePage(req.GetString("pageId", ""))
		if err != nil {
			return toolError(err)
		}
		return jsonResult(map[string]string{"id": p.ID, "name": p.Name})
	})

	s.addTool(mcp.NewTool("rename_page",
		mcp.WithDescription("Rename a page"),
		mcp.WithString("pageId", mcp.Description("ID of the page"), mcp.Required()),
		mcp.WithString("name", mcp.Description("New name"), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.sess.RenamePage(req.GetString("pageId", ""), req.GetString("name", "")); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText("page renamed"), nil
	})

	s.addTool(mcp.NewTool("select_page",
		mcp.WithDescription("Make a page active; drawing tools act on the active page"),
		mcp.WithString("pageId", mcp.Description("ID of the page"), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.sess.SelectPage(req.GetString("pageId", "")); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText("page selected"), nil
	})
}

func (s *Server) registerDrawingTools() {
	s.addTool(mcp.NewTool("draw_shape",
		mcp.WithDescription("Draw a shape by dragging from (x1,y1) to (x2,y2) in screen coordinates. Rectangles span the two points, circles start their bounding box at the first point with the drag length as radius, lines and arrows connect them. The drag must start on empty canvas."),
		mcp.WithString("shape", mcp.Required(), mcp.Enum("rectangle", "circle", "line", "arrow")),
		mcp.WithNumber("x1", mcp.Required()),
		mcp.WithNumber("y1", mcp.Required()),
		mcp.WithNumber("x2", mcp.Required()),
		mcp.WithNumber("y2", mcp.Required()),
	), s.handleDrawShape)

	s.addTool(mcp.NewTool("add_text",
		mcp.WithDescription("Place a text object at canvas position (x,y) with the current colour"),
		mcp.WithString("text", mcp.Required()),
		mcp.WithNumber("x", mcp.Required()),
		mcp.WithNumber("y", mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := s.sess.AddText(req.GetFloat("x", 0), req.GetFloat("y", 0), req.GetString("text", ""))
		if err != nil {
			return toolError(err)
		}
		return jsonResult(map[string]string{"id": id})
	})

	s.addTool(mcp.NewTool("delete_selection",
		mcp.WithDescription("Delete the selected objects on the active page"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]int{"deleted": s.sess.DeleteSelection()})
	})
}

func (s *Server) handleDrawShape(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tool, err := domain.ParseTool(req.GetString("shape", ""))
	if err != nil {
		return toolError(err)
	}
	if !tool.IsShape() {
		return toolError(fmt.Errorf("%s is not a shape tool", tool))
	}
	if err := s.sess.SetTool(string(tool)); err != nil {
		return toolError(err)
	}
	before := len(s.sess.Objects())
	s.sess.Drag(req.GetFloat("x1", 0), req.GetFloat("y1", 0), req.GetFloat("x2", 0), req.GetFloat("y2", 0))
	objs := s.sess.Objects()
	if len(objs) == before {
		return toolError(fmt.Errorf("nothing drawn; start the drag on empty canvas"))
	}
	return jsonResult(objs[len(objs)-1])
}

func (s *Server) registerProjectTools() {
	s.addTool(mcp.NewTool("new_project",
		mcp.WithDescription("Discard the current board and start a named project with one blank page"),
		mcp.WithString("name", mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := s.sess.NewProject(ctx, req.GetString("name", ""))
		if err != nil {
			return toolError(err)
		}
		return jsonResult(map[string]string{"id": p.ID, "name": p.Name})
	})

	s.addTool(mcp.NewTool("save_project",
		mcp.WithDescription("Save the project. With path, bind the board to that file first; without, write the bound file or return the JSON document."),
		mcp.WithString("path", mcp.Description("Project file to write")),
	), s.handleSave)

	s.addTool(mcp.NewTool("export_png",
		mcp.WithDescription("Render the active page as PNG"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := s.sess.ExportPNG(ctx)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultImage(out.FileName, base64.StdEncoding.EncodeToString(out.Data), out.ContentType), nil
	})
}

func (s *Server) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if path := req.GetString("path", ""); path != "" {
		if err := s.sess.SaveTo(ctx, path); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText("saved to " + s.sess.ProjectPath()), nil
	}
	data, err := s.sess.Save(ctx)
	if err != nil {
		return toolError(err)
	}
	if p := s.sess.ProjectPath(); p != "" {
		return mcp.NewToolResultText("saved to " + p), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
