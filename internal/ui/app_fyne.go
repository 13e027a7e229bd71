//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"gowhiteboard/internal/crash"
	"gowhiteboard/internal/domain"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/session"
	"gowhiteboard/internal/version"
)

// refresher coalesces session events into one UI refresh on the main thread.
// Emit runs inside session methods, so the refresh is always scheduled from
// another goroutine and never re-enters the session.
type refresher struct {
	pending atomic.Bool
	fn      atomic.Pointer[func()]
}

func (r *refresher) Emit(_ context.Context, _ string, _ any) {
	if r.pending.Swap(true) {
		return
	}
	go fyne.Do(func() {
		r.pending.Store(false)
		if fn := r.fn.Load(); fn != nil {
			(*fn)()
		}
	})
}

// Run starts the desktop shell. projectPath, when set, is opened at start.
func Run(opts session.Options, projectPath string) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	ref := &refresher{}
	opts.Emitter = ref
	sess := session.New(opts)
	defer sess.Close()
	defer crash.Recover(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fyneApp := app.NewWithID("gowhiteboard")
	prefs := fyneApp.Preferences()
	w := fyneApp.NewWindow("GoWhiteboard")
	w.Resize(windowSize(prefs))

	status := widget.NewLabel("Ready")
	board := NewBoardCanvas(sess)

	// Tools and drawing options
	toolNames := make([]string, 0, len(domain.Tools()))
	for _, t := range domain.Tools() {
		toolNames = append(toolNames, string(t))
	}
	syncing := false
	toolSelect := widget.NewSelect(toolNames, func(v string) {
		if syncing {
			return
		}
		if err := sess.SetTool(v); err != nil {
			dialog.ShowError(err, w)
		}
	})
	var swatches []fyne.CanvasObject
	for _, pc := range domain.Palette() {
		swatches = append(swatches, widget.NewButton(pc.Name, func() {
			if err := sess.SetColor(pc.Value); err != nil {
				dialog.ShowError(err, w)
			}
		}))
	}
	widthLabel := widget.NewLabel("")
	widthSlider := widget.NewSlider(1, domain.MaxStrokeWidth)
	widthSlider.Step = 1
	widthSlider.OnChangeEnded = func(v float64) {
		if !syncing {
			sess.SetStrokeWidth(int(v))
		}
	}
	opacitySlider := widget.NewSlider(0.05, 1)
	opacitySlider.Step = 0.05
	opacitySlider.OnChangeEnded = func(v float64) {
		if !syncing {
			sess.SetOpacity(v)
		}
	}
	zoomLabel := widget.NewLabel("100%")
	zoomOut := widget.NewButton("-", func() { sess.ZoomOut() })
	zoomIn := widget.NewButton("+", func() { sess.ZoomIn() })
	zoomReset := widget.NewButton("1:1", func() { sess.SetZoom(1) })

	toolbar := container.NewHBox(
		widget.NewLabel("Tool"), toolSelect,
		widget.NewSeparator(), container.NewHBox(swatches...),
		widget.NewSeparator(), widthLabel, container.NewGridWrap(fyne.NewSize(120, widthSlider.MinSize().Height), widthSlider),
		widget.NewLabel("Opacity"), container.NewGridWrap(fyne.NewSize(100, opacitySlider.MinSize().Height), opacitySlider),
		widget.NewSeparator(), zoomOut, zoomLabel, zoomIn, zoomReset,
	)

	// Pages
	var pages []domain.Page
	pageList := widget.NewList(
		func() int { return len(pages) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && i < len(pages) {
				o.(*widget.Label).SetText(fmt.Sprintf("%d. %s", i+1, pages[i].Name))
			}
		},
	)
	pageList.OnSelected = func(i widget.ListItemID) {
		if syncing || i < 0 || i >= len(pages) {
			return
		}
		if err := sess.SelectPage(pages[i].ID); err != nil {
			dialog.ShowError(err, w)
		}
	}
	activeID := func() string { return sess.State().ActivePageID }
	addBtn := widget.NewButton("Add", func() { sess.AddPage() })
	dupBtn := widget.NewButton("Duplicate", func() {
		if _, err := sess.DuplicatePage(activeID()); err != nil {
			dialog.ShowError(err, w)
		}
	})
	delBtn := widget.NewButton("Delete", func() {
		if err := sess.DeletePage(activeID()); err != nil {
			dialog.ShowError(err, w)
		}
	})
	renameBtn := widget.NewButton("Rename", func() {
		id := activeID()
		entry := widget.NewEntry()
		for _, p := range pages {
			if p.ID == id {
				entry.SetText(p.Name)
			}
		}
		dialog.ShowForm("Rename Page", "Rename", "Cancel", []*widget.FormItem{widget.NewFormItem("Name", entry)}, func(ok bool) {
			if !ok {
				return
			}
			if err := sess.RenamePage(id, entry.Text); err != nil {
				dialog.ShowError(err, w)
			}
		}, w)
	})
	left := container.NewBorder(
		container.NewVBox(widget.NewLabel("Pages"), widget.NewSeparator()),
		container.NewGridWithColumns(2, addBtn, dupBtn, renameBtn, delBtn),
		nil, nil, pageList)

	refresh := func() {
		st := sess.State()
		syncing = true
		defer func() { syncing = false }()

		pages = st.Pages
		pageList.Refresh()
		for i, p := range pages {
			if p.ID == st.ActivePageID {
				pageList.Select(i)
			}
		}
		toolSelect.SetSelected(string(st.ActiveTool))
		widthSlider.SetValue(float64(st.DrawingOptions.StrokeWidth))
		widthLabel.SetText(fmt.Sprintf("Width %d", st.DrawingOptions.StrokeWidth))
		opacitySlider.SetValue(st.DrawingOptions.Opacity)
		zoomLabel.SetText(fmt.Sprintf("%.0f%%", st.Zoom*100))
		delBtn.Disable()
		if len(pages) > 1 {
			delBtn.Enable()
		}

		title := "GoWhiteboard"
		if st.Project != nil {
			title += " - " + st.Project.Name
		}
		if st.HasUnsavedChanges {
			title += " *"
		}
		w.SetTitle(title)
		board.Refresh()
	}
	ref.fn.Store(&refresh)

	// File operations
	openPath := func(path string) {
		if err := sess.Open(ctx, path); err != nil {
			l.Error("open failed", slog.String("path", path), slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		addRecentFile(prefs, path)
		status.SetText("Opened " + path)
		if err := sess.Watch(ctx); err != nil {
			l.Warn("watch failed", slog.Any("err", err))
		}
	}
	saveAs := func() {
		fd := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil || wc == nil {
				return
			}
			path := wc.URI().Path()
			_ = wc.Close()
			if err := sess.SaveTo(ctx, path); err != nil {
				dialog.ShowError(err, w)
				return
			}
			addRecentFile(prefs, path)
			status.SetText("Saved " + path)
			if err := sess.Watch(ctx); err != nil {
				l.Warn("watch failed", slog.Any("err", err))
			}
		}, w)
		name := "whiteboard"
		if st := sess.State(); st.Project != nil {
			name = st.Project.Name
		}
		fd.SetFileName(name + ".json")
		fd.Show()
	}
	save := func() {
		if sess.ProjectPath() == "" {
			saveAs()
			return
		}
		if _, err := sess.Save(ctx); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved " + sess.ProjectPath())
	}
	newProject := func() {
		entry := widget.NewEntry()
		entry.SetPlaceHolder("Project name")
		dialog.ShowForm("New Project", "Create", "Cancel", []*widget.FormItem{widget.NewFormItem("Name", entry)}, func(ok bool) {
			if !ok {
				return
			}
			if _, err := sess.NewProject(ctx, entry.Text); err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Created project " + strings.TrimSpace(entry.Text))
		}, w)
	}
	confirmDiscard := func(then func()) {
		if !sess.State().HasUnsavedChanges {
			then()
			return
		}
		dialog.ShowConfirm("Unsaved Changes", "Discard unsaved changes?", func(ok bool) {
			if ok {
				then()
			}
		}, w)
	}
	exportTo := func(format string) {
		fd := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil || wc == nil {
				return
			}
			defer wc.Close()
			var out session.Export
			switch format {
			case "png":
				out, err = sess.ExportPNG(ctx)
			case "svg":
				out, err = sess.ExportSVG(ctx)
			default:
				out, err = sess.ExportPDF(ctx)
			}
			if err == nil {
				_, err = wc.Write(out.Data)
			}
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText(fmt.Sprintf("Exported %s", wc.URI().Name()))
		}, w)
		name := "whiteboard"
		if st := sess.State(); st.Project != nil {
			name = st.Project.Name
		}
		fd.SetFileName(name + "-export." + format)
		fd.Show()
	}
	importImage := func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			defer rc.Close()
			if _, err := sess.ImportImage(ctx, rc.URI().Name(), io.Reader(rc)); err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Imported " + rc.URI().Name())
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}))
		fd.Show()
	}
	openDialog := func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			openPath(path)
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".json"}))
		fd.Show()
	}

	// Menus
	recentItem := fyne.NewMenuItem("Open Recent", nil)
	buildRecent := func() {
		var items []*fyne.MenuItem
		for _, p := range loadRecentFiles(prefs) {
			items = append(items, fyne.NewMenuItem(filepath.Base(p), func() {
				confirmDiscard(func() { openPath(p) })
			}))
		}
		if len(items) == 0 {
			none := fyne.NewMenuItem("(none)", nil)
			none.Disabled = true
			items = append(items, none)
		}
		recentItem.ChildMenu = fyne.NewMenu("", items...)
	}
	buildRecent()

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New…", func() { confirmDiscard(newProject) }),
		fyne.NewMenuItem("Open…", func() { confirmDiscard(openDialog) }),
		recentItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save", save),
		fyne.NewMenuItem("Save As…", saveAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Import Image…", importImage),
		fyne.NewMenuItem("Export PNG…", func() { exportTo("png") }),
		fyne.NewMenuItem("Export SVG…", func() { exportTo("svg") }),
		fyne.NewMenuItem("Export PDF…", func() { exportTo("pdf") }),
	)
	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Delete Selection", func() { sess.DeleteSelection(); board.Refresh() }),
	)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { sess.ZoomIn() }),
		fyne.NewMenuItem("Zoom Out", func() { sess.ZoomOut() }),
		fyne.NewMenuItem("Actual Size", func() { sess.SetZoom(1) }),
	)
	aboutMenu := fyne.NewMenu("About",
		fyne.NewMenuItem("About GoWhiteboard…", func() {
			dialog.ShowInformation("About", fmt.Sprintf("GoWhiteboard\nVersion: %s\nOS: %s/%s\nGo: %s",
				version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version()), w)
		}),
	)
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, aboutMenu))

	board.OnChanged = func() { status.SetText(fmt.Sprintf("%d objects", len(sess.Objects()))) }

	split := container.NewHSplit(left, container.NewScroll(board))
	split.Offset = 0.18
	w.SetContent(container.NewBorder(toolbar, status, nil, nil, split))

	w.SetCloseIntercept(func() {
		confirmDiscard(func() {
			sz := w.Canvas().Size()
			prefs.SetInt(prefWindowWidth, int(sz.Width))
			prefs.SetInt(prefWindowHeight, int(sz.Height))
			w.Close()
		})
	})

	if projectPath != "" {
		openPath(projectPath)
		buildRecent()
	}
	refresh()
	w.ShowAndRun()
	return nil
}
