/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"gowhiteboard/internal/backend"
	"gowhiteboard/internal/config"
	"gowhiteboard/internal/drawing"
	"gowhiteboard/internal/export"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/mcpserver"
	"gowhiteboard/internal/server"
	"gowhiteboard/internal/session"
	"gowhiteboard/internal/storage"
	"gowhiteboard/internal/ui"
)

func (c *cli) newProject(args []string) error {
	path, name := args[1], args[2]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	p, err := c.sess.NewProject(c.ctx, name)
	if err != nil {
		return err
	}
	if err := c.sess.SaveTo(c.ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created project %q (%s) at %s\n", p.Name, p.ID, c.sess.ProjectPath())
	return nil
}

func (c *cli) open(path string) error {
	c.log.Info("open project", slog.String("path", path))
	return c.sess.Open(c.ctx, path)
}

func (c *cli) info(args []string) error {
	if err := c.open(args[1]); err != nil {
		return err
	}
	st := c.sess.State()
	p := st.Project
	fmt.Fprintf(c.out, "Project: %s\n", p.Name)
	fmt.Fprintf(c.out, "ID: %s\n", p.ID)
	fmt.Fprintf(c.out, "Pages: %d\n", len(st.Pages))
	fmt.Fprintf(c.out, "Created: %s\n", time.UnixMilli(p.CreatedAt).Format(time.RFC3339))
	fmt.Fprintf(c.out, "Updated: %s\n", time.UnixMilli(p.UpdatedAt).Format(time.RFC3339))
	fmt.Fprintf(c.out, "File: %s\n", c.sess.ProjectPath())
	return nil
}

func (c *cli) pages(args []string) error {
	if err := c.open(args[1]); err != nil {
		return err
	}
	for i, pg := range c.sess.State().Pages {
		n := 0
		if doc, err := drawing.Decode(pg.Data); err == nil {
			n = len(doc.Objects)
		}
		fmt.Fprintf(c.out, "%d\t%s\t%s\t%d objects\n", i+1, pg.ID, pg.Name, n)
	}
	return nil
}

func (c *cli) export(args []string) error {
	if err := c.open(args[1]); err != nil {
		return err
	}
	var (
		out session.Export
		err error
	)
	switch strings.ToLower(args[2]) {
	case "png":
		out, err = c.sess.ExportPNG(c.ctx)
	case "svg":
		out, err = c.sess.ExportSVG(c.ctx)
	case "pdf":
		out, err = c.sess.ExportPDF(c.ctx)
	default:
		return usageError("export format must be png, svg or pdf")
	}
	if err != nil {
		return err
	}
	dest := out.FileName
	if len(args) > 3 {
		dest = args[3]
	}
	if err := os.WriteFile(dest, out.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(c.out, "Exported %s (%d bytes)\n", dest, len(out.Data))
	return nil
}

func (c *cli) importImage(args []string) error {
	if err := c.open(args[1]); err != nil {
		return err
	}
	f, err := os.Open(args[2])
	if err != nil {
		return err
	}
	defer f.Close()
	id, err := c.sess.ImportImage(c.ctx, filepath.Base(args[2]), f)
	if err != nil {
		return err
	}
	if _, err := c.sess.Save(c.ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Imported %s as %s\n", filepath.Base(args[2]), id)
	return nil
}

func (c *cli) recoverProject(args []string) error {
	path := args[1]
	backups, err := storage.ListBackups(path)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found for %s", path)
	}
	if err := c.sess.OpenBackup(c.ctx, path); err != nil {
		return err
	}
	if _, err := c.sess.Save(c.ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Restored %s from %s\n", path, filepath.Base(backups[len(backups)-1]))
	return nil
}

func (c *cli) snapshots(args []string) error {
	if err := c.open(args[1]); err != nil {
		return err
	}
	snaps, err := c.sess.Snapshots(c.ctx, 0)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(c.out, "No snapshots")
		return nil
	}
	for _, sn := range snaps {
		pages := "?"
		if p, err := sn.Project(); err == nil {
			pages = strconv.Itoa(len(p.Pages))
		}
		fmt.Fprintf(c.out, "%d\t%s\t%s pages\n", sn.ID, sn.TS.Local().Format(time.DateTime), pages)
	}
	return nil
}

func (c *cli) restoreSnapshot(args []string) error {
	id, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return usageError("snapshot id must be a number")
	}
	if err := c.open(args[1]); err != nil {
		return err
	}
	if err := c.sess.RestoreSnapshot(c.ctx, id); err != nil {
		return err
	}
	if _, err := c.sess.Save(c.ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Restored snapshot %d into %s\n", id, c.sess.ProjectPath())
	return nil
}

func (c *cli) search(args []string) error {
	if err := c.open(args[1]); err != nil {
		return err
	}
	res, err := c.sess.Search(c.ctx, strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	if len(res) == 0 {
		fmt.Fprintln(c.out, "No matches")
		return nil
	}
	for _, r := range res {
		text := r.Snippet
		if text == "" {
			text = r.Text
		}
		fmt.Fprintf(c.out, "page %d (%s): %s\n", r.PageIndex+1, r.PageName, text)
	}
	return nil
}

// openOptional opens args[1] when present and watches it for external edits.
func (c *cli) openOptional(args []string) error {
	if len(args) < 2 {
		return nil
	}
	if err := c.open(args[1]); err != nil {
		return err
	}
	return c.sess.Watch(c.ctx)
}

func (c *cli) serve(args []string) error {
	if err := c.openOptional(args); err != nil {
		return err
	}
	srv := server.New(c.sess, server.Options{
		Addr:                c.cfg.Server.Addr,
		ReadTimeout:         c.cfg.Server.ReadTimeout(),
		WriteTimeout:        c.cfg.Server.WriteTimeout(),
		MaintenanceSchedule: c.cfg.Server.MaintenanceSchedule,
		PreviewsMaxBytes:    c.cfg.Storage.PreviewsMaxBytes,
		SnapshotRetention:   c.cfg.Storage.SnapshotRetention,
		AuthSecret:          c.secret,
	})

	ctx, stop := signal.NotifyContext(c.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen() }()
	fmt.Fprintf(c.out, "Serving on http://%s\n", c.cfg.Server.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	c.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func (c *cli) mcp(args []string) error {
	// stdout carries the protocol; logs already go to stderr.
	if err := c.openOptional(args); err != nil {
		return err
	}
	return mcpserver.New(c.sess).ServeStdio()
}

func (c *cli) openRepo() (*backend.Repo, error) {
	dsn := c.cfg.Backend.DatabaseURL
	if dsn == "" {
		return nil, fmt.Errorf("no database configured; set %s or backend.database_url", config.EnvDatabaseURL)
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.Backend.Timeout())
	defer cancel()
	return backend.Open(ctx, backend.DSNWithPassword(dsn, c.secret))
}

func (c *cli) push(args []string) error {
	ph, err := storage.Open(args[1])
	if err != nil {
		return err
	}
	repo, err := c.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()
	v, err := repo.SaveProject(c.ctx, ph.Project)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Pushed %q (%s) as version %d\n", ph.Project.Name, ph.Project.ID, v)
	return nil
}

func (c *cli) pull(args []string) error {
	id, path := args[1], args[2]
	repo, err := c.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()
	p, err := repo.LoadProject(c.ctx, id)
	if err != nil {
		return err
	}
	ph, err := storage.Create(path, p)
	if err != nil {
		return err
	}
	if err := c.sess.Open(c.ctx, ph.Path); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Pulled %q to %s\n", p.Name, c.sess.ProjectPath())
	return nil
}

func (c *cli) projects([]string) error {
	repo, err := c.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()
	list, err := repo.ListProjects(c.ctx)
	if err != nil {
		return err
	}
	for _, p := range list {
		fmt.Fprintf(c.out, "%s\t%s\tv%d\t%d pages\t%s\n", p.ID, p.Name, p.Version, p.Pages, p.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func (c *cli) remote(args []string) error {
	cl := backend.NewClient(c.cfg.Backend, c.secret)
	switch args[1] {
	case "state":
		st, err := cl.State(c.ctx)
		if err != nil {
			return err
		}
		name := "(no project)"
		if st.Project != nil {
			name = st.Project.Name
		}
		fmt.Fprintf(c.out, "Project: %s\nPages: %d\nTool: %s\nZoom: %.2f\nUnsaved: %v\n",
			name, len(st.Pages), st.ActiveTool, st.Zoom, st.HasUnsavedChanges)
		return nil
	case "export":
		if len(args) < 3 {
			return usageError("remote export requires a format")
		}
		data, err := cl.Export(c.ctx, args[2])
		if err != nil {
			return err
		}
		dest := export.FileName("remote", args[2])
		if len(args) > 3 {
			dest = args[3]
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Exported %s (%d bytes)\n", dest, len(data))
		return nil
	}
	return usageError("remote requires state or export")
}

func (c *cli) config(args []string) error {
	switch args[1] {
	case "path":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, p)
	case "show":
		b, err := yaml.Marshal(c.cfg)
		if err != nil {
			return err
		}
		_, _ = c.out.Write(b)
	case "set-secret":
		if len(args) < 3 {
			return usageError("config set-secret requires a value")
		}
		return config.SetSecret(args[2])
	case "clear-secret":
		return config.DeleteSecret()
	default:
		return usageError("config requires path, show, set-secret or clear-secret")
	}
	return nil
}

func runUI(cfg config.AppConfig, args []string, stderr io.Writer) int {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if err := ui.Run(sessionOptions(cfg), path); err != nil {
		applog.WithComponent("cli").Error("ui failed", slog.Any("err", err))
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
