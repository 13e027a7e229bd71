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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gowhiteboard/internal/config"
	"gowhiteboard/internal/crash"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/session"
	"gowhiteboard/internal/telemetry"
	"gowhiteboard/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "GoWhiteboard")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: gowhiteboard [--debug] <command> [args]")
	fmt.Fprintln(w, "  gowhiteboard version|-v|--version             Show version")
	fmt.Fprintln(w, "  gowhiteboard new <file> <name>                Create a project file with one blank page")
	fmt.Fprintln(w, "  gowhiteboard info <file>                      Print a project summary")
	fmt.Fprintln(w, "  gowhiteboard pages <file>                     List pages")
	fmt.Fprintln(w, "  gowhiteboard export <file> png|svg|pdf [out]  Export the first page (png, svg) or all pages (pdf)")
	fmt.Fprintln(w, "  gowhiteboard import-image <file> <image>      Place an image on the first page and save")
	fmt.Fprintln(w, "  gowhiteboard recover <file>                   Restore the project from its latest backup")
	fmt.Fprintln(w, "  gowhiteboard snapshots <file>                 List snapshots kept in the sidecar index")
	fmt.Fprintln(w, "  gowhiteboard restore-snapshot <file> <id>     Restore a snapshot and save")
	fmt.Fprintln(w, "  gowhiteboard search <file> <text>             Find text objects")
	fmt.Fprintln(w, "  gowhiteboard serve [<file>]                   Serve the HTTP API")
	fmt.Fprintln(w, "  gowhiteboard mcp [<file>]                     Serve MCP tools on stdio")
	fmt.Fprintln(w, "  gowhiteboard push <file>                      Store the project in the Postgres repository")
	fmt.Fprintln(w, "  gowhiteboard pull <id> <file>                 Fetch a project from the repository")
	fmt.Fprintln(w, "  gowhiteboard projects                         List projects in the repository")
	fmt.Fprintln(w, "  gowhiteboard remote state|export <fmt> [out]  Query a running server")
	fmt.Fprintln(w, "  gowhiteboard config path|show|set-secret <v>|clear-secret")
	fmt.Fprintln(w, "  gowhiteboard ui [<file>]                      Launch desktop UI (build with -tags fyne)")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries what every command needs.
type cli struct {
	ctx    context.Context
	cfg    config.AppConfig
	secret string
	sess   *session.Session
	log    *slog.Logger
	out    io.Writer
	errOut io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, secret, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		AddSource:  cfg.Logging.Source,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Writer:     stderr,
	})
	defer applog.Close()
	if len(args) > 0 && args[0] == "--debug" {
		applog.SetLevel("debug")
		args = args[1:]
	}
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}

	tc := telemetry.New(telemetry.FromEnv())
	telemetry.SetDefault(tc)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		tc.Flush(ctx)
		tc.Close()
	}()

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	cmd := args[0]
	l.Debug("start", slog.String("cmd", cmd), slog.Int("args", len(args)))
	if cmd == "ui" {
		return runUI(cfg, args[1:], stderr)
	}

	sess := session.New(sessionOptions(cfg))
	defer sess.Close()
	defer crash.Recover(sess)

	c := &cli{ctx: context.Background(), cfg: cfg, secret: secret, sess: sess, log: l, out: stdout, errOut: stderr}
	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, "GoWhiteboard")
		fmt.Fprintln(stdout, version.String())
	case "help", "--help", "-h":
		usage(stdout)
	case "new":
		err = c.need(args, 3, "new requires <file> and <name>", c.newProject)
	case "info":
		err = c.need(args, 2, "info requires <file>", c.info)
	case "pages":
		err = c.need(args, 2, "pages requires <file>", c.pages)
	case "export":
		err = c.need(args, 3, "export requires <file> and a format", c.export)
	case "import-image":
		err = c.need(args, 3, "import-image requires <file> and <image>", c.importImage)
	case "recover":
		err = c.need(args, 2, "recover requires <file>", c.recoverProject)
	case "snapshots":
		err = c.need(args, 2, "snapshots requires <file>", c.snapshots)
	case "restore-snapshot":
		err = c.need(args, 3, "restore-snapshot requires <file> and <id>", c.restoreSnapshot)
	case "search":
		err = c.need(args, 3, "search requires <file> and <text>", c.search)
	case "serve":
		err = c.serve(args)
	case "mcp":
		err = c.mcp(args)
	case "push":
		err = c.need(args, 2, "push requires <file>", c.push)
	case "pull":
		err = c.need(args, 3, "pull requires <id> and <file>", c.pull)
	case "projects":
		err = c.projects(args)
	case "remote":
		err = c.need(args, 2, "remote requires state or export", c.remote)
	case "config":
		err = c.need(args, 2, "config requires path, show, set-secret or clear-secret", c.config)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return 2
	}
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(stderr, string(ue))
			usage(stderr)
			return 2
		}
		l.Error("command failed", slog.String("cmd", cmd), slog.Any("err", err))
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

// need checks the argument count before running fn.
func (c *cli) need(args []string, n int, msg string, fn func([]string) error) error {
	if len(args) < n {
		return usageError(msg)
	}
	return fn(args)
}

func sessionOptions(cfg config.AppConfig) session.Options {
	return session.Options{
		Width:             cfg.Canvas.Width,
		Height:            cfg.Canvas.Height,
		Background:        cfg.Canvas.Background,
		ThumbnailScale:    cfg.Canvas.ThumbnailScale,
		SnapshotRetention: cfg.Storage.SnapshotRetention,
	}
}
