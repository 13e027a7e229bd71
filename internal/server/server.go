/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes a session over HTTP for the browser front end.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/robfig/cron/v3"

	"gowhiteboard/internal/backend"
	"gowhiteboard/internal/domain"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/session"
	"gowhiteboard/internal/storage"
	"gowhiteboard/internal/version"
)

// Options configures the HTTP server. Zero values select defaults.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AccessLog enables the fiber request log on stdout.
	AccessLog bool
	// MaintenanceSchedule is a cron spec; empty disables maintenance.
	MaintenanceSchedule string
	PreviewsMaxBytes    int64
	SnapshotRetention   int
	// AuthSecret, when set, requires a signed bearer token on /api routes.
	AuthSecret string
}

// Server is the fiber app bound to one session.
type Server struct {
	app  *fiber.App
	sess *session.Session
	opts Options
	log  *slog.Logger
	cron *cron.Cron
}

// New builds the app and its routes. Nothing listens until Listen.
func New(sess *session.Session, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8080"
	}
	s := &Server{sess: sess, opts: opts, log: applog.WithComponent("server")}
	s.app = fiber.New(fiber.Config{
		AppName:      "GoWhiteboard " + version.String(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		BodyLimit:    int(storage.MaxImportBytes) + 1<<20,
		ErrorHandler: s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(s.requestLog)
	if opts.AccessLog {
		s.app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	s.app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	s.app.Get("/health/ready", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready", "version": version.String()})
	})
	api := s.app.Group("/api")
	if opts.AuthSecret != "" {
		api.Use(s.requireToken)
	}
	s.routes(api)
	return s
}

// App returns the fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen starts the maintenance scheduler and serves until Shutdown.
func (s *Server) Listen() error {
	if err := s.startMaintenance(); err != nil {
		return err
	}
	s.log.Info("listening", slog.String("addr", s.opts.Addr))
	return s.app.Listen(s.opts.Addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the scheduler and drains open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLog(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug("request",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Int("status", c.Response().StatusCode()),
		slog.Duration("latency", time.Since(start)))
	return err
}

// handleError renders every error as {"error": msg} with a status derived
// from the domain error it wraps.
func (s *Server) requireToken(c fiber.Ctx) error {
	sub, err := backend.BearerSubject(s.opts.AuthSecret, c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	c.Locals("subject", sub)
	return c.Next()
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", slog.String("path", c.Path()), slog.Any("err", err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrPageNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrNoProject),
		errors.Is(err, domain.ErrNoCanvas),
		errors.Is(err, domain.ErrLastPage),
		errors.Is(err, domain.ErrLoadInProgress):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrEmptyProjectName),
		errors.Is(err, domain.ErrMalformedProject),
		errors.Is(err, domain.ErrUnsupportedFileType),
		errors.Is(err, domain.ErrImportNotSupportedYet),
		errors.Is(err, domain.ErrImageTooLarge),
		errors.Is(err, domain.ErrUnknownTool):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func badRequest(err error) error { return fiber.NewError(fiber.StatusBadRequest, err.Error()) }
