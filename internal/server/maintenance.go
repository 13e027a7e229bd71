/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"gowhiteboard/internal/storage"
)

// MaintenanceReport summarizes one maintenance run.
type MaintenanceReport struct {
	Skipped          bool
	IndexRebuilt     bool
	SnapshotsPruned  int64
	PreviewsEvicted  int
	PreviewBytesLeft int64
}

func (s *Server) startMaintenance() error {
	if s.opts.MaintenanceSchedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.opts.MaintenanceSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.RunMaintenance(ctx); err != nil {
			s.log.Warn("maintenance failed", slog.Any("err", err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", s.opts.MaintenanceSchedule, err)
	}
	c.Start()
	s.cron = c
	s.log.Info("maintenance scheduled", slog.String("schedule", s.opts.MaintenanceSchedule))
	return nil
}

// RunMaintenance checks the sidecar index of the bound project, prunes old
// snapshots and evicts previews beyond the size cap. Sessions without a
// saved project are skipped.
func (s *Server) RunMaintenance(ctx context.Context) (MaintenanceReport, error) {
	var rep MaintenanceReport
	path := s.sess.ProjectPath()
	proj := s.sess.State().Project
	if path == "" || proj == nil {
		rep.Skipped = true
		return rep, nil
	}
	rebuilt, err := storage.DetectAndRebuildIndex(ctx, path, *proj)
	if err != nil {
		return rep, fmt.Errorf("check index: %w", err)
	}
	rep.IndexRebuilt = rebuilt
	if s.opts.SnapshotRetention > 0 {
		ph := &storage.ProjectHandle{Path: path, Project: *proj}
		if rep.SnapshotsPruned, err = storage.PruneOldSnapshots(ctx, ph, s.opts.SnapshotRetention); err != nil {
			return rep, fmt.Errorf("prune snapshots: %w", err)
		}
	}
	limit := s.opts.PreviewsMaxBytes
	if limit <= 0 {
		limit = storage.MaxPreviewsBytesFromEnv()
	}
	if rep.PreviewsEvicted, err = storage.EvictPreviews(ctx, path, limit); err != nil {
		return rep, fmt.Errorf("evict previews: %w", err)
	}
	if rep.PreviewBytesLeft, err = storage.TotalPreviewBytes(ctx, path); err != nil {
		return rep, err
	}
	s.log.Info("maintenance done",
		slog.Bool("index_rebuilt", rep.IndexRebuilt),
		slog.Int64("snapshots_pruned", rep.SnapshotsPruned),
		slog.Int("previews_evicted", rep.PreviewsEvicted))
	return rep, nil
}
