/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gowhiteboard/internal/domain"
)

// ErrSnapshotNotFound is returned when a snapshot id does not belong to the project.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// language=SQL
// dialect=SQLite
const (
	insertSnapshotSQL = `INSERT INTO snapshots(project_id, ts, blob) VALUES (?, ?, ?)`
	snapshotColumns   = `SELECT id, ts, blob FROM snapshots WHERE project_id = ?`
	newestFirst       = ` ORDER BY ts DESC, id DESC`
	pruneSnapshotsSQL = `DELETE FROM snapshots WHERE project_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE project_id = ?` + newestFirst + ` LIMIT ?)`
)

// Snapshot is a copy of the project taken on save and kept in the sidecar index.
type Snapshot struct {
	ID   int64
	TS   time.Time
	Blob []byte
}

// Project decodes the snapshot content.
func (s Snapshot) Project() (domain.Project, error) { return Decode(s.Blob) }

// withIndex opens the sidecar index of ph for the duration of fn.
func withIndex(ph *ProjectHandle, fn func(db *sql.DB) error) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanSnapshot(r rowScanner) (Snapshot, error) {
	var s Snapshot
	var ts string
	if err := r.Scan(&s.ID, &ts, &s.Blob); err != nil {
		return Snapshot{}, err
	}
	s.TS, _ = time.Parse(tsLayout, ts)
	return s, nil
}

// SaveSnapshot stores the project of ph, stamped with ts.
func SaveSnapshot(ctx context.Context, ph *ProjectHandle, ts time.Time) error {
	return withIndex(ph, func(db *sql.DB) error {
		blob, err := Encode(ph.Project)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, insertSnapshotSQL, ph.Project.ID, ts.UTC().Format(tsLayout), blob)
		return err
	})
}

// GetLatestSnapshot returns the newest snapshot of the project, or nil if there is none.
func GetLatestSnapshot(ctx context.Context, ph *ProjectHandle) (*Snapshot, error) {
	var out *Snapshot
	err := withIndex(ph, func(db *sql.DB) error {
		s, err := scanSnapshot(db.QueryRowContext(ctx, snapshotColumns+newestFirst+" LIMIT 1", ph.Project.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err == nil {
			out = &s
		}
		return err
	})
	return out, err
}

// GetSnapshot returns one snapshot of the project by id.
func GetSnapshot(ctx context.Context, ph *ProjectHandle, id int64) (Snapshot, error) {
	var out Snapshot
	err := withIndex(ph, func(db *sql.DB) error {
		s, err := scanSnapshot(db.QueryRowContext(ctx, snapshotColumns+" AND id = ?", ph.Project.ID, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrSnapshotNotFound, id)
		}
		out = s
		return err
	})
	return out, err
}

// ListSnapshots returns up to limit snapshots, newest first. A non-positive limit means 50.
func ListSnapshots(ctx context.Context, ph *ProjectHandle, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Snapshot
	err := withIndex(ph, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, snapshotColumns+newestFirst+" LIMIT ?", ph.Project.ID, limit)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			s, err := scanSnapshot(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

// PruneOldSnapshots deletes all but the keepLast newest snapshots and reports how many went.
func PruneOldSnapshots(ctx context.Context, ph *ProjectHandle, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	var n int64
	err := withIndex(ph, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, pruneSnapshotsSQL, ph.Project.ID, ph.Project.ID, keepLast)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
