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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
	applog "gowhiteboard/internal/log"
	"gowhiteboard/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2

	// tsLayout is fixed width so that stored timestamps sort as text.
	tsLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// IndexPath returns the index database used for the project file at projectPath.
func IndexPath(projectPath string) string {
	return filepath.Join(SidecarDir(projectPath), IndexFileName)
}

// InitOrOpenIndex ensures that the sidecar SQLite index exists, opens it, enables WAL mode
// and brings the schema up to date. Callers close the returned database.
func InitOrOpenIndex(projectPath string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("project", projectPath),
	)
	if strings.TrimSpace(projectPath) == "" {
		return nil, errors.New("project path is required")
	}
	if err := os.MkdirAll(SidecarDir(projectPath), 0o755); err != nil {
		l.Error("create sidecar dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", SidecarDirName, err)
	}

	path := IndexPath(projectPath)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A fresh database starts at version 1 and is migrated forward like any other.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the schema version recorded in an open index.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return cur, nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	cur, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if cur > schemaVersion {
		// Written by a newer build; never downgrade.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_page_text_project ON page_text(project_id, page_index);`,
				`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per text object on a page.
		`CREATE TABLE IF NOT EXISTS page_text (
			doc_id      INTEGER PRIMARY KEY,
			project_id  TEXT    NOT NULL,
			page_id     TEXT    NOT NULL,
			page_index  INTEGER NOT NULL,
			page_name   TEXT    NOT NULL,
			object_id   TEXT    NOT NULL,
			text        TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_page_text_page ON page_text(page_id);`,

		// External-content FTS5 index over page_text, kept in sync by triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_page_text USING fts5(
			text,
			content='page_text',
			content_rowid='doc_id',
			tokenize = 'unicode61'
		);`,

		// Thumbnail cache keyed by page content.
		`CREATE TABLE IF NOT EXISTS previews (
			id          INTEGER PRIMARY KEY,
			page_id     TEXT    NOT NULL,
			hash        TEXT    NOT NULL,
			w           INTEGER NOT NULL DEFAULT 0,
			h           INTEGER NOT NULL DEFAULT 0,
			blob        BLOB    NOT NULL,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT    NOT NULL,
			last_access TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_variant ON previews(page_id, hash, w, h);`,

		// Project copies taken on explicit saves.
		`CREATE TABLE IF NOT EXISTS snapshots (
			id          INTEGER PRIMARY KEY,
			project_id  TEXT    NOT NULL,
			ts          TEXT    NOT NULL,
			blob        BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_project_ts ON snapshots(project_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS page_text_ai AFTER INSERT ON page_text BEGIN
			INSERT INTO fts_page_text(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS page_text_ad AFTER DELETE ON page_text BEGIN
			INSERT INTO fts_page_text(fts_page_text, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS page_text_au AFTER UPDATE OF text ON page_text BEGIN
			INSERT INTO fts_page_text(fts_page_text, rowid, text) VALUES ('delete', old.doc_id, old.text);
			INSERT INTO fts_page_text(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, projectPath string, proj domain.Project) (bool, error) {
	path := IndexPath(projectPath)
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		backupIndexFile(path)
		removeIndexFiles(path)
		if rbErr := RebuildIndex(ctx, projectPath, proj); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM page_text LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	removeIndexFiles(path)
	if err := RebuildIndex(ctx, projectPath, proj); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into the sidecar backups folder.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), time.Now().Format(backupStamp)))
	_ = copyFile(indexPath, bak)
}

func removeIndexFiles(indexPath string) {
	for _, p := range []string{indexPath, indexPath + "-wal", indexPath + "-shm"} {
		_ = os.Remove(p)
	}
}

// BuildIndexIfEmpty populates the text index from proj when it holds no rows for the project yet.
func BuildIndexIfEmpty(ctx context.Context, projectPath string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM page_text WHERE project_id=?;", proj.ID).Scan(&cnt); err != nil {
		return fmt.Errorf("check page_text count: %w", err)
	}
	if cnt > 0 {
		return nil
	}
	return rebuildPageText(ctx, db, proj)
}

// UpdateIndex replaces the indexed text of proj with its current content.
func UpdateIndex(ctx context.Context, projectPath string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildPageText(ctx, db, proj)
}

// RebuildIndex drops and recreates the derived tables and refills the text index from proj.
// Meta/version tables are kept.
func RebuildIndex(ctx context.Context, projectPath string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS previews;",
		"DROP TRIGGER IF EXISTS page_text_ai;",
		"DROP TRIGGER IF EXISTS page_text_ad;",
		"DROP TRIGGER IF EXISTS page_text_au;",
		"DROP TABLE IF EXISTS page_text;",
		"DROP TABLE IF EXISTS fts_page_text;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildPageText(ctx, db, proj)
}

// rebuildPageText replaces the page_text rows of proj. Pages whose data does not decode are
// skipped.
// TextEntry is one non-blank text object of a project.
type TextEntry struct {
	PageID    string
	PageIndex int
	PageName  string
	ObjectID  string
	Text      string
}

// ExtractText lists the text objects of every decodable page in page order.
func ExtractText(proj domain.Project) []TextEntry {
	var out []TextEntry
	for i, pg := range proj.Pages {
		doc, err := drawing.Decode(pg.Data)
		if err != nil {
			applog.WithComponent("storage").Warn("skip undecodable page", slog.String("page", pg.ID), slog.Any("err", err))
			continue
		}
		for _, o := range doc.Objects {
			if o.Kind != drawing.KindText {
				continue
			}
			if s := strings.TrimSpace(o.Text); s != "" {
				out = append(out, TextEntry{PageID: pg.ID, PageIndex: i, PageName: pg.Name, ObjectID: o.ID, Text: s})
			}
		}
	}
	return out
}

func rebuildPageText(ctx context.Context, db *sql.DB, proj domain.Project) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_text")
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM page_text WHERE project_id=?`, proj.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear page_text: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO page_text(project_id, page_id, page_index, page_name, object_id, text) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	entries := ExtractText(proj)
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, proj.ID, e.PageID, e.PageIndex, e.PageName, e.ObjectID, e.Text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert page_text: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit page_text: %w", err)
	}
	l.Debug("text index updated", slog.String("project", proj.ID), slog.Int("rows", len(entries)))
	return nil
}
