/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/storage"
)

// ErrProjectNotFound is returned when no project has the requested id.
var ErrProjectNotFound = errors.New("project not found in repository")

// ProjectSummary is the listing projection of a stored project.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Pages     int       `json:"pages"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveProject upserts the whole project keyed by its id, bumps the stored
// version and replaces its searchable text. It returns the new version.
func (r *Repo) SaveProject(ctx context.Context, p domain.Project) (int64, error) {
	if p.ID == "" {
		return 0, domain.ErrNoProject
	}
	doc, err := storage.Encode(p)
	if err != nil {
		return 0, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		rowID   int64
		version int64
	)
	err = tx.QueryRowContext(ctx, `INSERT INTO projects(stable_id, name, document, page_count)
		VALUES($1, $2, $3::jsonb, $4)
		ON CONFLICT (stable_id) DO UPDATE SET
			name = EXCLUDED.name,
			document = EXCLUDED.document,
			page_count = EXCLUDED.page_count,
			version = projects.version + 1,
			updated_at = now()
		RETURNING id, version`, p.ID, p.Name, string(doc), len(p.Pages)).Scan(&rowID, &version)
	if err != nil {
		return 0, fmt.Errorf("upsert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE project_id = $1`, rowID); err != nil {
		return 0, fmt.Errorf("clear documents: %w", err)
	}
	entries := storage.ExtractText(p)
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents(project_id, page_id, page_num, page_name, object_id, raw_text)
			VALUES($1, $2, $3, $4, $5, $6)`, rowID, e.PageID, e.PageIndex, e.PageName, e.ObjectID, e.Text); err != nil {
			return 0, fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.log.Info("project pushed",
		slog.String("project", p.ID),
		slog.Int64("version", version),
		slog.Int("texts", len(entries)))
	return version, nil
}

// LoadProject returns the stored project with the given id.
func (r *Repo) LoadProject(ctx context.Context, id string) (domain.Project, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `SELECT document FROM projects WHERE stable_id = $1`, id).Scan(&doc)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	case err != nil:
		return domain.Project{}, fmt.Errorf("select project: %w", err)
	}
	return storage.Decode(doc)
}

// ListProjects returns stored projects, most recently updated first.
func (r *Repo) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT stable_id, name, page_count, version, updated_at FROM projects ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []ProjectSummary
	for rows.Next() {
		var s ProjectSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Pages, &s.Version, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Search runs a full-text query over the stored text of a project. Results
// use the same shape as the local sidecar index.
func (r *Repo) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	text := strings.TrimSpace(q.Text)

	b.WriteString("SELECT d.id, d.page_id, d.page_num, d.page_name, d.object_id, d.raw_text, ")
	if text != "" {
		tq := place(text)
		b.WriteString("COALESCE(ts_headline('simple', d.raw_text, plainto_tsquery('simple', " + tq + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM documents d JOIN projects p ON p.id = d.project_id ")
		b.WriteString("WHERE d.search_vector @@ plainto_tsquery('simple', " + tq + ") ")
	} else {
		b.WriteString("'' FROM documents d JOIN projects p ON p.id = d.project_id WHERE TRUE ")
	}
	if q.ProjectID != "" {
		b.WriteString("AND p.stable_id = " + place(q.ProjectID) + " ")
	}
	if q.PageID != "" {
		b.WriteString("AND d.page_id = " + place(q.PageID) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	b.WriteString("ORDER BY d.page_num, d.id ")
	b.WriteString("LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var res storage.SearchResult
		if err := rows.Scan(&res.DocID, &res.PageID, &res.PageIndex, &res.PageName, &res.ObjectID, &res.Text, &res.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
