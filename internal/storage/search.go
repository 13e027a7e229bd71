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
	"strings"
)

// SearchQuery describes a text search over the pages of one project.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT); use
// PhraseQuery to search for literal user input. PageID optionally restricts to one page.
// Limit/Offset implement pagination; defaults apply if zero.
type SearchQuery struct {
	ProjectID string
	Text      string
	PageID    string
	Limit     int
	Offset    int
}

// SearchResult is one matching text object.
// Snippet highlights the match with [ ] markers when FTS text is used.
type SearchResult struct {
	DocID     int64  `json:"-"`
	PageID    string `json:"pageId"`
	PageIndex int    `json:"pageIndex"`
	PageName  string `json:"pageName"`
	ObjectID  string `json:"objectId"`
	Text      string `json:"text"`
	Snippet   string `json:"snippet,omitempty"`
}

// Search performs full-text search over the sidecar index of the project file at projectPath.
// When q.Text is empty it lists all indexed text objects.
func Search(ctx context.Context, projectPath string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(projectPath) == "" {
		return nil, errors.New("project path is required")
	}
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT d.doc_id, d.page_id, d.page_index, d.page_name, d.object_id, d.text, snippet(fts_page_text, 0, '[', ']', '...', 10)\n")
		sb.WriteString("FROM fts_page_text JOIN page_text d ON fts_page_text.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_page_text MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.page_id, d.page_index, d.page_name, d.object_id, d.text, ''\n")
		sb.WriteString("FROM page_text d\nWHERE 1=1\n")
	}
	if q.ProjectID != "" {
		sb.WriteString(" AND d.project_id = ?\n")
		args = append(args, q.ProjectID)
	}
	if q.PageID != "" {
		sb.WriteString(" AND d.page_id = ?\n")
		args = append(args, q.PageID)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	sb.WriteString("ORDER BY d.page_index, d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.PageID, &r.PageIndex, &r.PageName, &r.ObjectID, &r.Text, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// PhraseQuery turns free text into an FTS5 query matching every word as a literal token.
func PhraseQuery(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
