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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPreviewsMaxBytes caps the thumbnail cache when nothing else is configured.
const DefaultPreviewsMaxBytes = 64 * 1024 * 1024

// ContentHash returns the cache key for a page's serialized data.
func ContentHash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// GetPreview returns the cached thumbnail for a page variant and updates last_access.
// It returns nil, nil on a cache miss.
func GetPreview(ctx context.Context, projectPath, pageID, hash string, w, h int) ([]byte, error) {
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT blob FROM previews WHERE page_id=? AND hash=? AND w=? AND h=?`, pageID, hash, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	now := time.Now().UTC().Format(tsLayout)
	_, _ = db.ExecContext(ctx, `UPDATE previews SET last_access=? WHERE page_id=? AND hash=? AND w=? AND h=?`, now, pageID, hash, w, h)
	return blob, nil
}

// PutPreview stores a thumbnail, drops stale variants of the same page and enforces the cache
// size cap via LRU eviction.
func PutPreview(ctx context.Context, projectPath, pageID, hash string, w, h int, blob []byte) error {
	if len(blob) == 0 {
		return errors.New("empty preview blob")
	}
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		return err
	}
	defer db.Close()
	now := time.Now().UTC().Format(tsLayout)
	if _, err := db.ExecContext(ctx, `DELETE FROM previews WHERE page_id=? AND hash<>?`, pageID, hash); err != nil {
		return fmt.Errorf("drop stale previews: %w", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO previews(page_id,hash,w,h,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(page_id,hash,w,h) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		pageID, hash, w, h, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if capBytes := MaxPreviewsBytesFromEnv(); capBytes > 0 {
		if err := EvictPreviewsToFit(ctx, db, capBytes); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreatePreview fetches a preview or generates and stores it using gen.
func GetOrCreatePreview(ctx context.Context, projectPath, pageID, hash string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := GetPreview(ctx, projectPath, pageID, hash, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := PutPreview(ctx, projectPath, pageID, hash, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// EvictPreviewsToFit deletes least-recently-used rows until total size <= capBytes.
func EvictPreviewsToFit(ctx context.Context, db *sql.DB, capBytes int64) error {
	_, err := evictPreviews(ctx, db, capBytes)
	return err
}

func evictPreviews(ctx context.Context, db *sql.DB, capBytes int64) (int, error) {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews size: %w", err)
	}
	if total <= capBytes {
		return 0, nil
	}
	// Oldest access first; rows never read go before everything else.
	rows, err := db.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, id ASC`)
	if err != nil {
		return 0, fmt.Errorf("select victims: %w", err)
	}
	victims := make([]any, 0, 32)
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return 0, err
		}
		victims = append(victims, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	// Close the cursor before writing; the pool has a single connection.
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if len(victims) == 0 {
		return 0, nil
	}
	q := `DELETE FROM previews WHERE id IN (` + placeholders(len(victims)) + `)`
	if _, err := db.ExecContext(ctx, q, victims...); err != nil {
		return 0, fmt.Errorf("evict delete: %w", err)
	}
	return len(victims), nil
}

// EvictPreviews trims the preview cache of the project at projectPath to capBytes and
// returns the number of rows removed.
func EvictPreviews(ctx context.Context, projectPath string, capBytes int64) (int, error) {
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return evictPreviews(ctx, db, capBytes)
}

// TotalPreviewBytes returns total bytes tracked by previews.size.
func TotalPreviewBytes(ctx context.Context, projectPath string) (int64, error) {
	db, err := InitOrOpenIndex(projectPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MaxPreviewsBytesFromEnv reads GWB_PREVIEWS_MAX_BYTES, defaulting to DefaultPreviewsMaxBytes.
func MaxPreviewsBytesFromEnv() int64 {
	v := strings.TrimSpace(os.Getenv("GWB_PREVIEWS_MAX_BYTES"))
	if v == "" {
		return DefaultPreviewsMaxBytes
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return DefaultPreviewsMaxBytes
	}
	return n
}
