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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDetectAndRebuildIndex_OnCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	proj := testProject(t, "CorruptTest")
	if _, err := Create(path, proj); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := BuildIndexIfEmpty(ctx, path, proj); err != nil {
		t.Fatalf("BuildIndexIfEmpty: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(ctx, path, proj)
	if err != nil || rebuilt {
		t.Fatalf("healthy index should not be rebuilt: %v %v", rebuilt, err)
	}
	removeIndexFiles(IndexPath(path))
	if err := os.WriteFile(IndexPath(path), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	rebuilt, err = DetectAndRebuildIndex(ctx, path, proj)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	res, err := Search(ctx, path, SearchQuery{Text: "hello"})
	if err != nil || len(res) != 1 {
		t.Fatalf("rebuilt index should be searchable: %d %v", len(res), err)
	}
	bdir := filepath.Join(SidecarDir(path), BackupsDirName)
	entries, _ := os.ReadDir(bdir)
	if len(entries) == 0 {
		t.Fatalf("expected backup file in %s", bdir)
	}
}
