/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gowhiteboard/internal/domain"
	"gowhiteboard/internal/drawing"
)

const (
	// SidecarDirName holds derived data next to the project file.
	SidecarDirName = ".whiteboard"
	BackupsDirName = "backups"
	// FileExt is the default extension of project files.
	FileExt = ".json"

	backupStamp = "20060102-150405.000"
)

// ProjectHandle keeps track of a project file loaded from or saved to disk.
type ProjectHandle struct {
	Path    string
	Project domain.Project
}

// Dir returns the directory containing the project file.
func (ph *ProjectHandle) Dir() string { return filepath.Dir(ph.Path) }

// SidecarDir returns <dir>/.whiteboard for the project file at path.
func SidecarDir(path string) string {
	return filepath.Join(filepath.Dir(path), SidecarDirName)
}

// BackupsDir returns the directory holding timestamped copies of the project file.
func BackupsDir(path string) string {
	return filepath.Join(SidecarDir(path), BackupsDirName)
}

// Create writes proj to path, creating parent directories. An existing file is backed up
// like on every other save.
func Create(path string, proj domain.Project) (*ProjectHandle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("project path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create project dir: %w", err)
	}
	ph := &ProjectHandle{Path: path, Project: proj}
	if err := Save(ph); err != nil {
		return nil, err
	}
	return ph, nil
}

// Open reads and validates the project file at path. Unlike the loader of older
// versions it never falls back to a backup silently; use OpenLatestBackup for that.
func Open(path string) (*ProjectHandle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	p, err := Decode(b)
	if err != nil {
		return nil, err
	}
	return &ProjectHandle{Path: path, Project: p}, nil
}

// OpenLatestBackup loads the newest backup of the project file at path. The handle keeps
// pointing at path so that the next save replaces the damaged file.
func OpenLatestBackup(path string) (*ProjectHandle, error) {
	backups, err := ListBackups(path)
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, errors.New("no backups found")
	}
	latest := backups[len(backups)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	p, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("parse latest backup %s: %w", filepath.Base(latest), err)
	}
	return &ProjectHandle{Path: path, Project: p}, nil
}

// ListBackups returns the backup files of the project at path, oldest first.
func ListBackups(path string) ([]string, error) {
	bdir := BackupsDir(path)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// Save writes ph.Project transactionally and keeps a timestamped backup of the previous
// file (if present).
func Save(ph *ProjectHandle) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if ph.Path == "" {
		return errors.New("invalid ProjectHandle: missing path")
	}
	data, err := Encode(ph.Project)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(ph.Path); statErr == nil {
		bdir := BackupsDir(ph.Path)
		if err := os.MkdirAll(bdir, 0o755); err != nil {
			return fmt.Errorf("ensure backups dir: %w", err)
		}
		bname := fmt.Sprintf("%s.%s.bak", filepath.Base(ph.Path), time.Now().Format(backupStamp))
		if cerr := copyFile(ph.Path, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current project: %w", cerr)
		}
	}
	return replaceFile(ph.Path, data)
}

// SaveAs writes the project to a new path and updates the handle.
func SaveAs(ph *ProjectHandle, newPath string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if strings.TrimSpace(newPath) == "" {
		return errors.New("new path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	ph.Path = newPath
	return Save(ph)
}

// Encode serializes a project as indented JSON with a trailing newline.
func Encode(p domain.Project) ([]byte, error) {
	if p.Pages == nil {
		p.Pages = []domain.Page{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal project: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and validates a project file. Every failure wraps
// domain.ErrMalformedProject.
func Decode(data []byte) (domain.Project, error) {
	var p domain.Project
	if err := ValidateProject(data); err != nil {
		return p, fmt.Errorf("%w: %v", domain.ErrMalformedProject, err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", domain.ErrMalformedProject, err)
	}
	seen := make(map[string]bool, len(p.Pages))
	for _, pg := range p.Pages {
		if seen[pg.ID] {
			return domain.Project{}, fmt.Errorf("%w: duplicate page id %q", domain.ErrMalformedProject, pg.ID)
		}
		seen[pg.ID] = true
		if pg.Data == "" {
			continue
		}
		if err := drawing.Validate([]byte(pg.Data)); err != nil {
			return domain.Project{}, fmt.Errorf("%w: page %q: %v", domain.ErrMalformedProject, pg.ID, err)
		}
	}
	return p, nil
}

// ReadProject decodes a project from r.
func ReadProject(r io.Reader) (domain.Project, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", domain.ErrMalformedProject, err)
	}
	return Decode(b)
}

// AutosaveCrashSnapshot writes p next to the backups of path, named after the crash time.
// It returns the written file.
func AutosaveCrashSnapshot(path string, p domain.Project) (string, error) {
	data, err := Encode(p)
	if err != nil {
		return "", err
	}
	dir := SidecarDir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure sidecar dir: %w", err)
	}
	name := fmt.Sprintf("%s.crash-%s.json", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), time.Now().Format(backupStamp))
	out := filepath.Join(dir, name)
	if err := writeFileSync(out, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return out, nil
}

// SafeFileName turns a project name into a file name stem. Empty names
// become "whiteboard".
func SafeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "whiteboard"
	}
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name)
}

// replaceFile writes data to a temp file in the same directory and renames it over path.
func replaceFile(path string, data []byte) error {
	temp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp project: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace project: %w", rerr)
	}
	return nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
