/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func isolate(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)
	return dir
}

func TestEnvOverridesBackendURL(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
	if env, ok := EnvOverrideFor("backend.base_url"); !ok || env != EnvBackendURL {
		t.Fatalf("EnvOverrideFor = %q %v", env, ok)
	}
	if _, ok := EnvOverrideFor("canvas.width"); ok {
		t.Fatalf("canvas.width should not be overridden")
	}
}

func TestEnvOverridesCanvasAndStorage(t *testing.T) {
	isolate(t)
	t.Setenv(EnvCanvasWidth, "1024")
	t.Setenv(EnvCanvasHeight, "oops")
	t.Setenv(EnvSnapshotKeep, "5")
	t.Setenv(EnvMaintenance, "@hourly")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Canvas.Width != 1024 || cfg.Canvas.Height != 800 {
		t.Fatalf("canvas = %+v", cfg.Canvas)
	}
	if cfg.Storage.SnapshotRetention != 5 || cfg.Server.MaintenanceSchedule != "@hourly" {
		t.Fatalf("storage/server = %+v %+v", cfg.Storage, cfg.Server)
	}
}

func TestSaveAndLoadRoundTripWithSecret(t *testing.T) {
	dir := isolate(t)
	cfg := Defaults()
	cfg.Canvas.Background = "#222222"
	cfg.Backend.DatabaseURL = "postgres://wb@localhost/wb"
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	got, secret, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Canvas.Background != "#222222" || got.Backend.DatabaseURL != cfg.Backend.DatabaseURL {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if secret != "s3cret" {
		t.Fatalf("secret = %q", secret)
	}
	if err := DeleteSecret(); err != nil {
		t.Fatalf("DeleteSecret: %v", err)
	}
	if _, err := GetSecret(); err != ErrNoSecret {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("canvas: [1,"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/gwb.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/gwb.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/gwb.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/gwb.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestTimeouts(t *testing.T) {
	if d := (BackendConfig{}).Timeout(); d.Milliseconds() != 15000 {
		t.Fatalf("default timeout = %v", d)
	}
	if d := Defaults().Server.ReadTimeout(); d.Seconds() != 15 {
		t.Fatalf("read timeout = %v", d)
	}
}
