/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Server        ServerConfig  `yaml:"server"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

type GeneralConfig struct {
	Theme       string `yaml:"theme"` // "system" | "light" | "dark"
	LastProject string `yaml:"last_project"`
}

// CanvasConfig sizes the drawing surface and its thumbnails.
type CanvasConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	Background     string  `yaml:"background"`
	ThumbnailScale float64 `yaml:"thumbnail_scale"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
	// MaintenanceSchedule is a cron spec for snapshot pruning and preview eviction.
	MaintenanceSchedule string `yaml:"maintenance_schedule"`
}

type StorageConfig struct {
	PreviewsMaxBytes  int64 `yaml:"previews_max_bytes"`
	SnapshotRetention int   `yaml:"snapshot_retention"`
}

// BackendConfig points at the remote project repository and at a running whiteboard server.
// The database password is not stored on disk; it lives in the OS keychain.
type BackendConfig struct {
	DatabaseURL string `yaml:"database_url"`
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
	// Rotation of File; zero keeps the logger defaults.
	MaxSizeMB  int `yaml:"max_size_mb,omitempty"`
	MaxBackups int `yaml:"max_backups,omitempty"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "system"},
		Canvas:        CanvasConfig{Width: 1280, Height: 800, Background: "#ffffff", ThumbnailScale: 0.2},
		Server:        ServerConfig{Addr: "127.0.0.1:8080", ReadTimeoutMs: 15000, WriteTimeoutMs: 30000, MaintenanceSchedule: "@every 10m"},
		Storage:       StorageConfig{PreviewsMaxBytes: 64 << 20, SnapshotRetention: 20},
		Backend:       BackendConfig{BaseURL: "http://127.0.0.1:8080", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir        = "GWB_CONFIG_DIR"
	EnvCanvasWidth      = "GWB_CANVAS_WIDTH"
	EnvCanvasHeight     = "GWB_CANVAS_HEIGHT"
	EnvCanvasBackground = "GWB_CANVAS_BACKGROUND"
	EnvServerAddr       = "GWB_SERVER_ADDR"
	EnvMaintenance      = "GWB_MAINTENANCE_SCHEDULE"
	EnvPreviewsMaxBytes = "GWB_PREVIEWS_MAX_BYTES"
	EnvSnapshotKeep     = "GWB_SNAPSHOT_RETENTION"
	EnvDatabaseURL      = "GWB_DATABASE_URL"
	EnvBackendURL       = "GWB_BACKEND_URL"
	EnvBackendTimeoutMs = "GWB_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "GWB_TLS_INSECURE"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GWB_LOG_LEVEL"
	EnvLogFormat = "GWB_LOG_FORMAT"
	EnvLogSource = "GWB_LOG_SOURCE"
	EnvLogFile   = "GWB_LOG_FILE"
	EnvLogMaxMB  = "GWB_LOG_MAX_SIZE_MB"
	EnvLogMaxBak = "GWB_LOG_MAX_BACKUPS"
)

// ConfigPath returns the per-user config file path. GWB_CONFIG_DIR replaces the OS default.
func ConfigPath() (string, error) {
	base := os.Getenv(EnvConfigDir)
	if base == "" {
		switch runtime.GOOS {
		case "windows":
			base = os.Getenv("AppData")
			if base == "" { // fallback
				base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
			}
			base = filepath.Join(base, "GoWhiteboard")
		case "darwin":
			base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoWhiteboard")
		default: // linux and others
			if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
				base = filepath.Join(x, "gowhiteboard")
			} else {
				base = filepath.Join(os.Getenv("HOME"), ".config", "gowhiteboard")
			}
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The backend secret comes from the keyring and is returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	secret, _ := GetSecret()
	return cfg, secret, nil
}

// Save writes the user config YAML and stores secret in the OS keyring when non-empty.
func Save(cfg AppConfig, secret string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secret != "" {
		if err := SetSecret(secret); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	if src.General.LastProject != "" {
		dst.General.LastProject = src.General.LastProject
	}
	// canvas
	if src.Canvas.Width > 0 {
		dst.Canvas.Width = src.Canvas.Width
	}
	if src.Canvas.Height > 0 {
		dst.Canvas.Height = src.Canvas.Height
	}
	if strings.TrimSpace(src.Canvas.Background) != "" {
		dst.Canvas.Background = strings.TrimSpace(src.Canvas.Background)
	}
	if src.Canvas.ThumbnailScale > 0 {
		dst.Canvas.ThumbnailScale = src.Canvas.ThumbnailScale
	}
	// server
	if strings.TrimSpace(src.Server.Addr) != "" {
		dst.Server.Addr = strings.TrimSpace(src.Server.Addr)
	}
	if src.Server.ReadTimeoutMs > 0 {
		dst.Server.ReadTimeoutMs = src.Server.ReadTimeoutMs
	}
	if src.Server.WriteTimeoutMs > 0 {
		dst.Server.WriteTimeoutMs = src.Server.WriteTimeoutMs
	}
	if strings.TrimSpace(src.Server.MaintenanceSchedule) != "" {
		dst.Server.MaintenanceSchedule = strings.TrimSpace(src.Server.MaintenanceSchedule)
	}
	// storage
	if src.Storage.PreviewsMaxBytes > 0 {
		dst.Storage.PreviewsMaxBytes = src.Storage.PreviewsMaxBytes
	}
	if src.Storage.SnapshotRetention > 0 {
		dst.Storage.SnapshotRetention = src.Storage.SnapshotRetention
	}
	// backend
	if src.Backend.DatabaseURL != "" {
		dst.Backend.DatabaseURL = src.Backend.DatabaseURL
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	if src.Logging.MaxSizeMB > 0 {
		dst.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups > 0 {
		dst.Logging.MaxBackups = src.Logging.MaxBackups
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvCanvasWidth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Canvas.Width = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCanvasHeight)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Canvas.Height = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCanvasBackground)); v != "" {
		cfg.Canvas.Background = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaintenance)); v != "" {
		cfg.Server.MaintenanceSchedule = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPreviewsMaxBytes)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Storage.PreviewsMaxBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvSnapshotKeep)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Storage.SnapshotRetention = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Backend.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = envBool(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvLogMaxMB))); err == nil && n > 0 {
		cfg.Logging.MaxSizeMB = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvLogMaxBak))); err == nil && n > 0 {
		cfg.Logging.MaxBackups = n
	}
}

var envKeys = map[string]string{
	"canvas.width":                EnvCanvasWidth,
	"canvas.height":               EnvCanvasHeight,
	"canvas.background":           EnvCanvasBackground,
	"server.addr":                 EnvServerAddr,
	"server.maintenance_schedule": EnvMaintenance,
	"storage.previews_max_bytes":  EnvPreviewsMaxBytes,
	"storage.snapshot_retention":  EnvSnapshotKeep,
	"backend.database_url":        EnvDatabaseURL,
	"backend.base_url":            EnvBackendURL,
	"backend.timeout_ms":          EnvBackendTimeoutMs,
	"backend.tls_insecure":        EnvBackendTLSInsec,
	"logging.level":               EnvLogLevel,
	"logging.format":              EnvLogFormat,
	"logging.source":              EnvLogSource,
	"logging.file":                EnvLogFile,
	"logging.max_size_mb":         EnvLogMaxMB,
	"logging.max_backups":         EnvLogMaxBak,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the backend timeout, falling back to the default for non-positive values.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// ReadTimeout and WriteTimeout convert the server timeouts to durations.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMs) * time.Millisecond
}
