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
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "scenewriter/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"` // remote scenewriter server
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	PostgresDSN string `yaml:"postgres_dsn"` // shared scene store; password may be kept in the keychain
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type ExportConfig struct {
	Format    string `yaml:"format"` // docx | pdf | txt
	Author    string `yaml:"author"`
	StyleFile string `yaml:"style_file"` // house style YAML
	OutDir    string `yaml:"out_dir"`    // relative paths resolve against the project directory
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Secret is not stored on disk; see EnvServerSecret and the keychain.
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Source     bool   `yaml:"source"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Export        ExportConfig  `yaml:"export"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Export:        ExportConfig{Format: "docx", OutDir: "exports"},
		Server:        ServerConfig{Addr: ":8080"},
		Logging:       LoggingConfig{Level: "info", Format: "console", MaxSizeMB: 10, MaxBackups: 3},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "SW_CONFIG"
	EnvBackendURL       = "SW_BACKEND_URL"
	EnvBackendTimeoutMs = "SW_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "SW_TLS_INSECURE"
	EnvPostgresDSN      = "SW_PG_DSN"
	EnvTelemetryOptIn   = "SW_TELEMETRY_OPT_IN"
	EnvExportFormat     = "SW_EXPORT_FORMAT"
	EnvExportAuthor     = "SW_EXPORT_AUTHOR"
	EnvExportStyle      = "SW_EXPORT_STYLE"
	EnvExportOutDir     = "SW_EXPORT_OUT"
	EnvServerAddr       = "SW_SERVER_ADDR"
	EnvServerSecret     = "SW_SERVER_SECRET"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SW_LOG_LEVEL"
	EnvLogFormat = "SW_LOG_FORMAT"
	EnvLogSource = "SW_LOG_SOURCE"
	EnvLogFile   = "SW_LOG_FILE"
)

// ConfigPath returns the per-user config file path. SW_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "SceneWriter")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "SceneWriter")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "scenewriter")
		} else if home := os.Getenv("HOME"); home != "" {
			base = filepath.Join(home, ".config", "scenewriter")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			applog.WithComponent("config").Warn("ignoring unreadable config", "path", path, "err", err)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
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
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	if s := strings.TrimSpace(src.Backend.PostgresDSN); s != "" {
		dst.Backend.PostgresDSN = s
	}
	// export
	if s := strings.TrimSpace(src.Export.Format); s != "" {
		dst.Export.Format = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Export.Author); s != "" {
		dst.Export.Author = s
	}
	if s := strings.TrimSpace(src.Export.StyleFile); s != "" {
		dst.Export.StyleFile = s
	}
	if s := strings.TrimSpace(src.Export.OutDir); s != "" {
		dst.Export.OutDir = s
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
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

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Backend.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportFormat)); v != "" {
		cfg.Export.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportAuthor)); v != "" {
		cfg.Export.Author = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportStyle)); v != "" {
		cfg.Export.StyleFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportOutDir)); v != "" {
		cfg.Export.OutDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"backend.postgres_dsn":     EnvPostgresDSN,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"export.format":            EnvExportFormat,
	"export.author":            EnvExportAuthor,
	"export.style_file":        EnvExportStyle,
	"export.out_dir":           EnvExportOutDir,
	"server.addr":              EnvServerAddr,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// OverridableKeys lists the dotted config keys that have an environment override, sorted.
func OverridableKeys() []string {
	keys := make([]string, 0, len(envKeys))
	for k := range envKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	if env, ok := envKeys[key]; ok && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// Timeout returns the backend timeout, falling back to the default when unset.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// LogOptions converts the logging section for log.Init.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		AddSource:  c.Logging.Source,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
	}
}
