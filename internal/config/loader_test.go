package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newTestLoader() *Loader {
	return NewLoaderWith(viper.New())
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedocr.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.v == nil {
		t.Fatal("NewLoader() returned an unusable loader")
	}
	if loader.GetViper() != viper.GetViper() {
		t.Error("NewLoader() should use the global viper instance")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Layout.Locale != "nl" {
		t.Errorf("Expected default locale nl, got %s", cfg.Layout.Locale)
	}
	if len(cfg.OCR.Languages) != 2 {
		t.Errorf("Expected default languages, got %v", cfg.OCR.Languages)
	}
}

func TestLoadWithFile(t *testing.T) {
	path := writeConfigFile(t, `
log_level: debug
ocr:
  engine: json
  detections_dir: /data/detections
  viewport:
    enabled: false
alignment:
  min_similarity: 0.85
layout:
  locale: en
storage:
  backend: postgres
  database_url: postgres://localhost/feedocr
server:
  port: 9090
`)

	loader := newTestLoader()
	cfg, err := loader.LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}

	if cfg.LogLevel != debugLevel {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.OCR.Engine != "json" || cfg.OCR.DetectionsDir != "/data/detections" {
		t.Errorf("OCR settings not loaded: %+v", cfg.OCR)
	}
	if cfg.OCR.Viewport.Enabled {
		t.Error("Expected viewport disabled")
	}
	// Keys absent from the file keep their defaults
	if cfg.OCR.Viewport.X2 != 1020 {
		t.Errorf("Expected default viewport x2, got %f", cfg.OCR.Viewport.X2)
	}
	if cfg.Alignment.MinSimilarity != 0.85 || cfg.Alignment.MaxXDelta != 10 {
		t.Errorf("unexpected alignment: %+v", cfg.Alignment)
	}
	if cfg.Storage.Backend != "postgres" || cfg.Storage.DatabaseURL == "" {
		t.Errorf("storage not loaded: %+v", cfg.Storage)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if loader.GetConfigFileUsed() != path {
		t.Errorf("Expected config file %s, got %s", path, loader.GetConfigFileUsed())
	}
}

func TestLoadWithFile_Errors(t *testing.T) {
	if _, err := newTestLoader().LoadWithFile("/does/not/exist.yaml"); err == nil {
		t.Error("missing file should fail")
	}

	path := writeConfigFile(t, "ocr: [unclosed\n")
	if _, err := newTestLoader().LoadWithFile(path); err == nil {
		t.Error("malformed YAML should fail")
	}

	path = writeConfigFile(t, "dedup:\n  min_ratio: 3\n")
	_, err := newTestLoader().LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("invalid values should fail validation, got %v", err)
	}

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Dedup.MinRatio != 3 {
		t.Errorf("Expected raw ratio 3, got %f", cfg.Dedup.MinRatio)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("FEEDOCR_LOG_LEVEL", "warn")
	t.Setenv("FEEDOCR_SERVER_PORT", "7070")
	t.Setenv("FEEDOCR_OCR_CACHE_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("FEEDOCR_STORAGE_BACKEND", "postgres")

	path := writeConfigFile(t, "log_level: debug\n")
	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("env should override file, got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected port 7070, got %d", cfg.Server.Port)
	}
	if cfg.OCR.Cache.RedisURL != "redis://cache:6379/1" {
		t.Errorf("unexpected redis url %s", cfg.OCR.Cache.RedisURL)
	}
	if cfg.Storage.Backend != "postgres" {
		t.Errorf("Expected postgres backend, got %s", cfg.Storage.Backend)
	}
}

func TestLoaderGetSet(t *testing.T) {
	loader := newTestLoader()
	loader.Set("layout.locale", "en")
	if got := loader.GetString("layout.locale"); got != "en" {
		t.Errorf("GetString() = %s", got)
	}
	if loader.Get("layout.locale") != "en" {
		t.Error("Get() should return the set value")
	}

	path := writeConfigFile(t, "verbose: false\n")
	cfg, err := loader.LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.Layout.Locale != "en" {
		t.Errorf("Set() should win over defaults, got %s", cfg.Layout.Locale)
	}
	if _, ok := loader.GetResolvedConfig()["layout"]; !ok {
		t.Error("resolved config should contain the layout section")
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("generated file should load: %v", err)
	}
	want := DefaultConfig()
	if cfg.OCR.Engine != want.OCR.Engine || cfg.Server.Port != want.Server.Port || cfg.Queue.Name != want.Queue.Name {
		t.Errorf("generated config differs from defaults: %+v", cfg)
	}

	t.Chdir(t.TempDir())
	if err := GenerateDefaultConfigFile(""); err != nil {
		t.Fatalf("GenerateDefaultConfigFile(\"\") error: %v", err)
	}
	if _, err := os.Stat("feedocr.yaml"); err != nil {
		t.Errorf("Expected feedocr.yaml to be written: %v", err)
	}
}

func TestWriteConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteConfig(&buf, DefaultConfig()); err != nil {
		t.Fatalf("WriteConfig() error: %v", err)
	}

	var decoded Config
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if decoded.Layout.Locale != "nl" || decoded.OCR.Cache.TTL != "168h" {
		t.Errorf("unexpected decoded config: %+v", decoded)
	}
	if !strings.Contains(buf.String(), "min_similarity: 0.9") {
		t.Errorf("expected snake_case keys in:\n%s", buf.String())
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()

	if paths[0] != "." {
		t.Errorf("Expected current directory first, got %s", paths[0])
	}
	want := map[string]bool{"/etc/feedocr": false, "/xdg/feedocr": false}
	for _, p := range paths {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for p, found := range want {
		if !found {
			t.Errorf("Expected %s in search paths %v", p, paths)
		}
	}
}

func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	newTestLoader().PrintConfigInfo(&buf)
	if !strings.Contains(buf.String(), "Environment prefix: FEEDOCR") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
