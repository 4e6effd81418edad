package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// setupTestWorkspace writes a config file pointing every path into a
// temporary directory, plus the given templates, and returns the config path.
func setupTestWorkspace(tb testing.TB, templates map[string]string, langPacks ...string) string {
	tb.Helper()
	root := tb.TempDir()

	cfg := DefaultConfiguration()
	cfg.App.LogLevel = "error"
	cfg.App.DataDir = filepath.Join(root, "data")
	cfg.App.DatabasePath = filepath.Join(root, "data", "nepenthes.db")
	cfg.App.LangPacks = langPacks
	cfg.Templates.TemplateDir = filepath.Join(root, "templates")
	cfg.Templates.CacheDir = filepath.Join(root, "cache")

	for name, content := range templates {
		path := filepath.Join(cfg.Templates.TemplateDir, filepath.FromSlash(name)+cfg.Templates.Extension)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			tb.Fatalf("failed to create template dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			tb.Fatalf("failed to write template: %v", err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		tb.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(root, "config.json")
	if err = os.WriteFile(path, data, 0644); err != nil {
		tb.Fatalf("failed to write config: %v", err)
	}
	return path
}

// runCommand executes the CLI with args and returns what it wrote to stdout.
func runCommand(tb testing.TB, configPath string, args ...string) (string, error) {
	tb.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadConfig_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfiguration(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if _, err = os.Stat(path); err != nil {
		t.Errorf("default config file was not written: %v", err)
	}

	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() on the written file error = %v", err)
	}
	if diff := cmp.Diff(cfg, again); diff != "" {
		t.Errorf("reloaded config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	file := `{
  "app_config": {"log_level": "debug", "lang_packs": ["en", "en-gb"]},
  "template_config": {"theme": "dark", "max_include_depth": 8}
}`
	if err := os.WriteFile(path, []byte(file), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NEPENTHES_TEMPLATE_CONFIG_LAYOUT", "main")
	t.Setenv("NEPENTHES_TEMPLATE_CONFIG_DEVELOPMENT_MODE", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := DefaultConfiguration()
	want.App.LogLevel = "debug"
	want.App.LangPacks = []string{"en", "en-gb"}
	want.Templates.Theme = "dark"
	want.Templates.MaxIncludeDepth = 8
	want.Templates.Layout = "main"
	want.Templates.DevelopmentMode = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoadVars(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "vars.yaml")
	if err := os.WriteFile(dataFile, []byte("name: file\nitems: [a, b]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	vars, err := loadVars(dataFile, []string{"$name=flag", "empty="})
	if err != nil {
		t.Fatalf("loadVars() error = %v", err)
	}
	want := map[string]any{"name": "flag", "empty": "", "items": []any{"a", "b"}}
	if diff := cmp.Diff(want, vars); diff != "" {
		t.Errorf("vars mismatch (-want +got):\n%s", diff)
	}

	if _, err = loadVars("", []string{"novalue"}); err == nil {
		t.Error("expected an error for a pair without '='")
	}
}

func TestRenderCommand(t *testing.T) {
	configPath := setupTestWorkspace(t, map[string]string{
		"main/index":  `{% include "header" %}Hello {{ $name }}`,
		"main/header": `[{{ $name|upper }}]`,
	})
	out, err := runCommand(t, configPath, "render", "main/index", "--var", "name=world")
	if err != nil {
		t.Fatalf("render error = %v", err)
	}
	if out != "[WORLD]Hello world" {
		t.Errorf("render output = %q", out)
	}

	out, err = runCommand(t, configPath, "render", "index", "--layout", "main", "--var", "name=again")
	if err != nil {
		t.Fatalf("render with --layout error = %v", err)
	}
	if out != "[AGAIN]Hello again" {
		t.Errorf("render output = %q", out)
	}

	if _, err = runCommand(t, configPath, "render", "missing"); err == nil {
		t.Error("expected an error for a missing template")
	}
}

func TestCompileAndCacheCommands(t *testing.T) {
	configPath := setupTestWorkspace(t, map[string]string{"index": `{{ $x }}`})

	if _, err := runCommand(t, configPath, "compile", "index"); err != nil {
		t.Fatalf("compile error = %v", err)
	}
	out, err := runCommand(t, configPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list error = %v", err)
	}
	if !strings.Contains(out, "index-compiled.tplc") {
		t.Errorf("cache list output does not name the compiled template:\n%s", out)
	}

	if _, err = runCommand(t, configPath, "cache", "clear"); err != nil {
		t.Fatalf("cache clear error = %v", err)
	}
	out, err = runCommand(t, configPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list error = %v", err)
	}
	if strings.Contains(out, ".tplc") {
		t.Errorf("cache not cleared:\n%s", out)
	}
}

func TestLangCommands(t *testing.T) {
	configPath := setupTestWorkspace(t, map[string]string{
		"index": `{{ nav.home }} | {{ nav.missing }}`,
	}, "en", "en-gb")

	dir := t.TempDir()
	packs := map[string]string{
		"en":    "nav:\n  home: Home\n  about: About\n",
		"en-gb": "nav:\n  home: Homepage\n",
	}
	for pack, content := range packs {
		file := filepath.Join(dir, pack+".yaml")
		if err := os.WriteFile(file, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := runCommand(t, configPath, "lang", "import", pack, file); err != nil {
			t.Fatalf("lang import %s error = %v", pack, err)
		}
	}

	out, err := runCommand(t, configPath, "lang", "packs")
	if err != nil {
		t.Fatalf("lang packs error = %v", err)
	}
	if out != "en\nen-gb\n" {
		t.Errorf("lang packs output = %q", out)
	}

	out, err = runCommand(t, configPath, "lang", "export", "en")
	if err != nil {
		t.Fatalf("lang export error = %v", err)
	}
	if !strings.Contains(out, "nav.about: About") {
		t.Errorf("lang export output = %q", out)
	}

	out, err = runCommand(t, configPath, "render", "index")
	if err != nil {
		t.Fatalf("render error = %v", err)
	}
	if out != "Homepage | nav.missing" {
		t.Errorf("render output = %q", out)
	}
}
