// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gramflow/gramflow/internal/issue"
)

func writeProjectFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Paths.Source != "src/main/grammar" {
		t.Errorf("Paths.Source = %q", cfg.Paths.Source)
	}
	if cfg.Paths.Staging != "src/main/antlr" {
		t.Errorf("Paths.Staging = %q", cfg.Paths.Staging)
	}
	if cfg.Paths.Raw != "build/generated-src/antlr/main" {
		t.Errorf("Paths.Raw = %q", cfg.Paths.Raw)
	}
	if cfg.Paths.Final != "src/main/genGrammar" {
		t.Errorf("Paths.Final = %q", cfg.Paths.Final)
	}
	if cfg.DefaultPackage != "endorh.simpleconfig.grammar" {
		t.Errorf("DefaultPackage = %q", cfg.DefaultPackage)
	}
	if cfg.Compiler.MaxHeap != "64m" {
		t.Errorf("Compiler.MaxHeap = %q", cfg.Compiler.MaxHeap)
	}
	if cfg.Sync.StrictNames {
		t.Error("expected StrictNames to be false by default")
	}
	if ok, errs := cfg.IsValid(); !ok {
		t.Errorf("default config should be valid: %v", errs)
	}
}

func TestLoad_DefaultsWithoutProjectFile(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SourceFile != "" {
		t.Errorf("SourceFile = %q, want empty", cfg.SourceFile)
	}
	if cfg.Paths.Final != DefaultFinalDir || cfg.Patterns.Grammar != DefaultGrammarPattern {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "cue",
			file: "gramflow.cue",
			content: `
paths: final: "gen"
default_package: "com.example.grammar"
compiler: { max_heap: "128m", args: ["-Werror"] }
sync: strict_names: true
`,
		},
		{
			name: "toml",
			file: "gramflow.toml",
			content: `
default_package = "com.example.grammar"

[paths]
final = "gen"

[compiler]
max_heap = "128m"
args = ["-Werror"]

[sync]
strict_names = true
`,
		},
		{
			name: "yaml",
			file: "gramflow.yaml",
			content: `
paths:
  final: gen
default_package: com.example.grammar
compiler:
  max_heap: 128m
  args: ["-Werror"]
sync:
  strict_names: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := writeProjectFile(t, dir, tt.file, tt.content)

			cfg, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: dir})
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.SourceFile != path {
				t.Errorf("SourceFile = %q, want %q", cfg.SourceFile, path)
			}
			if cfg.Paths.Final != "gen" {
				t.Errorf("Paths.Final = %q, want gen", cfg.Paths.Final)
			}
			if cfg.Paths.Source != DefaultSourceDir {
				t.Errorf("Paths.Source = %q, want default", cfg.Paths.Source)
			}
			if cfg.DefaultPackage != "com.example.grammar" {
				t.Errorf("DefaultPackage = %q", cfg.DefaultPackage)
			}
			if cfg.Compiler.MaxHeap != "128m" {
				t.Errorf("Compiler.MaxHeap = %q", cfg.Compiler.MaxHeap)
			}
			if len(cfg.Compiler.Args) != 1 || cfg.Compiler.Args[0] != "-Werror" {
				t.Errorf("Compiler.Args = %v", cfg.Compiler.Args)
			}
			if !cfg.Sync.StrictNames {
				t.Error("expected StrictNames from file")
			}
		})
	}
}

func TestLoad_CUEPrecedence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cuePath := writeProjectFile(t, dir, "gramflow.cue", `paths: final: "from-cue"`)
	writeProjectFile(t, dir, "gramflow.yaml", "paths:\n  final: from-yaml\n")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SourceFile != cuePath || cfg.Paths.Final != "from-cue" {
		t.Errorf("expected gramflow.cue to win, got %q from %q", cfg.Paths.Final, cfg.SourceFile)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown field", file: "gramflow.cue", content: `unknown_field: 1`},
		{name: "bad package", file: "gramflow.cue", content: `default_package: "1bad"`},
		{name: "bad heap", file: "gramflow.toml", content: "[compiler]\nmax_heap = \"lots\"\n"},
		{name: "wrong type", file: "gramflow.yaml", content: "sync:\n  strict_names: maybe\n"},
		{name: "empty path", file: "gramflow.cue", content: `paths: source: ""`},
		{name: "cue syntax", file: "gramflow.cue", content: `paths: {`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeProjectFile(t, dir, tt.file, tt.content)

			_, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: dir})
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("expected *issue.ActionableError, got %T", err)
			}
			if ae.ID != issue.ConfigLoadFailedId {
				t.Errorf("ID = %d, want ConfigLoadFailedId", ae.ID)
			}
			if !strings.Contains(err.Error(), tt.file) {
				t.Errorf("error should name the file, got %v", err)
			}
		})
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeProjectFile(t, dir, "custom.toml", "[paths]\nraw = \"out/raw\"\n")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Paths.Raw != "out/raw" {
		t.Errorf("Paths.Raw = %q", cfg.Paths.Raw)
	}

	_, err = NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(dir, "missing.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("expected not-found error, got %v", err)
	}

	bad := writeProjectFile(t, dir, "custom.ini", "x=1")
	if _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: bad}); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "gramflow.cue", `paths: final: "from-file"`)
	t.Setenv("GRAMFLOW_PATHS_FINAL", "from-env")
	t.Setenv("GRAMFLOW_SYNC_STRICT_NAMES", "true")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.Final != "from-env" {
		t.Errorf("Paths.Final = %q, want from-env", cfg.Paths.Final)
	}
	if !cfg.Sync.StrictNames {
		t.Error("expected env to enable StrictNames")
	}
}

func TestLoad_EnvValidation(t *testing.T) {
	t.Setenv("GRAMFLOW_DEFAULT_PACKAGE", "not valid!")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, ErrInvalidPackageName) {
		t.Errorf("expected invalid package error, got %v", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ProjectDir: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := WriteDefault(dir)
	if err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}
	if filepath.Base(path) != "gramflow.cue" {
		t.Errorf("WriteDefault() path = %q", path)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: dir})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.SourceFile != path || cfg.Paths.Staging != DefaultStagingDir {
		t.Errorf("unexpected round trip: %+v", cfg)
	}

	if _, err := WriteDefault(dir); !errors.Is(err, ErrConfigExists) {
		t.Errorf("second WriteDefault() error = %v, want ErrConfigExists", err)
	}
}

func TestGenerateCUE_CommandAndArgs(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Compiler.Command = "antlr4"
	cfg.Compiler.Args = []string{"-Werror", "-Xlog"}

	out := GenerateCUE(cfg)
	for _, want := range []string{`command:  "antlr4"`, `args: ["-Werror", "-Xlog"]`, `default_package: "endorh.simpleconfig.grammar"`} {
		if !strings.Contains(out, want) {
			t.Errorf("GenerateCUE() missing %q:\n%s", want, out)
		}
	}
}

func TestPackageName_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value PackageName
		want  bool
	}{
		{"com.example.grammar", true},
		{"a", true},
		{"a_b.c1", true},
		{"", false},
		{"1abc", false},
		{"a-b", false},
	}

	for _, tt := range tests {
		ok, errs := tt.value.IsValid()
		if ok != tt.want {
			t.Errorf("PackageName(%q).IsValid() = %v, want %v", tt.value, ok, tt.want)
		}
		if !ok && !errors.Is(errs[0], ErrInvalidPackageName) {
			t.Errorf("PackageName(%q) error does not wrap ErrInvalidPackageName", tt.value)
		}
	}
}

func TestWatchConfig_DebounceDuration(t *testing.T) {
	t.Parallel()

	d, err := WatchConfig{}.DebounceDuration()
	if err != nil || d.Milliseconds() != 500 {
		t.Errorf("default debounce = %v, %v", d, err)
	}
	if _, err := (WatchConfig{Debounce: "soon"}).DebounceDuration(); err == nil {
		t.Error("expected parse error")
	}
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	base := filepath.Join(string(filepath.Separator), "project")
	if got := ResolvePath(base, "src/main/grammar"); got != filepath.Join(base, "src", "main", "grammar") {
		t.Errorf("ResolvePath() relative = %q", got)
	}
	abs := filepath.Join(string(filepath.Separator), "abs", "dir")
	if got := ResolvePath(base, abs); got != abs {
		t.Errorf("ResolvePath() absolute = %q", got)
	}
}
