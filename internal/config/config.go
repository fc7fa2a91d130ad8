// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gramflow/gramflow/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "gramflow"
	// EnvPrefix prefixes environment overrides (GRAMFLOW_PATHS_FINAL, ...).
	EnvPrefix = "GRAMFLOW"
	// ProjectFileName is the project file name without extension.
	ProjectFileName = "gramflow"

	// maxConfigSize bounds the project file size.
	maxConfigSize = 1 << 20
)

// ErrConfigExists is returned by WriteDefault when a project file exists.
var ErrConfigExists = errors.New("project configuration already exists")

//go:embed config_schema.cue
var configSchema string

// projectFileNames lists the discovered project files in precedence order.
var projectFileNames = []string{
	ProjectFileName + ".cue",
	ProjectFileName + ".toml",
	ProjectFileName + ".yaml",
	ProjectFileName + ".yml",
}

// FindProjectFile returns the first project file present in dir, or "".
func FindProjectFile(dir string) string {
	for _, name := range projectFileNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// loadWithOptions performs option-driven config loading.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFilePath
	if path != "" {
		if !fileExists(path) {
			return nil, issue.NewErrorContext().
				WithOperation("load project configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'gramflow init' to create a default project file").
				Wrap(fmt.Errorf("config file not found: %s", path)).
				BuildError()
		}
	} else {
		path = FindProjectFile(opts.projectDir())
	}

	if path != "" {
		if err := loadFileIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load project configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check the file syntax").
				WithSuggestion("Verify the values match the expected schema (see 'gramflow config show')").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SourceFile = path

	if ok, errs := cfg.IsValid(); !ok {
		return nil, issue.NewErrorContext().
			WithOperation("validate project configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check GRAMFLOW_* environment overrides").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("paths.source", d.Paths.Source)
	v.SetDefault("paths.staging", d.Paths.Staging)
	v.SetDefault("paths.raw", d.Paths.Raw)
	v.SetDefault("paths.final", d.Paths.Final)
	v.SetDefault("default_package", d.DefaultPackage.String())
	v.SetDefault("patterns.grammar", d.Patterns.Grammar)
	v.SetDefault("patterns.generated", d.Patterns.Generated)
	v.SetDefault("compiler.command", d.Compiler.Command)
	v.SetDefault("compiler.java", d.Compiler.Java)
	v.SetDefault("compiler.jar", d.Compiler.Jar)
	v.SetDefault("compiler.max_heap", d.Compiler.MaxHeap.String())
	v.SetDefault("compiler.args", d.Compiler.Args)
	v.SetDefault("sync.strict_names", d.Sync.StrictNames)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// loadFileIntoViper decodes the project file according to its extension,
// validates it against the #Config schema, and merges it into Viper.
func loadFileIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("%s: config file exceeds %d bytes", path, maxConfigSize)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	var userValue cue.Value
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		userValue = ctx.CompileBytes(data, cue.Filename(path))
	case ".toml":
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		userValue = ctx.Encode(nonNil(doc))
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		userValue = ctx.Encode(nonNil(doc))
	default:
		return fmt.Errorf("%s: unsupported config format %q (use .cue, .toml or .yaml)", path, ext)
	}
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func nonNil(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	return doc
}

// formatCUEError flattens CUE errors into "<file>: <path>: <message>" lines.
func formatCUEError(err error, path string) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}
	lines := make([]string, 0, len(list))
	for _, e := range list {
		msg := e.Error()
		if p := strings.Join(cueerrors.Path(e), "."); p != "" && !strings.HasPrefix(msg, p) {
			msg = p + ": " + msg
		}
		lines = append(lines, msg)
	}
	return fmt.Errorf("%s: %s", path, strings.Join(lines, "; "))
}

// ResolvePath makes p absolute against projectDir.
func ResolvePath(projectDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(projectDir, p)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault creates gramflow.cue with default values in dir and returns
// its path. An existing project file in any format is never overwritten.
func WriteDefault(dir string) (string, error) {
	if existing := FindProjectFile(dir); existing != "" {
		return existing, fmt.Errorf("%w: %s", ErrConfigExists, existing)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}
	path := filepath.Join(dir, ProjectFileName+".cue")
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a gramflow.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// gramflow project configuration\n")
	sb.WriteString("// Never store files in paths.staging: it is cleared and deleted on every generation.\n\n")

	sb.WriteString("paths: {\n")
	fmt.Fprintf(&sb, "\tsource:  %q\n", cfg.Paths.Source)
	fmt.Fprintf(&sb, "\tstaging: %q\n", cfg.Paths.Staging)
	fmt.Fprintf(&sb, "\traw:     %q\n", cfg.Paths.Raw)
	fmt.Fprintf(&sb, "\tfinal:   %q\n", cfg.Paths.Final)
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "default_package: %q\n\n", cfg.DefaultPackage)

	sb.WriteString("patterns: {\n")
	fmt.Fprintf(&sb, "\tgrammar:   %q\n", cfg.Patterns.Grammar)
	fmt.Fprintf(&sb, "\tgenerated: %q\n", cfg.Patterns.Generated)
	sb.WriteString("}\n\n")

	sb.WriteString("compiler: {\n")
	if cfg.Compiler.Command != "" {
		fmt.Fprintf(&sb, "\tcommand:  %q\n", cfg.Compiler.Command)
	}
	fmt.Fprintf(&sb, "\tjava:     %q\n", cfg.Compiler.Java)
	fmt.Fprintf(&sb, "\tjar:      %q\n", cfg.Compiler.Jar)
	fmt.Fprintf(&sb, "\tmax_heap: %q\n", cfg.Compiler.MaxHeap)
	if len(cfg.Compiler.Args) > 0 {
		quoted := make([]string, 0, len(cfg.Compiler.Args))
		for _, a := range cfg.Compiler.Args {
			quoted = append(quoted, fmt.Sprintf("%q", a))
		}
		fmt.Fprintf(&sb, "\targs: [%s]\n", strings.Join(quoted, ", "))
	}
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "sync: strict_names: %v\n", cfg.Sync.StrictNames)
	fmt.Fprintf(&sb, "watch: debounce: %q\n", cfg.Watch.Debounce)
	fmt.Fprintf(&sb, "ui: verbose: %v\n", cfg.UI.Verbose)

	return sb.String()
}
