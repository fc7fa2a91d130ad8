// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultSourceDir holds the nested grammar sources.
	DefaultSourceDir = "src/main/grammar"
	// DefaultStagingDir is the compiler's flat input directory. Never store
	// files there: it is cleared and deleted on every generation.
	DefaultStagingDir = "src/main/antlr"
	// DefaultRawDir receives the compiler output before routing.
	DefaultRawDir = "build/generated-src/antlr/main"
	// DefaultFinalDir receives the package-structured generated sources.
	DefaultFinalDir = "src/main/genGrammar"
	// DefaultPackage is used for generated files without a package declaration.
	DefaultPackage PackageName = "endorh.simpleconfig.grammar"

	// DefaultGrammarPattern selects grammar files in the source tree.
	DefaultGrammarPattern = "**/*.g4"
	// DefaultGeneratedPattern selects generated files in the raw tree.
	DefaultGeneratedPattern = "**/*.java"

	// DefaultMaxHeap bounds the compiler's JVM heap.
	DefaultMaxHeap HeapSize = "64m"
	// DefaultDebounce is the watch-mode quiet period.
	DefaultDebounce = "500ms"
)

var (
	// ErrInvalidPackageName is the sentinel wrapped by InvalidPackageNameError.
	ErrInvalidPackageName = errors.New("invalid package name")
	// ErrInvalidHeapSize is returned for a malformed heap size.
	ErrInvalidHeapSize = errors.New("invalid heap size")
	// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	packageNameRe = regexp.MustCompile(`^[a-zA-Z]+[a-zA-Z0-9._]*$`)
	heapSizeRe    = regexp.MustCompile(`^[0-9]+[kKmMgG]?$`)
)

type (
	// PackageName is a dotted package identifier such as "com.example.grammar".
	PackageName string

	// InvalidPackageNameError is returned when a PackageName is malformed.
	InvalidPackageNameError struct {
		Value PackageName
	}

	// HeapSize is a JVM heap size such as "64m".
	HeapSize string

	// InvalidConfigError aggregates every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the gramflow project configuration.
	Config struct {
		Paths PathsConfig `json:"paths" mapstructure:"paths"`
		// DefaultPackage routes generated files that declare no package.
		DefaultPackage PackageName    `json:"default_package" mapstructure:"default_package"`
		Patterns       PatternsConfig `json:"patterns" mapstructure:"patterns"`
		Compiler       CompilerConfig `json:"compiler" mapstructure:"compiler"`
		Sync           SyncConfig     `json:"sync" mapstructure:"sync"`
		Watch          WatchConfig    `json:"watch" mapstructure:"watch"`
		UI             UIConfig       `json:"ui" mapstructure:"ui"`

		// SourceFile is the project file the config was read from; empty
		// when only defaults apply.
		SourceFile string `json:"-" mapstructure:"-"`
	}

	// PathsConfig locates the pipeline directories.
	PathsConfig struct {
		Source  string `json:"source" mapstructure:"source"`
		Staging string `json:"staging" mapstructure:"staging"`
		Raw     string `json:"raw" mapstructure:"raw"`
		Final   string `json:"final" mapstructure:"final"`
	}

	// PatternsConfig holds the doublestar globs selecting files.
	PatternsConfig struct {
		Grammar   string `json:"grammar" mapstructure:"grammar"`
		Generated string `json:"generated" mapstructure:"generated"`
	}

	// CompilerConfig configures the external grammar compiler.
	CompilerConfig struct {
		// Command replaces the java launcher line when non-empty.
		Command string   `json:"command" mapstructure:"command"`
		Java    string   `json:"java" mapstructure:"java"`
		Jar     string   `json:"jar" mapstructure:"jar"`
		MaxHeap HeapSize `json:"max_heap" mapstructure:"max_heap"`
		Args    []string `json:"args" mapstructure:"args"`
	}

	// SyncConfig configures source flattening.
	SyncConfig struct {
		StrictNames bool `json:"strict_names" mapstructure:"strict_names"`
	}

	// WatchConfig configures watch mode.
	WatchConfig struct {
		Debounce string `json:"debounce" mapstructure:"debounce"`
	}

	// UIConfig configures CLI output.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the configuration used when no project file exists.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Source:  DefaultSourceDir,
			Staging: DefaultStagingDir,
			Raw:     DefaultRawDir,
			Final:   DefaultFinalDir,
		},
		DefaultPackage: DefaultPackage,
		Patterns: PatternsConfig{
			Grammar:   DefaultGrammarPattern,
			Generated: DefaultGeneratedPattern,
		},
		Compiler: CompilerConfig{
			Java:    "java",
			Jar:     "antlr-4.9.1-complete.jar",
			MaxHeap: DefaultMaxHeap,
			Args:    []string{},
		},
		Watch: WatchConfig{Debounce: DefaultDebounce},
	}
}

// String returns the package name.
func (p PackageName) String() string { return string(p) }

// IsValid reports whether p is a dotted identifier starting with a letter.
func (p PackageName) IsValid() (bool, []error) {
	if !packageNameRe.MatchString(string(p)) {
		return false, []error{&InvalidPackageNameError{Value: p}}
	}
	return true, nil
}

func (e *InvalidPackageNameError) Error() string {
	return fmt.Sprintf("invalid package name %q (expected a dotted identifier such as com.example.grammar)", e.Value)
}

func (e *InvalidPackageNameError) Unwrap() error { return ErrInvalidPackageName }

// String returns the heap size.
func (h HeapSize) String() string { return string(h) }

// IsValid reports whether h is a number with an optional k/m/g suffix.
func (h HeapSize) IsValid() (bool, []error) {
	if !heapSizeRe.MatchString(string(h)) {
		return false, []error{fmt.Errorf("%w: %q", ErrInvalidHeapSize, h)}
	}
	return true, nil
}

// DebounceDuration parses the watch debounce. Empty means DefaultDebounce.
func (w WatchConfig) DebounceDuration() (time.Duration, error) {
	s := w.Debounce
	if s == "" {
		s = DefaultDebounce
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid watch debounce %q: %w", s, err)
	}
	return d, nil
}

// IsValid checks constraints that hold after defaults and environment
// overrides are applied.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, p := range []struct{ name, value string }{
		{"paths.source", c.Paths.Source},
		{"paths.staging", c.Paths.Staging},
		{"paths.raw", c.Paths.Raw},
		{"paths.final", c.Paths.Final},
	} {
		if strings.TrimSpace(p.value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", p.name))
		}
	}
	if ok, fieldErrs := c.DefaultPackage.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if c.Compiler.Command == "" {
		if ok, fieldErrs := c.Compiler.MaxHeap.IsValid(); !ok {
			errs = append(errs, fieldErrs...)
		}
	}
	if _, err := c.Watch.DebounceDuration(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidConfig and every field error to errors.Is/As.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
