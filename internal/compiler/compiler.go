// SPDX-License-Identifier: MPL-2.0

// Package compiler invokes the external grammar compiler.
//
// The compiler reads grammar files from one flat directory and writes its
// generated sources into an output directory. Every invocation enables
// visitor generation and long diagnostic messages.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"

	"github.com/gramflow/gramflow/internal/logging"
)

const (
	// DefaultJava is the Java launcher used when no command is configured.
	DefaultJava = "java"
	// DefaultJar is the ANTLR tool jar used when no command is configured.
	DefaultJar = "antlr-4.9.1-complete.jar"
	// DefaultMaxHeap bounds the compiler's heap.
	DefaultMaxHeap = "64m"
)

var (
	// ErrCompilerNotFound is returned when the compiler program cannot be started.
	ErrCompilerNotFound = errors.New("grammar compiler not found")
	// ErrCompileFailed is the sentinel wrapped by Error.
	ErrCompileFailed = errors.New("grammar compilation failed")
	// ErrInvalidCommand is returned for an unparsable compiler command.
	ErrInvalidCommand = errors.New("invalid compiler command")

	// fixedFlags are passed on every invocation.
	fixedFlags = []string{"-visitor", "-long-messages"}
)

type (
	// Invocation describes one compiler run.
	Invocation struct {
		// InputDir is the flat directory holding the grammars.
		InputDir string
		// Grammars are grammar file names inside InputDir.
		Grammars []string
		// OutputDir receives the generated sources.
		OutputDir string
	}

	// Compiler turns a flat directory of grammars into generated sources.
	Compiler interface {
		Compile(ctx context.Context, inv Invocation) error
	}

	// Func adapts a function to the Compiler interface.
	Func func(ctx context.Context, inv Invocation) error

	// Error reports a compiler run that exited non-zero. Diagnostics holds the
	// compiler's stderr verbatim.
	Error struct {
		ExitCode    int
		Diagnostics string
	}

	// Tool runs the compiler as an external process.
	Tool struct {
		// Command, when set, replaces the Java launcher line. It is split into
		// words shell-style and $VARS are expanded from the environment.
		Command string
		Java    string
		Jar     string
		MaxHeap string
		// Args are extra compiler arguments placed after the fixed flags.
		Args []string
		// BaseDir resolves relative program and jar paths. Defaults to the
		// working directory.
		BaseDir string
		Stdout  io.Writer
		Stderr  io.Writer
		Logger  *log.Logger
		// Getenv expands variables in Command. Nil means os.Getenv.
		Getenv func(string) string
	}
)

// Compile implements Compiler.
func (f Func) Compile(ctx context.Context, inv Invocation) error {
	return f(ctx, inv)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (exit status %d)", ErrCompileFailed, e.ExitCode)
	if first, _, _ := strings.Cut(strings.TrimSpace(e.Diagnostics), "\n"); first != "" {
		msg += ": " + first
	}
	return msg
}

func (e *Error) Unwrap() error { return ErrCompileFailed }

// FixedFlags returns the flags passed on every invocation.
func FixedFlags() []string {
	return append([]string(nil), fixedFlags...)
}

// CommandLine returns the full argv for inv.
func (t *Tool) CommandLine(inv Invocation) ([]string, error) {
	prog, err := t.program()
	if err != nil {
		return nil, err
	}

	argv := append(prog, "-o", inv.OutputDir, "-lib", inv.InputDir)
	argv = append(argv, fixedFlags...)
	argv = append(argv, t.Args...)
	argv = append(argv, inv.Grammars...)
	return argv, nil
}

func (t *Tool) program() ([]string, error) {
	if strings.TrimSpace(t.Command) != "" {
		getenv := t.Getenv
		if getenv == nil {
			getenv = os.Getenv
		}
		words, err := shell.Fields(t.Command, getenv)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidCommand, t.Command, err)
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("%w: %q expands to nothing", ErrInvalidCommand, t.Command)
		}
		words[0] = t.resolve(words[0], true)
		return words, nil
	}

	java := or(t.Java, DefaultJava)
	return []string{
		t.resolve(java, true),
		"-Xmx" + or(t.MaxHeap, DefaultMaxHeap),
		"-jar",
		t.resolve(or(t.Jar, DefaultJar), false),
	}, nil
}

// resolve makes a relative path absolute against BaseDir. Bare program
// names are left for PATH lookup.
func (t *Tool) resolve(p string, program bool) string {
	if filepath.IsAbs(p) {
		return p
	}
	if program && !strings.ContainsRune(p, '/') && !strings.ContainsRune(p, filepath.Separator) {
		return p
	}
	base := t.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return p
		}
		base = wd
	}
	return filepath.Join(base, p)
}

// Compile runs the compiler for inv, blocking until it exits. Stdout and
// stderr are streamed through; stderr is also captured into Error.
func (t *Tool) Compile(ctx context.Context, inv Invocation) error {
	logger := logging.Component(t.Logger, "compile")

	if len(inv.Grammars) == 0 {
		logger.Warn("no grammar files to compile", "dir", inv.InputDir)
		return nil
	}

	argv, err := t.CommandLine(inv)
	if err != nil {
		return err
	}
	if _, err := os.Stat(inv.InputDir); err != nil {
		return fmt.Errorf("compiler input directory: %w", err)
	}
	if err := os.MkdirAll(inv.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create compiler output directory: %w", err)
	}

	stdout := t.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := t.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var diag bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = inv.InputDir
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &diag)

	logger.Debug("running grammar compiler", "argv", strings.Join(argv, " "))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			return &Error{ExitCode: exitErr.ExitCode(), Diagnostics: diag.String()}
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: %s: %v", ErrCompilerNotFound, argv[0], err)
		default:
			return fmt.Errorf("run grammar compiler: %w", err)
		}
	}

	logger.Info("compiled grammars", "grammars", len(inv.Grammars), "output", inv.OutputDir)
	return nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
