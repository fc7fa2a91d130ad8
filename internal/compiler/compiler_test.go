// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

// fakeCompiler mimics the grammar compiler: it records its arguments and
// writes one Java file per grammar into the -o directory.
const fakeCompiler = `#!/bin/sh
out="$2"
echo "$@" > "$out/args.txt"
for g in "$@"; do
  case "$g" in
    *.g4)
      name=$(basename "$g" .g4)
      printf 'package gen.%s;\n' "$name" > "$out/${name}Parser.java"
      ;;
  esac
done
`

const failingCompiler = `#!/bin/sh
echo "error(50): Bad.g4:1:0: syntax error: missing ';'" >&2
exit 1
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on Windows")
	}
	path := filepath.Join(t.TempDir(), "compiler.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTool_CommandLine(t *testing.T) {
	t.Parallel()

	inv := Invocation{InputDir: "/p/antlr", OutputDir: "/p/raw", Grammars: []string{"A.g4", "B.g4"}}

	tests := []struct {
		name string
		tool Tool
		want []string
	}{
		{
			name: "java defaults",
			tool: Tool{BaseDir: "/p"},
			want: []string{
				"java", "-Xmx64m", "-jar", filepath.Join("/p", DefaultJar),
				"-o", "/p/raw", "-lib", "/p/antlr", "-visitor", "-long-messages", "A.g4", "B.g4",
			},
		},
		{
			name: "custom heap jar and args",
			tool: Tool{BaseDir: "/p", Jar: "/opt/antlr.jar", MaxHeap: "256m", Args: []string{"-Werror"}},
			want: []string{
				"java", "-Xmx256m", "-jar", "/opt/antlr.jar",
				"-o", "/p/raw", "-lib", "/p/antlr", "-visitor", "-long-messages", "-Werror", "A.g4", "B.g4",
			},
		},
		{
			name: "command with expansion",
			tool: Tool{
				BaseDir: "/p",
				Command: `antlr4 -Dlanguage=$LANG_TARGET "-package x"`,
				Getenv:  func(k string) string { return map[string]string{"LANG_TARGET": "Java"}[k] },
			},
			want: []string{
				"antlr4", "-Dlanguage=Java", "-package x",
				"-o", "/p/raw", "-lib", "/p/antlr", "-visitor", "-long-messages", "A.g4", "B.g4",
			},
		},
		{
			name: "relative program path",
			tool: Tool{BaseDir: "/p", Command: "./tools/antlr.sh"},
			want: []string{
				filepath.Join("/p", "tools", "antlr.sh"),
				"-o", "/p/raw", "-lib", "/p/antlr", "-visitor", "-long-messages", "A.g4", "B.g4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.tool.CommandLine(inv)
			if err != nil {
				t.Fatalf("CommandLine() error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("CommandLine() =\n  %q\nwant\n  %q", got, tt.want)
			}
		})
	}
}

func TestTool_CommandLine_Invalid(t *testing.T) {
	t.Parallel()

	for _, cmd := range []string{`antlr4 "unterminated`, `$EMPTY`} {
		tool := Tool{Command: cmd, Getenv: func(string) string { return "" }}
		if _, err := tool.CommandLine(Invocation{}); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("CommandLine(%q) error = %v, want ErrInvalidCommand", cmd, err)
		}
	}
}

func TestTool_Compile(t *testing.T) {
	t.Parallel()

	script := writeScript(t, fakeCompiler)
	root := t.TempDir()
	in := filepath.Join(root, "antlr")
	out := filepath.Join(root, "raw")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, g := range []string{"Expr.g4", "Config.g4"} {
		if err := os.WriteFile(filepath.Join(in, g), []byte("grammar x;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var stdout, stderr bytes.Buffer
	tool := &Tool{Command: fmt.Sprintf("sh %q", script), Stdout: &stdout, Stderr: &stderr}
	err := tool.Compile(context.Background(), Invocation{InputDir: in, OutputDir: out, Grammars: []string{"Expr.g4", "Config.g4"}})
	if err != nil {
		t.Fatalf("Compile() error: %v (stderr %q)", err, stderr.String())
	}

	args, err := os.ReadFile(filepath.Join(out, "args.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, flag := range FixedFlags() {
		if !strings.Contains(string(args), flag) {
			t.Errorf("compiler args %q missing %s", args, flag)
		}
	}
	for _, f := range []string{"ExprParser.java", "ConfigParser.java"} {
		if _, err := os.Stat(filepath.Join(out, f)); err != nil {
			t.Errorf("expected generated %s: %v", f, err)
		}
	}
}

func TestTool_Compile_Failure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, failingCompiler)
	in := t.TempDir()

	var stderr bytes.Buffer
	tool := &Tool{Command: fmt.Sprintf("sh %q", script), Stdout: &bytes.Buffer{}, Stderr: &stderr}
	err := tool.Compile(context.Background(), Invocation{InputDir: in, OutputDir: filepath.Join(in, "out"), Grammars: []string{"Bad.g4"}})

	if !errors.Is(err, ErrCompileFailed) {
		t.Fatalf("expected ErrCompileFailed, got %v", err)
	}
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ce.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", ce.ExitCode)
	}
	if !strings.Contains(ce.Diagnostics, "syntax error") {
		t.Errorf("Diagnostics = %q, want compiler stderr", ce.Diagnostics)
	}
	if !strings.Contains(stderr.String(), "syntax error") {
		t.Errorf("stderr was not streamed through: %q", stderr.String())
	}
	if !strings.Contains(err.Error(), "error(50)") {
		t.Errorf("Error() = %q, want first diagnostic line", err.Error())
	}
}

func TestTool_Compile_NotFound(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	tool := &Tool{Command: "gramflow-no-such-compiler-binary", Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	err := tool.Compile(context.Background(), Invocation{InputDir: in, OutputDir: filepath.Join(in, "out"), Grammars: []string{"A.g4"}})
	if !errors.Is(err, ErrCompilerNotFound) {
		t.Errorf("expected ErrCompilerNotFound, got %v", err)
	}
}

func TestTool_Compile_NoGrammars(t *testing.T) {
	t.Parallel()

	tool := &Tool{Command: "gramflow-no-such-compiler-binary"}
	if err := tool.Compile(context.Background(), Invocation{InputDir: t.TempDir()}); err != nil {
		t.Errorf("Compile() with no grammars = %v, want nil", err)
	}
}

func TestFunc(t *testing.T) {
	t.Parallel()

	var got Invocation
	var c Compiler = Func(func(_ context.Context, inv Invocation) error {
		got = inv
		return nil
	})
	if err := c.Compile(context.Background(), Invocation{InputDir: "x"}); err != nil {
		t.Fatal(err)
	}
	if got.InputDir != "x" {
		t.Errorf("Func did not receive the invocation: %+v", got)
	}
}
