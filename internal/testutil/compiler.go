// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gramflow/gramflow/internal/compiler"
)

// GrammarCompiler is a fake compiler.Compiler. For every staged grammar
// <G>.g4 it writes <G>Parser.java into the output directory. The package
// declaration is copied from a "// package x.y" line of the grammar, if any.
type GrammarCompiler struct {
	// Err, when set, is returned by every Compile call without writing output.
	Err error

	mu   sync.Mutex
	seen []compiler.Invocation
}

// Compile implements compiler.Compiler.
func (c *GrammarCompiler) Compile(_ context.Context, inv compiler.Invocation) error {
	c.mu.Lock()
	c.seen = append(c.seen, inv)
	c.mu.Unlock()

	if c.Err != nil {
		return c.Err
	}
	if err := os.MkdirAll(inv.OutputDir, 0o755); err != nil {
		return err
	}
	for _, g := range inv.Grammars {
		data, err := os.ReadFile(filepath.Join(inv.InputDir, g))
		if err != nil {
			return err
		}
		var decl string
		for line := range strings.Lines(string(data)) {
			if pkg, ok := strings.CutPrefix(strings.TrimSpace(line), "// package "); ok {
				decl = "package " + pkg + ";\n\n"
			}
		}
		class := strings.TrimSuffix(g, ".g4") + "Parser"
		body := decl + "public class " + class + " {}\n"
		if err := os.WriteFile(filepath.Join(inv.OutputDir, class+".java"), []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns the number of Compile calls.
func (c *GrammarCompiler) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Invocations returns a copy of every invocation received.
func (c *GrammarCompiler) Invocations() []compiler.Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]compiler.Invocation(nil), c.seen...)
}
