// SPDX-License-Identifier: MPL-2.0

package stale

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAt(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	touch(t, path, mod)
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

// layout builds a source tree whose entries are all older than base, a
// drained raw tree and a final tree whose files all carry base.
func layout(t *testing.T, base time.Time) Options {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		SourceRoot:       filepath.Join(root, "grammar"),
		RawRoot:          filepath.Join(root, "raw"),
		FinalRoot:        filepath.Join(root, "gen"),
		GrammarPattern:   "**/*.g4",
		GeneratedPattern: "**/*.java",
	}
	old := base.Add(-time.Hour)
	writeAt(t, filepath.Join(opts.SourceRoot, "expr", "Expr.g4"), old)
	touch(t, filepath.Join(opts.SourceRoot, "expr"), old)
	touch(t, opts.SourceRoot, old)
	writeAt(t, filepath.Join(opts.FinalRoot, "a", "ExprParser.java"), base)
	if err := os.MkdirAll(filepath.Join(opts.RawRoot, "leftover", "dirs"), 0o755); err != nil {
		t.Fatal(err)
	}
	return opts
}

func TestProbe(t *testing.T) {
	t.Parallel()

	base := time.Now().Add(-24 * time.Hour).Truncate(time.Second)

	tests := []struct {
		name   string
		mutate func(t *testing.T, opts Options)
		want   bool
		noRaw  bool
		reason string
	}{
		{
			name:   "unchanged",
			mutate: func(*testing.T, Options) {},
			want:   true,
			reason: "up to date",
		},
		{
			name: "grammar edited",
			mutate: func(t *testing.T, opts Options) {
				touch(t, filepath.Join(opts.SourceRoot, "expr", "Expr.g4"), base.Add(time.Minute))
			},
			reason: "sources changed",
		},
		{
			name: "grammar removed",
			mutate: func(t *testing.T, opts Options) {
				dir := filepath.Join(opts.SourceRoot, "expr")
				if err := os.Remove(filepath.Join(dir, "Expr.g4")); err != nil {
					t.Fatal(err)
				}
				touch(t, dir, base.Add(time.Minute))
			},
			reason: "sources changed",
		},
		{
			name: "non grammar file ignored",
			mutate: func(t *testing.T, opts Options) {
				path := filepath.Join(opts.SourceRoot, "expr", "notes.txt")
				writeAt(t, path, base.Add(time.Hour))
				touch(t, filepath.Join(opts.SourceRoot, "expr"), base.Add(-time.Hour))
			},
			want:   true,
			reason: "up to date",
		},
		{
			name: "output tree missing",
			mutate: func(t *testing.T, opts Options) {
				if err := os.RemoveAll(opts.FinalRoot); err != nil {
					t.Fatal(err)
				}
			},
			reason: "output tree missing",
		},
		{
			name: "output tree empty",
			mutate: func(t *testing.T, opts Options) {
				if err := os.Remove(filepath.Join(opts.FinalRoot, "a", "ExprParser.java")); err != nil {
					t.Fatal(err)
				}
			},
			reason: "output tree empty",
		},
		{
			name: "raw tree missing after clean",
			mutate: func(t *testing.T, opts Options) {
				if err := os.RemoveAll(opts.RawRoot); err != nil {
					t.Fatal(err)
				}
			},
			reason: "raw tree missing",
		},
		{
			name: "raw tree holds unrouted output",
			mutate: func(t *testing.T, opts Options) {
				writeAt(t, filepath.Join(opts.RawRoot, "LexParser.java"), base.Add(-2*time.Hour))
			},
			reason: "raw tree not drained",
		},
		{
			name: "raw tree holds other files",
			mutate: func(t *testing.T, opts Options) {
				writeAt(t, filepath.Join(opts.RawRoot, "Expr.tokens"), base)
			},
			want:   true,
			reason: "up to date",
		},
		{
			name: "no grammars and no outputs",
			mutate: func(t *testing.T, opts Options) {
				if err := os.RemoveAll(filepath.Join(opts.SourceRoot, "expr")); err != nil {
					t.Fatal(err)
				}
				if err := os.RemoveAll(opts.FinalRoot); err != nil {
					t.Fatal(err)
				}
			},
			want:   true,
			reason: "no grammars",
		},
		{
			name: "all grammars removed",
			mutate: func(t *testing.T, opts Options) {
				if err := os.Remove(filepath.Join(opts.SourceRoot, "expr", "Expr.g4")); err != nil {
					t.Fatal(err)
				}
				touch(t, filepath.Join(opts.SourceRoot, "expr"), base.Add(-time.Hour))
			},
			reason: "sources removed",
		},
		{
			name: "raw tree check skipped",
			mutate: func(t *testing.T, opts Options) {
				if err := os.RemoveAll(opts.RawRoot); err != nil {
					t.Fatal(err)
				}
			},
			noRaw:  true,
			want:   true,
			reason: "up to date",
		},
		{
			name: "source tree missing",
			mutate: func(t *testing.T, opts Options) {
				if err := os.RemoveAll(opts.SourceRoot); err != nil {
					t.Fatal(err)
				}
			},
			reason: "source tree missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := layout(t, base)
			tt.mutate(t, opts)
			if tt.noRaw {
				opts.RawRoot = ""
			}

			v, err := Probe(opts)
			if err != nil {
				t.Fatalf("Probe() error: %v", err)
			}
			if v.UpToDate != tt.want {
				t.Errorf("UpToDate = %v, want %v (reason %q)", v.UpToDate, tt.want, v.Reason)
			}
			if v.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", v.Reason, tt.reason)
			}
		})
	}
}

func TestProbe_Fingerprints(t *testing.T) {
	t.Parallel()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	opts := layout(t, base)
	writeAt(t, filepath.Join(opts.FinalRoot, "b", "ExprLexer.java"), base.Add(time.Minute))

	v, err := Probe(opts)
	if err != nil {
		t.Fatal(err)
	}
	if v.Sources.Files != 1 || v.Outputs.Files != 2 {
		t.Errorf("unexpected counts: %+v", v)
	}
	if !v.Outputs.Time.Equal(base) {
		t.Errorf("output time = %v, want oldest %v", v.Outputs.Time, base)
	}
}
