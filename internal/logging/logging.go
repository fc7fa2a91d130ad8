// SPDX-License-Identifier: MPL-2.0

// Package logging builds the charmbracelet loggers used by the pipeline
// components. Each component logs under its own prefix.
package logging

import (
	"io"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w. Debug records are emitted only when
// verbose is set.
func New(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "gramflow",
		Level:  level,
	})
}

// Component returns l scoped to a component prefix, or a discarding logger
// when l is nil so library callers may leave the logger unset.
func Component(l *log.Logger, prefix string) *log.Logger {
	if l == nil {
		return log.NewWithOptions(io.Discard, log.Options{Prefix: prefix})
	}
	return l.WithPrefix(prefix)
}
