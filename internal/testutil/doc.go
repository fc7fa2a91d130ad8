// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include project tree setup (WriteFile, WriteTree, MustMkdirAll),
// timestamp control (Backdate) and a fake grammar compiler (GrammarCompiler)
// that emits one generated source per staged grammar.
package testutil
