// SPDX-License-Identifier: MPL-2.0

// Package config loads the gramflow project configuration using Viper, with
// CUE as the primary file format.
//
// The project file is looked up in the project directory as gramflow.cue,
// gramflow.toml, gramflow.yaml or gramflow.yml (first match wins) unless an
// explicit file is given. Whatever the format, the decoded document is
// validated against the embedded CUE schema (config_schema.cue) and merged
// over the defaults. GRAMFLOW_* environment variables override file values,
// e.g. GRAMFLOW_PATHS_FINAL or GRAMFLOW_COMPILER_MAX_HEAP.
package config
