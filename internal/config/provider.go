// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
)

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific project file when set.
	ConfigFilePath string
	// ProjectDir is searched for a project file. Empty means the working directory.
	ProjectDir string
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider backed by project files.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return loadWithOptions(ctx, opts)
}

func (o LoadOptions) projectDir() string {
	if o.ProjectDir != "" {
		return o.ProjectDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
