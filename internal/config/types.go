// Package config provides shared project configuration for leapfm.
// This package is decoupled from CLI concerns so project files can be read
// by any tool that needs the model layout.
package config

import (
	"fmt"

	"github.com/leapstack-labs/leapfm/internal/export"
)

// ProjectConfig holds the project file settings shared by every command.
type ProjectConfig struct {
	Model        string         `koanf:"model"`
	Schema       string         `koanf:"schema"`
	Scenario     string         `koanf:"scenario"`
	FunctionsDir string         `koanf:"functions_dir"`
	Years        int            `koanf:"years"`
	Months       int            `koanf:"months"`
	Export       *export.Config `koanf:"export"`
}

// ValidateExport checks an export target against the registered sinks.
func ValidateExport(e *export.Config) error {
	if e == nil {
		return nil
	}
	if e.Type == "" {
		return fmt.Errorf("export type is required")
	}
	if !export.IsRegistered(e.Type) {
		return fmt.Errorf("unknown export type %q (available: %v)", e.Type, export.List())
	}
	if e.Type == "postgres" && e.DSN == "" && e.Host == "" {
		return fmt.Errorf("postgres export requires host or dsn")
	}
	return nil
}
