package config

import (
	"strings"

	"github.com/leapstack-labs/leapfm/internal/export"
)

// Default configuration values.
const (
	DefaultModelFile    = "model.fm"
	DefaultFunctionsDir = "functions"
	DefaultStateFile    = ".leapfm/state.db"
	DefaultExportFile   = ".leapfm/export.db"
	DefaultYears        = 5
	DefaultExportType   = "sqlite"
	DefaultPostgresPort = 5432
)

// ApplyDefaults applies default values to a ProjectConfig.
func ApplyDefaults(c *ProjectConfig) {
	if c == nil {
		return
	}
	if c.Model == "" {
		c.Model = DefaultModelFile
	}
	if c.FunctionsDir == "" {
		c.FunctionsDir = DefaultFunctionsDir
	}
	if c.Years == 0 {
		c.Years = DefaultYears
	}
	ApplyExportDefaults(c.Export)
}

// ApplyExportDefaults applies default values to an export target based on
// its type.
func ApplyExportDefaults(e *export.Config) {
	if e == nil {
		return
	}
	if e.Type == "" {
		e.Type = DefaultExportType
	}
	e.Type = strings.ToLower(e.Type)
	if e.Table == "" {
		e.Table = export.DefaultTable
	}

	switch e.Type {
	case "postgres":
		if e.Port == 0 && e.DSN == "" {
			e.Port = DefaultPostgresPort
		}
	case "sqlite", "duckdb":
		if e.Path == "" && e.DSN == "" {
			e.Path = DefaultExportFile
		}
	}
}
