// Package config provides configuration management for the leapfm CLI.
//
// Settings are layered from defaults, the project file (leapfm.yaml), LEAPFM_
// environment variables and explicitly set flags, in increasing precedence.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapfm/internal/config"
	"github.com/leapstack-labs/leapfm/internal/export"
	"github.com/leapstack-labs/leapfm/internal/series"
)

// ExportConfig is an alias for the export target settings.
// This allows CLI code to use config.ExportConfig without importing the export package.
type ExportConfig = export.Config

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot anchors every relative path. It is never read from files.
	ProjectRoot  string        `koanf:"-"`
	Model        string        `koanf:"model"`
	Schema       string        `koanf:"schema"`
	Scenario     string        `koanf:"scenario"`
	FunctionsDir string        `koanf:"functions_dir"`
	StatePath    string        `koanf:"state_path"`
	Months       int           `koanf:"months"`
	Years        int           `koanf:"years"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
	Export       *ExportConfig `koanf:"export"`
}

// Timeline returns the run context. Months defaults to the full horizon.
func (c *Config) Timeline() series.Context {
	months := c.Months
	if months == 0 {
		months = c.Years * series.MonthsPerYear
	}
	return series.Context{Months: months, Years: c.Years}
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultModelFile    = sharedcfg.DefaultModelFile
	DefaultFunctionsDir = sharedcfg.DefaultFunctionsDir
	DefaultStateFile    = sharedcfg.DefaultStateFile
	DefaultYears        = sharedcfg.DefaultYears
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
