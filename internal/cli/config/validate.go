package config

import (
	"fmt"
	"os"

	sharedcfg "github.com/leapstack-labs/leapfm/internal/config"
	"github.com/leapstack-labs/leapfm/internal/cli/output"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if err := c.Timeline().Validate(); err != nil {
		return err
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	return sharedcfg.ValidateExport(c.Export)
}

// ValidateFiles checks that the model and any configured inputs exist.
// Only commands that read the model call it, so help works anywhere.
func (c *Config) ValidateFiles() error {
	if _, err := os.Stat(c.Model); os.IsNotExist(err) {
		return fmt.Errorf("model file does not exist: %s\nHint: run 'leapfm init' or use --model to specify a different path", c.Model)
	}
	for _, p := range []struct{ what, path string }{{"schema", c.Schema}, {"scenario", c.Scenario}} {
		if p.path == "" {
			continue
		}
		if _, err := os.Stat(p.path); os.IsNotExist(err) {
			return fmt.Errorf("%s file does not exist: %s", p.what, p.path)
		}
	}
	return nil
}
