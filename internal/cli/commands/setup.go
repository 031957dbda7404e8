package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapfm/internal/aggregate"
	"github.com/leapstack-labs/leapfm/internal/cli/config"
	"github.com/leapstack-labs/leapfm/internal/cli/output"
	"github.com/leapstack-labs/leapfm/internal/engine"
	"github.com/leapstack-labs/leapfm/internal/functions"
	"github.com/leapstack-labs/leapfm/internal/scenario"
	"github.com/leapstack-labs/leapfm/internal/schema"
	"github.com/leapstack-labs/leapfm/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a renderer for the
// configured output mode.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// WithMode replaces the renderer with one in the given mode.
func (c *CommandContext) WithMode(cmd *cobra.Command, mode output.Mode) {
	c.Renderer = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
}

// Project is everything a run reads from disk.
type Project struct {
	ModelPath string
	Source    string
	Schema    *schema.Schema
	Scenario  *scenario.Scenario
	Functions *functions.Registry
	// Custom lists the registered Starlark functions.
	Custom []string
}

// LoadProject reads the model, schema, scenario and function files named
// by the configuration. scenarioPath overrides the configured scenario
// when non-empty.
func (c *CommandContext) LoadProject(scenarioPath string) (*Project, error) {
	cfg := c.Cfg
	if err := cfg.ValidateFiles(); err != nil {
		return nil, err
	}
	if scenarioPath == "" {
		scenarioPath = cfg.Scenario
	}

	src, err := os.ReadFile(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	sch, err := schema.Load(cfg.Schema)
	if err != nil {
		return nil, err
	}

	sc, err := loadScenario(scenarioPath)
	if err != nil {
		return nil, err
	}

	funcs := functions.Builtins()
	custom, err := functions.LoadStarlark(funcs, cfg.FunctionsDir, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load functions: %w", err)
	}

	c.Logger.Debug("project loaded",
		"model", cfg.Model,
		"scenario", sc.Name,
		"types", len(sch.Types),
		"custom_functions", len(custom))

	return &Project{
		ModelPath: cfg.Model,
		Source:    string(src),
		Schema:    sch,
		Scenario:  sc,
		Functions: funcs,
		Custom:    custom,
	}, nil
}

// loadScenario loads a scenario file, naming unnamed scenarios after the file.
func loadScenario(path string) (*scenario.Scenario, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	if path != "" && sc.Name == scenario.Empty().Name {
		base := filepath.Base(path)
		sc.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	return sc, nil
}

// Evaluation is one finished run with its statements.
type Evaluation struct {
	Scenario   *scenario.Scenario
	Result     *engine.Result
	Statements *aggregate.Result
}

// Evaluate executes the project under sc and aggregates its statements.
func (c *CommandContext) Evaluate(ctx context.Context, p *Project, sc *scenario.Scenario) (*Evaluation, error) {
	if sc == nil {
		sc = p.Scenario
	}
	res, err := engine.Run(ctx, engine.Request{
		Source:    p.Source,
		Schema:    p.Schema,
		Scenario:  sc,
		Context:   c.Cfg.Timeline(),
		Functions: p.Functions,
		Logger:    c.Logger,
	})
	if err != nil {
		return nil, err
	}

	stmts, err := aggregate.Aggregate(res.Store, res.File.Objects, p.Schema, nil, c.Logger)
	if err != nil {
		return nil, err
	}
	return &Evaluation{Scenario: sc, Result: res, Statements: stmts}, nil
}

// OpenState opens and migrates the run history database, creating its
// directory when needed. The caller closes the store.
func (c *CommandContext) OpenState() (*state.SQLiteStore, error) {
	stateDir := filepath.Dir(c.Cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	years, err := strconv.Atoi(getEnvOrDefault("LEAPFM_YEARS", ""))
	if err != nil || years < 1 {
		years = config.DefaultYears
	}

	return &config.Config{
		Model:        getEnvOrDefault("LEAPFM_MODEL", config.DefaultModelFile),
		Schema:       os.Getenv("LEAPFM_SCHEMA"),
		Scenario:     os.Getenv("LEAPFM_SCENARIO"),
		FunctionsDir: getEnvOrDefault("LEAPFM_FUNCTIONS_DIR", config.DefaultFunctionsDir),
		StatePath:    getEnvOrDefault("LEAPFM_STATE_PATH", config.DefaultStateFile),
		Years:        years,
		Verbose:      os.Getenv("LEAPFM_VERBOSE") == "true",
		OutputFormat: os.Getenv("LEAPFM_OUTPUT"),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
