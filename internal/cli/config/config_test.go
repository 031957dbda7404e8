package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfm/internal/export"
	"github.com/leapstack-labs/leapfm/internal/series"
)

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "config file")
	flags.String("project-dir", "", "project directory")
	flags.String("model", "", "model file")
	flags.String("schema", "", "schema file")
	flags.String("scenario", "", "scenario file")
	flags.String("functions-dir", "", "functions directory")
	flags.String("state", "", "state database")
	flags.Int("months", 0, "months")
	flags.Int("years", 0, "years")
	flags.BoolP("verbose", "v", false, "verbose")
	flags.StringP("output", "o", "", "output mode")
	return flags
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "leapfm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single variable", input: "${TEST_VAR_ONE}", expected: "value_one"},
		{name: "multiple variables", input: "${TEST_VAR_ONE}/${TEST_VAR_TWO}", expected: "value_one/value_two"},
		{name: "unset variable stays as-is", input: "${UNSET_VARIABLE}", expected: "${UNSET_VARIABLE}"},
		{name: "no variables", input: "plain string", expected: "plain string"},
		{name: "empty string", input: "", expected: ""},
		{name: "mixed set and unset", input: "${TEST_VAR_ONE}:${UNSET_VAR}", expected: "value_one:${UNSET_VAR}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "functions_dir", envKey("LEAPFM_FUNCTIONS_DIR"))
	assert.Equal(t, "export.type", envKey("LEAPFM_EXPORT_TYPE"))
	assert.Equal(t, "state_path", envKey("LEAPFM_STATE_PATH"))
}

func TestLoadConfig_FileResolvesRelativeToProject(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, `model: plan.fm
scenario: scenarios/base.yaml
years: 2
export:
  type: duckdb
  path: out/results.duckdb
  password: ${LEAPFM_TEST_SECRET}
`)
	t.Setenv("LEAPFM_TEST_SECRET", "s3cret")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, tmpDir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(tmpDir, "plan.fm"), cfg.Model)
	assert.Equal(t, filepath.Join(tmpDir, "scenarios", "base.yaml"), cfg.Scenario)
	assert.Equal(t, filepath.Join(tmpDir, DefaultFunctionsDir), cfg.FunctionsDir)
	assert.Equal(t, filepath.Join(tmpDir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, "", cfg.Schema, "empty schema selects the embedded default")
	assert.Equal(t, series.Context{Months: 24, Years: 2}, cfg.Timeline())

	require.NotNil(t, cfg.Export)
	assert.Equal(t, "duckdb", cfg.Export.Type)
	assert.Equal(t, filepath.Join(tmpDir, "out", "results.duckdb"), cfg.Export.Path)
	assert.Equal(t, "s3cret", cfg.Export.Password)
	assert.Equal(t, export.DefaultTable, cfg.Export.Table)

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "years: 2\nmonths: 6\n")

	t.Setenv("LEAPFM_YEARS", "3")
	t.Setenv("LEAPFM_MONTHS", "9")

	flags := newFlagSet()
	require.NoError(t, flags.Set("years", "4"))
	require.NoError(t, flags.Set("state", "custom.db"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Years, "flag value should override config file and env var")
	assert.Equal(t, 9, cfg.Months, "env var should be used when flag is not set")

	wantState, err := filepath.Abs("custom.db")
	require.NoError(t, err)
	assert.Equal(t, wantState, cfg.StatePath, "flag paths are relative to the working directory")
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "output: text\nexport:\n  type: sqlite\n")
	t.Setenv("LEAPFM_OUTPUT", "json")
	t.Setenv("LEAPFM_EXPORT_TYPE", "duckdb")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "duckdb", cfg.Export.Type)
}

func TestLoadConfig_ProjectRootFromModelFlag(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "scenario: base.yaml\n")

	flags := newFlagSet()
	require.NoError(t, flags.Set("model", filepath.Join(tmpDir, "model.fm")))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, tmpDir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(tmpDir, "base.yaml"), cfg.Scenario)
	assert.Equal(t, filepath.Join(tmpDir, "leapfm.yaml"), GetConfigFileUsed())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "years", content: "years: 0\nmonths: 12\n", errMsg: "years must be at least 1"},
		{name: "output", content: "output: yaml\n", errMsg: "unknown output mode"},
		{name: "export type", content: "export:\n  type: oracle\n", errMsg: "unknown export type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			cfgPath := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(cfgPath, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ValidateFiles(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.fm")

	cfg := &Config{Model: model, Years: 1}
	err := cfg.ValidateFiles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leapfm init")

	require.NoError(t, os.WriteFile(model, []byte("A = start()\n"), 0600))
	assert.NoError(t, cfg.ValidateFiles())

	cfg.Scenario = filepath.Join(dir, "missing.yaml")
	assert.Error(t, cfg.ValidateFiles())
}
