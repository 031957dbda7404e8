package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string) // setup before running
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name:    "init empty directory",
			args:    []string{},
			wantErr: false,
			wantFiles: []string{
				"leapfm.yaml",
				"model.fm",
				"scenario.yaml",
				"functions/example.star",
				".gitignore",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapfm.yaml"), []byte("model: old.fm\n"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapfm.yaml"), []byte("model: old.fm\n"), 0600)
			},
			args:    []string{"--force"},
			wantErr: false,
			wantFiles: []string{
				"leapfm.yaml",
				"model.fm",
			},
		},
		{
			name:      "init into new directory",
			args:      []string{"sub/project"},
			wantFiles: []string{"sub/project/leapfm.yaml", "sub/project/model.fm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			oldWd, _ := os.Getwd()
			require.NoError(t, os.Chdir(tmpDir))
			defer func() { _ = os.Chdir(oldWd) }()

			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				path := filepath.Join(tmpDir, f)
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "expected file/dir %q to exist", f)
			}
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
}

func TestInitCreatesValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.NoError(t, err)

	content, err := os.ReadFile("leapfm.yaml")
	require.NoError(t, err, "failed to read leapfm.yaml")

	expectedContents := []string{
		"model: model.fm",
		"scenario: scenario.yaml",
		"functions_dir: functions",
		"state_path:",
	}

	for _, expected := range expectedContents {
		assert.Contains(t, string(content), expected, "config should contain %q", expected)
	}
}

func TestGroupTemplateFiles(t *testing.T) {
	groups := groupTemplateFiles([]string{".gitignore", "leapfm.yaml", "model.fm", "scenario.yaml", "functions/example.star"})

	require.Len(t, groups, 3)
	assert.Equal(t, "Configuration", groups[0].title)
	assert.Equal(t, []string{".gitignore", "leapfm.yaml"}, groups[0].files)
	assert.Equal(t, []string{"model.fm", "scenario.yaml"}, groups[1].files)
	assert.Equal(t, []string{"functions/example.star"}, groups[2].files)

	assert.Empty(t, groupTemplateFiles(nil))
}
