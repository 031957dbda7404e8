package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapfm/internal/cli/output"
	intconfig "github.com/leapstack-labs/leapfm/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapfm project",
		Long: `Initialize a new leapfm project with a working sample model.

This creates:
  - model.fm with a small subscription business
  - scenario.yaml with base assumptions
  - functions/ directory for Starlark functions
  - leapfm.yaml configuration file`,
		Example: `  # Initialize in current directory
  leapfm init

  # Initialize in a new directory
  leapfm init my-model

  # Force overwrite existing files
  leapfm init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if !force {
		if existing, err := intconfig.LoadFromDir(dir); err != nil || existing != nil {
			return fmt.Errorf("%s already exists. Use --force to overwrite", intconfig.ConfigFileName)
		}
	}

	if err := copyTemplate(projectTemplate, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles(projectTemplate)
	for _, group := range groupTemplateFiles(files) {
		r.Header(2, group.title)
		for _, f := range group.files {
			r.StatusLine(f, "success", "")
		}
		r.Println("")
	}

	r.Success("leapfm project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  leapfm check        Validate the model and scenario")
	r.Println("  leapfm run          Execute the model")
	r.Println("  leapfm statements   Show the financial statements")
	r.Println("  leapfm watch        Re-run on every save")

	return nil
}
