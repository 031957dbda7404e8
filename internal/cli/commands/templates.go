package commands

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

const projectTemplate = "project"

// copyTemplate copies an embedded template directory to the target path.
// It handles special file renames (e.g., "gitignore" -> ".gitignore").
func copyTemplate(templateName, targetDir string, force bool) error {
	root := filepath.Join("templates", templateName)

	return fs.WalkDir(templateFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		targetPath := filepath.Join(targetDir, renameSpecialFiles(relPath))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}

		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil // Skip existing files
			}
		}

		content, err := templateFS.ReadFile(path)
		if err != nil {
			return err
		}

		return os.WriteFile(targetPath, content, 0600)
	})
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
func renameSpecialFiles(path string) string {
	base := filepath.Base(path)
	dir := filepath.Dir(path)

	switch base {
	case "gitignore":
		return filepath.Join(dir, ".gitignore")
	default:
		return path
	}
}

// listTemplateFiles returns all files in a template for display purposes.
func listTemplateFiles(templateName string) ([]string, error) {
	var files []string
	root := filepath.Join("templates", templateName)

	err := fs.WalkDir(templateFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relPath, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(renameSpecialFiles(relPath)))
		}
		return nil
	})

	return files, err
}

type fileGroup struct {
	title string
	files []string
}

// groupTemplateFiles splits files into configuration, model and function
// groups, in that order. Empty groups are dropped.
func groupTemplateFiles(files []string) []fileGroup {
	groups := []fileGroup{
		{title: "Configuration"},
		{title: "Model"},
		{title: "Functions"},
	}

	for _, f := range files {
		switch {
		case strings.HasPrefix(f, "functions/"):
			groups[2].files = append(groups[2].files, f)
		case strings.HasSuffix(f, ".fm") || strings.HasPrefix(f, "scenario"):
			groups[1].files = append(groups[1].files, f)
		default:
			groups[0].files = append(groups[0].files, f)
		}
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.files) > 0 {
			out = append(out, g)
		}
	}
	return out
}
