// Package scaffold lays out a new exofit working directory.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/exofit/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// PlotsDir is the directory created next to the config for rendered figures.
const PlotsDir = "plots"

// gitignore keeps rendered figures and downloaded catalogs out of version control.
const gitignore = "plots/\n*.csv\n"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// ExistsError is returned when the config file is already present.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("%s already exists", e.Path)
}

// Initialize writes the commented default config to configPath and creates a
// plots directory and .gitignore beside it. An existing config is replaced
// only when force is set; an existing .gitignore is never touched.
// It returns the paths it created.
func Initialize(configPath string, force bool) ([]string, error) {
	if _, err := os.Stat(configPath); err == nil && !force {
		return nil, &ExistsError{Path: configPath}
	}

	files, err := getTemplateFiles(configPath)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(configPath)
	plots := filepath.Join(dir, PlotsDir)
	if err := os.MkdirAll(plots, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", plots, err)
	}
	created := []string{plots + string(filepath.Separator)}

	ignore := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignore); os.IsNotExist(err) {
		files = append(files, FileInfo{Path: ignore, Content: []byte(gitignore), Permissions: 0644})
	}

	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		created = append(created, file.Path)
	}

	if _, err := config.Load(configPath); err != nil {
		return nil, fmt.Errorf("created %s is invalid: %w", configPath, err)
	}
	return created, nil
}

// Template returns the commented default configuration.
func Template() ([]byte, error) {
	data, err := templatesFS.ReadFile("templates/exofit.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read exofit.yml template: %w", err)
	}
	return data, nil
}

func getTemplateFiles(configPath string) ([]FileInfo, error) {
	tmpl, err := Template()
	if err != nil {
		return nil, err
	}
	return []FileInfo{{Path: configPath, Content: tmpl, Permissions: 0644}}, nil
}
