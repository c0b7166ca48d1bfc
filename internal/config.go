package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/merge"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Standards StandardsConfig   `yaml:"standards"`
	Adoption  AdoptionConfig    `yaml:"adoption"`
	Snapshots SnapshotsConfig   `yaml:"snapshots"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Standards.Validate(); err != nil {
		return err
	}
	if err := c.Adoption.Validate(); err != nil {
		return err
	}
	return c.Snapshots.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// StandardsConfig locates the standards tree and names the navigation
// documents the validator certifies.
type StandardsConfig struct {
	// Path is the root of the standards tree.
	Path string `yaml:"standards_path"`
	// ContentRoots are tree-relative directories holding guide files.
	ContentRoots []string `yaml:"content_roots"`
	// IndexFiles are the tree-relative navigation documents that must
	// list every guide.
	IndexFiles []string `yaml:"index_files"`
	// TemplateFile is the tree-relative template merged downstream.
	TemplateFile string `yaml:"template_file"`
}

// Validate validates the standards configuration.
func (c *StandardsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ContentRoots, validation.Required),
		validation.Field(&c.IndexFiles, validation.Required),
		validation.Field(&c.TemplateFile, validation.Required),
	)
}

// AdoptionConfig controls how the template is merged into a downstream
// project.
//
// Mode selects the strategy:
//   - "fresh": the downstream file must not exist; the full template is
//     written with all blocks marked.
//   - "merge" (default): managed blocks are patched in place, local edits
//     inside a managed block surface as conflicts.
//   - "pinned": like merge, but the template comes from the snapshot named
//     by PinnedVersion and the downstream file records the pin.
type AdoptionConfig struct {
	Mode          string `yaml:"mode"`
	ProjectPath   string `yaml:"project_path"`
	ConfigFile    string `yaml:"config_file"`
	PinnedVersion string `yaml:"pinned_version"`
	StackOverride string `yaml:"stack_override"`
	// CommandOverrides map command names onto project-specific shell
	// strings so merging never clobbers local build/test commands.
	CommandOverrides map[string]string `yaml:"command_overrides"`
	// AfterSection anchors newly inserted blocks after the heading with
	// this slug; empty appends at end of file.
	AfterSection string `yaml:"after_section"`
}

// Validate validates the adoption configuration.
func (c *AdoptionConfig) Validate() error {
	// Normalise empty mode to "merge" so a bare config stays usable.
	if c.Mode == "" {
		c.Mode = string(merge.ModeMerge)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(
			string(merge.ModeFresh), string(merge.ModeMerge), string(merge.ModePinned))),
		validation.Field(&c.ProjectPath, validation.Required),
		validation.Field(&c.ConfigFile, validation.Required),
	); err != nil {
		return err
	}
	if c.Mode == string(merge.ModePinned) && c.PinnedVersion == "" {
		return fmt.Errorf("adoption: mode is %q but pinned_version is empty", c.Mode)
	}
	return nil
}

// SnapshotsConfig holds the snapshot destination directory.
type SnapshotsConfig struct {
	Path string `yaml:"snapshots_path"`
}

// Validate validates the snapshots configuration.
func (c *SnapshotsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Standards: StandardsConfig{
			Path:         ".",
			ContentRoots: []string{"guides"},
			IndexFiles:   []string{"AGENTS.md", "README.md"},
			TemplateFile: "templates/AGENTS.md",
		},
		Adoption: AdoptionConfig{
			Mode:        string(merge.ModeMerge),
			ProjectPath: ".",
			ConfigFile:  "AGENTS.md",
		},
		Snapshots: SnapshotsConfig{
			Path: ".snapshots",
		},
	}
}
