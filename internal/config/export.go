// Package config holds the export configuration: command-line flags layered
// over an optional JSON defaults file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/raydata/internal/raydata"
)

// ExportConfig is the configuration of one export run. Nil fields take their
// defaults from the Get* accessors, so partial JSON files are safe.
type ExportConfig struct {
	RunDir       *string `json:"run_dir,omitempty"`
	MaxRays      *int    `json:"max_rays,omitempty"`
	OutputDir    *string `json:"output_dir,omitempty"`
	Output       *string `json:"output,omitempty"`
	MediumOutput *bool   `json:"medium_output,omitempty"`

	// Optional side outputs.
	PNG     *string `json:"png,omitempty"`
	HTML    *string `json:"html,omitempty"`
	Catalog *string `json:"catalog,omitempty"`

	Quiet *bool `json:"quiet,omitempty"`
}

// maxConfigSize bounds the JSON defaults file.
const maxConfigSize = 1 * 1024 * 1024

// LoadExportConfig loads an ExportConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadExportConfig(path string) (*ExportConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ExportConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Merge copies every non-nil field of override onto c.
func (c *ExportConfig) Merge(override *ExportConfig) {
	if override == nil {
		return
	}
	if override.RunDir != nil {
		c.RunDir = override.RunDir
	}
	if override.MaxRays != nil {
		c.MaxRays = override.MaxRays
	}
	if override.OutputDir != nil {
		c.OutputDir = override.OutputDir
	}
	if override.Output != nil {
		c.Output = override.Output
	}
	if override.MediumOutput != nil {
		c.MediumOutput = override.MediumOutput
	}
	if override.PNG != nil {
		c.PNG = override.PNG
	}
	if override.HTML != nil {
		c.HTML = override.HTML
	}
	if override.Catalog != nil {
		c.Catalog = override.Catalog
	}
	if override.Quiet != nil {
		c.Quiet = override.Quiet
	}
}

// Validate checks that the configured values are usable.
func (c *ExportConfig) Validate() error {
	if c.MaxRays != nil && *c.MaxRays < 0 {
		return fmt.Errorf("max_rays must be non-negative, got %d", *c.MaxRays)
	}
	return nil
}

// ValidateForRun additionally requires the fields an export cannot do without.
func (c *ExportConfig) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.GetRunDir() == "" {
		return fmt.Errorf("run directory is required")
	}
	return nil
}

func (c *ExportConfig) GetRunDir() string { return stringOr(c.RunDir, "") }

// GetMaxRays returns max_rays or the default of 2000.
func (c *ExportConfig) GetMaxRays() int {
	if c.MaxRays == nil {
		return raydata.DefaultMaxRays
	}
	return *c.MaxRays
}

// GetOutputDir returns output_dir or the current directory.
func (c *ExportConfig) GetOutputDir() string { return stringOr(c.OutputDir, ".") }

func (c *ExportConfig) GetOutput() string { return stringOr(c.Output, "") }

func (c *ExportConfig) GetMediumOutput() bool { return boolOr(c.MediumOutput, false) }

func (c *ExportConfig) GetPNG() string { return stringOr(c.PNG, "") }

func (c *ExportConfig) GetHTML() string { return stringOr(c.HTML, "") }

func (c *ExportConfig) GetCatalog() string { return stringOr(c.Catalog, "") }

func (c *ExportConfig) GetQuiet() bool { return boolOr(c.Quiet, false) }

// Options converts the configuration into exporter options.
func (c *ExportConfig) Options() raydata.Options {
	return raydata.Options{
		RunDir:       c.GetRunDir(),
		MaxRays:      c.GetMaxRays(),
		OutputDir:    c.GetOutputDir(),
		OutputPath:   c.GetOutput(),
		MediumOutput: c.GetMediumOutput(),
	}
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
