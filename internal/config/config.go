package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/slides-crop/pkg/codec"
	"github.com/menta2k/slides-crop/pkg/geometry"
	"github.com/menta2k/slides-crop/pkg/project"
)

// Config holds the application configuration
type Config struct {
	Preview   PreviewConfig   `json:"preview" toml:"preview" yaml:"preview"`
	Selection SelectionConfig `json:"selection" toml:"selection" yaml:"selection"`
	Export    ExportConfig    `json:"export" toml:"export" yaml:"export"`
	Log       LogConfig       `json:"log" toml:"log" yaml:"log"`
}

// PreviewConfig holds configuration for preview generation
type PreviewConfig struct {
	Resolution float64 `json:"resolution" toml:"resolution" yaml:"resolution"`
	Format     string  `json:"format" toml:"format" yaml:"format"`
	Quality    int     `json:"quality" toml:"quality" yaml:"quality"`
	TempDir    string  `json:"temp_dir" toml:"temp_dir" yaml:"temp_dir"`
}

// SelectionConfig holds the defaults for new projects
type SelectionConfig struct {
	Target int    `json:"target" toml:"target" yaml:"target"`
	Width  int    `json:"width" toml:"width" yaml:"width"`
	Height int    `json:"height" toml:"height" yaml:"height"`
	Color  string `json:"color" toml:"color" yaml:"color"`
}

// ExportConfig holds configuration for crop export
type ExportConfig struct {
	Format      string `json:"format" toml:"format" yaml:"format"`
	Compression string `json:"compression" toml:"compression" yaml:"compression"`
	Quality     int    `json:"quality" toml:"quality" yaml:"quality"`
	Workers     int    `json:"workers" toml:"workers" yaml:"workers"`
	OutputDir   string `json:"output_dir" toml:"output_dir" yaml:"output_dir"`
}

// LogConfig holds configuration for logging
type LogConfig struct {
	Level  string `json:"level" toml:"level" yaml:"level"`
	Format string `json:"format" toml:"format" yaml:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Preview: PreviewConfig{
			Resolution: 0.25,
			Format:     "png",
			Quality:    85,
		},
		Selection: SelectionConfig{
			Target: 4,
			Width:  1000,
			Height: 1000,
			Color:  "#ff0000",
		},
		Export: ExportConfig{
			Format:      "tif",
			Compression: "deflate",
			Quality:     95,
			Workers:     0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

type fileFormat int

const (
	formatJSON fileFormat = iota
	formatTOML
	formatYAML
)

func formatOf(filename string) fileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		return formatTOML
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// LoadFromFile loads configuration from a JSON, TOML or YAML file, chosen by
// extension. Keys missing from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch formatOf(filename) {
	case formatTOML:
		err = toml.Unmarshal(data, config)
	case formatYAML:
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load is LoadFromFile that returns the defaults when the file does not exist.
func Load(filename string) (*Config, error) {
	config, err := LoadFromFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return config, err
}

// SaveToFile saves configuration in the format given by the file extension
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch formatOf(filename) {
	case formatTOML:
		data, err = toml.Marshal(c)
	case formatYAML:
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains(geometry.PreviewResolutions, c.Preview.Resolution) {
		return fmt.Errorf("preview.resolution must be one of %v", geometry.PreviewResolutions)
	}

	if _, err := codec.ParseFormat(c.Preview.Format); err != nil {
		return fmt.Errorf("preview.format: %w", err)
	}

	if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
		return fmt.Errorf("preview.quality must be between 1 and 100")
	}

	if c.Selection.Target < project.MinSelectionTarget || c.Selection.Target > project.MaxSelectionTarget {
		return fmt.Errorf("selection.target must be between %d and %d", project.MinSelectionTarget, project.MaxSelectionTarget)
	}

	for _, v := range []int{c.Selection.Width, c.Selection.Height} {
		if v < project.MinSelectionSize || v > project.MaxSelectionSize {
			return fmt.Errorf("selection width and height must be between %d and %d", project.MinSelectionSize, project.MaxSelectionSize)
		}
	}

	if _, err := c.SelectionColor(); err != nil {
		return err
	}

	if _, err := codec.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}

	switch strings.ToLower(c.Export.Compression) {
	case "none", "deflate":
	default:
		return fmt.Errorf("export.compression must be none or deflate")
	}

	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100")
	}

	if c.Export.Workers < 0 {
		return fmt.Errorf("export.workers cannot be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}

	switch strings.ToLower(c.Log.Format) {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format must be auto, text or json")
	}

	return nil
}

// SelectionColor parses selection.color as #rrggbb.
func (c *Config) SelectionColor() (color.NRGBA, error) {
	s := c.Selection.Color
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("selection.color must be #rrggbb, got %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("selection.color must be #rrggbb, got %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "slides-crop", "config.json")
}
