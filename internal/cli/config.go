// Package cli holds the option handling shared by the splq binary: flag
// values merged over an optional JSON configuration file.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the analyzer's CLI configuration.
type Config struct {
	// MacroFiles are macro definition files consulted on every analysis.
	MacroFiles []string `json:"macro_files"`

	// OutputJSON switches the report to JSON.
	OutputJSON bool `json:"output_json"`

	// Verbose enables debug logging.
	Verbose bool `json:"verbose"`

	// Quiet suppresses diagnostic printing.
	Quiet bool `json:"quiet"`
}

// DefaultConfigPath returns the user-level configuration file location.
// The SPLQ_CONFIG environment variable overrides it.
func DefaultConfigPath() string {
	if p := os.Getenv("SPLQ_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "splq", "config.json")
}

// LoadConfig reads the configuration file at path. A missing file is not
// an error; the zero configuration is returned.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays flag-provided values onto the file configuration. Slices
// append; booleans are ORed.
func (c *Config) Merge(flags *Config) *Config {
	return &Config{
		MacroFiles: append(append([]string{}, c.MacroFiles...), flags.MacroFiles...),
		OutputJSON: c.OutputJSON || flags.OutputJSON,
		Verbose:    c.Verbose || flags.Verbose,
		Quiet:      c.Quiet || flags.Quiet,
	}
}
