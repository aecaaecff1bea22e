// Package config loads and writes the per-project .tc/config.yaml and derives
// the on-disk layout every other package works against.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrCorruptConfig indicates the config file exists but could not be parsed.
var ErrCorruptConfig = errors.New("config file is not valid YAML")

// DefaultEngineName is the engine recorded in new config files.
const DefaultEngineName = "openviking"

// DefaultLargeSaveThreshold caps how many files a bootstrap save may publish
// without --force-large-save.
const DefaultLargeSaveThreshold = 400

// PathsConfig records where the shared store, sessions and index live,
// relative to the project root.
type PathsConfig struct {
	Shared   string `mapstructure:"shared" yaml:"shared"`
	Sessions string `mapstructure:"sessions" yaml:"sessions"`
	Index    string `mapstructure:"index" yaml:"index"`
}

// SecurityConfig controls the secret/PII gate applied to published summaries.
type SecurityConfig struct {
	SecretScan      bool `mapstructure:"secret_scan" yaml:"secret_scan"`
	BlockOnFindings bool `mapstructure:"block_on_findings" yaml:"block_on_findings"`
}

// EngineConfig names the external engine and where its checkout lives.
type EngineConfig struct {
	Name       string `mapstructure:"name" yaml:"name"`
	VendorPath string `mapstructure:"vendor_path" yaml:"vendor_path"`
}

// SaveConfig tunes the auto-save flow.
type SaveConfig struct {
	LargeSaveThreshold int `mapstructure:"large_save_threshold" yaml:"large_save_threshold"`
}

// Config holds the project configuration.
// Values are populated from .tc/config.yaml and TC_* env vars.
type Config struct {
	ProjectRoot string         `mapstructure:"project_root" yaml:"project_root"`
	Paths       PathsConfig    `mapstructure:"paths" yaml:"paths"`
	Security    SecurityConfig `mapstructure:"security" yaml:"security"`
	Engine      EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Save        SaveConfig     `mapstructure:"save" yaml:"save"`
}

// Default returns the configuration written by `tc init` for the given layout.
func Default(p Paths) Config {
	return Config{
		ProjectRoot: p.Root,
		Paths: PathsConfig{
			Shared:   p.Rel(p.SharedDir),
			Sessions: p.Rel(p.SessionsDir),
			Index:    p.Rel(p.IndexDir),
		},
		Security: SecurityConfig{SecretScan: true, BlockOnFindings: true},
		Engine: EngineConfig{
			Name:       DefaultEngineName,
			VendorPath: p.Rel(p.EngineDir),
		},
		Save: SaveConfig{LargeSaveThreshold: DefaultLargeSaveThreshold},
	}
}

// Load reads the config file at path, applying built-in defaults for any
// values not set by the file or the environment. A missing file is not an
// error; the defaults for p are returned.
func Load(p Paths, path string) (Config, error) {
	def := Default(p)

	v := viper.New()
	v.SetDefault("project_root", def.ProjectRoot)
	v.SetDefault("paths.shared", def.Paths.Shared)
	v.SetDefault("paths.sessions", def.Paths.Sessions)
	v.SetDefault("paths.index", def.Paths.Index)
	v.SetDefault("security.secret_scan", def.Security.SecretScan)
	v.SetDefault("security.block_on_findings", def.Security.BlockOnFindings)
	v.SetDefault("engine.name", def.Engine.Name)
	v.SetDefault("engine.vendor_path", def.Engine.VendorPath)
	v.SetDefault("save.large_save_threshold", def.Save.LargeSaveThreshold)

	v.SetEnvPrefix("TC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrCorruptConfig, path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
