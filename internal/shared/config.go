package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/collectarr/internal/models"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Emby        EmbyConfig              `toml:"emby"`
	MDBList     MDBListConfig           `toml:"mdblist"`
	Trakt       TraktConfig             `toml:"trakt"`
	Database    DatabaseConfig          `toml:"database"`
	Settings    SettingsConfig          `toml:"settings"`
	Collections []models.CollectionSpec `toml:"collections"`
}

// EmbyConfig contains Emby server connection settings.
type EmbyConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
	UserID string `toml:"user_id"`
}

// MDBListConfig contains MDBList API credentials.
type MDBListConfig struct {
	APIKey string `toml:"api_key"`
}

// TraktConfig contains Trakt API credentials.
type TraktConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	AccessToken  string `toml:"access_token"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SettingsConfig contains run-level defaults. Per-collection specs may
// override match_priority and remove_missing.
type SettingsConfig struct {
	DryRun         bool     `toml:"dry_run"`
	RemoveMissing  bool     `toml:"remove_missing"`
	DeleteUnlisted bool     `toml:"delete_unlisted"`
	ClearFirst     bool     `toml:"clear_collections"`
	MatchPriority  []string `toml:"match_priority"`
	LogLevel       string   `toml:"log_level"`
}

var validMatchStrategies = map[string]bool{
	"imdb_id": true,
	"tmdb_id": true,
	"title":   true,
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the
// embedded example config. An existing file is only replaced when overwrite
// is set.
func CreateConfigFile(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidArgument, path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks run-level settings and that the Emby connection is configured.
// Collection specs are validated individually via [ValidateSpec] so one
// malformed spec fails alone instead of aborting the whole run.
func (c *Config) Validate() error {
	if c.Emby.URL == "" {
		return fmt.Errorf("%w: emby.url is required", ErrInvalidConfig)
	}
	if c.Emby.APIKey == "" {
		return fmt.Errorf("%w: emby.api_key is required", ErrInvalidConfig)
	}
	for _, s := range c.Settings.MatchPriority {
		if !validMatchStrategies[s] {
			return fmt.Errorf("%w: unknown match strategy %q", ErrInvalidConfig, s)
		}
	}
	return nil
}

// MatchPriorityOrDefault returns the configured default strategy order, falling back
// to imdb_id, tmdb_id, title when unset.
func (s SettingsConfig) MatchPriorityOrDefault() []string {
	if len(s.MatchPriority) > 0 {
		return s.MatchPriority
	}
	return []string{"imdb_id", "tmdb_id", "title"}
}

// ValidateSpec checks one collection spec for a usable name, source and
// locator, and for sane seasonal window bounds.
func ValidateSpec(spec models.CollectionSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}

	switch spec.Source {
	case "mdblist":
		if spec.ListID == "" {
			return fmt.Errorf("%w: %s: mdblist source requires list_id", ErrInvalidSpec, spec.Name)
		}
	case "trakt":
		hasUserList := spec.Username != "" && spec.ListSlug != ""
		if !hasUserList && spec.Category == "" {
			return fmt.Errorf("%w: %s: trakt source requires username+list_slug or category", ErrInvalidSpec, spec.Name)
		}
	case "":
		return fmt.Errorf("%w: %s: source is required", ErrInvalidSpec, spec.Name)
	default:
		return fmt.Errorf("%w: %s: unknown source %q", ErrInvalidSpec, spec.Name, spec.Source)
	}

	if spec.Seasonal != nil {
		if err := spec.Seasonal.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSpec, spec.Name, err)
		}
	}

	for _, s := range spec.MatchPriority {
		if !validMatchStrategies[s] {
			return fmt.Errorf("%w: %s: unknown match strategy %q", ErrInvalidSpec, spec.Name, s)
		}
	}

	switch spec.SortBy {
	case "", "rating", "votes", "title":
	default:
		return fmt.Errorf("%w: %s: unknown sort_by %q", ErrInvalidSpec, spec.Name, spec.SortBy)
	}

	return nil
}
