package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the project-level configuration file.
const ProjectFileName = ".catalogsearch.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CATALOGSEARCH_"

// Config represents the complete catalogsearch configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Assistant AssistantConfig `yaml:"assistant" json:"assistant"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Watch     WatchConfig     `yaml:"watch" json:"watch"`
}

// PathsConfig locates artifacts and inputs. Relative paths resolve against
// the directory passed to Load.
type PathsConfig struct {
	// ArtifactsDir holds <name>.gob, <name>_manifest.json and eval reports.
	ArtifactsDir string `yaml:"artifacts_dir" json:"artifacts_dir"`
	// CorpusDir holds the .md/.txt help documents.
	CorpusDir string `yaml:"corpus_dir" json:"corpus_dir"`
	// CatalogDB is the SQLite product catalog.
	CatalogDB string `yaml:"catalog_db" json:"catalog_db"`
}

// SearchConfig configures product search and recommendations.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	// ExcludeSelf drops the queried product from recommendations.
	ExcludeSelf bool `yaml:"exclude_self" json:"exclude_self"`
	// Diversify enables the greedy category re-ranker.
	Diversify bool `yaml:"diversify" json:"diversify"`
	// MMRLambda trades relevance (1.0) against novelty (0.0).
	MMRLambda float64 `yaml:"mmr_lambda" json:"mmr_lambda"`
}

// AssistantConfig configures help answering.
type AssistantConfig struct {
	Limit     int     `yaml:"limit" json:"limit"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// CacheConfig sizes the result cache of the tool server.
type CacheConfig struct {
	Size int `yaml:"size" json:"size"`
}

// IndexConfig configures index builds.
type IndexConfig struct {
	// Lock serializes load-or-build across processes with a lock file.
	Lock bool `yaml:"lock" json:"lock"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// WatchConfig configures the corpus watcher run by serve.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			ArtifactsDir: filepath.Join(".catalogsearch", "artifacts"),
			CorpusDir:    filepath.Join("assistant", "corpus"),
			CatalogDB:    filepath.Join(".catalogsearch", "catalog.db"),
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			ExcludeSelf:  true,
			Diversify:    false,
			MMRLambda:    0.7,
		},
		Assistant: AssistantConfig{
			Limit:     5,
			Threshold: 0.1,
		},
		Cache: CacheConfig{
			Size: 512,
		},
		Index: IndexConfig{
			Lock: true,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: "500ms",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/catalogsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/catalogsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "catalogsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "catalogsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "catalogsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/catalogsearch/config.yaml)
//  3. Project config (.catalogsearch.yaml in dir)
//  4. Environment variables (CATALOGSEARCH_*)
//
// Relative paths are resolved against dir afterwards.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := LoadUserConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.resolvePaths(dir)
	return cfg, nil
}

// loadFromFile loads .catalogsearch.yaml from dir when present.
func (c *Config) loadFromFile(dir string) error {
	path := filepath.Join(dir, ProjectFileName)
	if !fileExists(path) {
		return nil
	}
	return c.loadYAML(path)
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Booleans and the [0, 1] weights are decoded over a copy of the current
	// values so an omitted key keeps its value and an explicit false or 0
	// still applies.
	parsed := Config{
		Search: SearchConfig{
			ExcludeSelf: c.Search.ExcludeSelf,
			Diversify:   c.Search.Diversify,
			MMRLambda:   c.Search.MMRLambda,
		},
		Assistant: AssistantConfig{Threshold: c.Assistant.Threshold},
		Index:     IndexConfig{Lock: c.Index.Lock},
		Watch:     WatchConfig{Enabled: c.Watch.Enabled},
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c. Booleans, the MMR
// lambda and the assistant threshold always merge, since zero is meaningful.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.ArtifactsDir != "" {
		c.Paths.ArtifactsDir = other.Paths.ArtifactsDir
	}
	if other.Paths.CorpusDir != "" {
		c.Paths.CorpusDir = other.Paths.CorpusDir
	}
	if other.Paths.CatalogDB != "" {
		c.Paths.CatalogDB = other.Paths.CatalogDB
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	c.Search.ExcludeSelf = other.Search.ExcludeSelf
	c.Search.Diversify = other.Search.Diversify
	c.Search.MMRLambda = other.Search.MMRLambda

	if other.Assistant.Limit != 0 {
		c.Assistant.Limit = other.Assistant.Limit
	}
	c.Assistant.Threshold = other.Assistant.Threshold

	if other.Cache.Size != 0 {
		c.Cache.Size = other.Cache.Size
	}

	c.Index.Lock = other.Index.Lock

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	c.Watch.Enabled = other.Watch.Enabled
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
}

// applyEnvOverrides applies CATALOGSEARCH_* environment variable overrides.
// Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvPrefix + "ARTIFACTS_DIR"); v != "" {
		c.Paths.ArtifactsDir = v
	}
	if v := os.Getenv(EnvPrefix + "CORPUS_DIR"); v != "" {
		c.Paths.CorpusDir = v
	}
	if v := os.Getenv(EnvPrefix + "CATALOG_DB"); v != "" {
		c.Paths.CatalogDB = v
	}

	if v := os.Getenv(EnvPrefix + "DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv(EnvPrefix + "EXCLUDE_SELF"); v != "" {
		c.Search.ExcludeSelf = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "DIVERSIFY"); v != "" {
		c.Search.Diversify = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "MMR_LAMBDA"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
			c.Search.MMRLambda = f
		}
	}

	if v := os.Getenv(EnvPrefix + "ASSISTANT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Assistant.Limit = n
		}
	}
	if v := os.Getenv(EnvPrefix + "ASSISTANT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
			c.Assistant.Threshold = f
		}
	}

	if v := os.Getenv(EnvPrefix + "CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cache.Size = n
		}
	}
	if v := os.Getenv(EnvPrefix + "INDEX_LOCK"); v != "" {
		c.Index.Lock = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "WATCH"); v != "" {
		c.Watch.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}

// resolvePaths makes relative paths absolute against dir.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Paths.ArtifactsDir, &c.Paths.CorpusDir, &c.Paths.CatalogDB} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// WatchDebounce parses Watch.Debounce.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be at least 1, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MMRLambda < 0 || c.Search.MMRLambda > 1 {
		return fmt.Errorf("search.mmr_lambda must be between 0 and 1, got %f", c.Search.MMRLambda)
	}
	if c.Assistant.Limit < 1 {
		return fmt.Errorf("assistant.limit must be at least 1, got %d", c.Assistant.Limit)
	}
	if c.Assistant.Threshold < 0 || c.Assistant.Threshold > 1 {
		return fmt.Errorf("assistant.threshold must be between 0 and 1, got %f", c.Assistant.Threshold)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be at least 1, got %d", c.Cache.Size)
	}
	if c.Paths.ArtifactsDir == "" {
		return fmt.Errorf("paths.artifacts_dir must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d < 0 {
		return fmt.Errorf("watch.debounce must be a non-negative duration, got %q", c.Watch.Debounce)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeNewDefaults fills fields added since the file was written and
// returns their dotted names. Booleans and the MMR lambda and threshold
// cannot be told apart from an explicit false or 0 and are left alone.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Assistant.Limit == 0 {
		c.Assistant.Limit = defaults.Assistant.Limit
		added = append(added, "assistant.limit")
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = defaults.Cache.Size
		added = append(added, "cache.size")
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = defaults.Watch.Debounce
		added = append(added, "watch.debounce")
	}

	return added
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
