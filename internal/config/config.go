package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/echoVic/aidayhot-crawler/internal/model"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Source status values recognized in config.
const (
	StatusActive = "active"
	StatusPaused = "paused"
)

type Config struct {
	Sources        map[string]SourceConfig `yaml:"sources"`
	Arxiv          ArxivConfig             `yaml:"arxiv"`
	GitHub         GitHubConfig            `yaml:"github"`
	Feeds          []Feed                  `yaml:"feeds"`
	StackOverflow  StackOverflowConfig     `yaml:"stackoverflow"`
	PapersWithCode PapersWithCodeConfig    `yaml:"papers_with_code"`
	Social         SocialConfig            `yaml:"social"`
	Video          VideoConfig             `yaml:"video"`
	Web            WebConfig               `yaml:"web"`
	Output         Output                  `yaml:"output"`
}

// SourceConfig is the typed per-source tuning record. Every recognized
// option is enumerated here; unknown sources fail validation at startup.
type SourceConfig struct {
	MaxResults     int    `yaml:"max_results"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Priority       int    `yaml:"priority"`
	Status         string `yaml:"status"`
}

type ArxivConfig struct {
	Categories []string `yaml:"categories"`
}

type GitHubConfig struct {
	Query string `yaml:"query"`
	Sort  string `yaml:"sort"`
	Order string `yaml:"order"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type StackOverflowConfig struct {
	Tags []string `yaml:"tags"`
}

type PapersWithCodeConfig struct {
	URL string `yaml:"url"`
}

type SocialConfig struct {
	Pages []string `yaml:"pages"`
}

type VideoConfig struct {
	Query string `yaml:"query"`
}

type WebConfig struct {
	Pages []string `yaml:"pages"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

// ConfigDir returns the XDG config directory for aidayhot.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "aidayhot")
}

// DataDir returns the XDG data directory for aidayhot.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "aidayhot")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/aidayhot/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'aidayhot init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		// The embedded default is covered by tests; this cannot happen at runtime.
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults and validating.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: make(map[string]SourceConfig),
	}
	if err := yaml.Unmarshal(DefaultConfigYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown source names and malformed tuning values.
func (c *Config) Validate() error {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := model.ParseSourceType(name); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		sc := c.Sources[name]
		if sc.MaxResults <= 0 {
			return fmt.Errorf("config: source %s: max_results must be positive", name)
		}
		if sc.TimeoutSeconds <= 0 {
			return fmt.Errorf("config: source %s: timeout_seconds must be positive", name)
		}
		if sc.Status != StatusActive && sc.Status != StatusPaused {
			return fmt.Errorf("config: source %s: status must be %q or %q", name, StatusActive, StatusPaused)
		}
	}
	return nil
}

// SourceConfigFor returns the tuning record for a source, falling back to
// conservative defaults when the section is absent.
func (c *Config) SourceConfigFor(st model.SourceType) SourceConfig {
	if sc, ok := c.Sources[string(st)]; ok {
		return sc
	}
	return SourceConfig{MaxResults: 20, TimeoutSeconds: 15, Priority: 5, Status: StatusActive}
}

// GetDataDir returns the effective data directory: env override, then
// config, then the XDG default.
func (c *Config) GetDataDir() string {
	if dir := os.Getenv("AIDAYHOT_DATA_DIR"); dir != "" {
		return dir
	}
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GitHubToken returns the optional token that raises the GitHub rate ceiling.
func GitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// YouTubeAPIKey returns the optional key that enables live video search.
func YouTubeAPIKey() string {
	return os.Getenv("YOUTUBE_API_KEY")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
