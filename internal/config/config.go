package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Research ResearchConfig `yaml:"research"`
	Script   ScriptConfig   `yaml:"script"`
	Approval ApprovalConfig `yaml:"approval"`
	Audio    AudioConfig    `yaml:"audio"`
	Video    VideoConfig    `yaml:"video"`
	Publish  PublishConfig  `yaml:"publish"`
	Broker   BrokerConfig   `yaml:"broker"`
	Paths    PathsConfig    `yaml:"paths"`
}

type ResearchConfig struct {
	Subreddits        []string `yaml:"subreddits"`
	MaxItemsPerSource int      `yaml:"max_items_per_source"`
	LookbackDays      int      `yaml:"lookback_days"`
	MinRedditScore    int      `yaml:"min_reddit_score"`
	SearchToolkits    []string `yaml:"search_toolkits"`
}

type ScriptConfig struct {
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TargetDurationSec int     `yaml:"target_duration_sec"`
	WordsPerMinute    int     `yaml:"words_per_minute"`
}

type ApprovalConfig struct {
	Interactive bool `yaml:"interactive"`
}

type AudioConfig struct {
	Voice        string `yaml:"voice"`
	OutputFormat string `yaml:"output_format"`
}

type VideoConfig struct {
	AspectRatio     string `yaml:"aspect_ratio"`
	Resolution      string `yaml:"resolution"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
	PollMaxAttempts int    `yaml:"poll_max_attempts"`
	DownloadWorkers int    `yaml:"download_workers"`
}

type PublishConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Visibility      string `yaml:"visibility"`
	CategoryID      string `yaml:"category_id"`
	DefaultLanguage string `yaml:"default_language"`
	MadeForKids     bool   `yaml:"made_for_kids"`
}

type BrokerConfig struct {
	BaseURL string `yaml:"base_url"`
}

type PathsConfig struct {
	Output   string `yaml:"output"`
	StateDB  string `yaml:"state_db"`
}

// Load reads the YAML config at path, applies defaults for anything
// left unset, and validates the result. A missing file yields a config
// of pure defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
