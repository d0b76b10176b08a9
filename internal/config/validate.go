package config

import "fmt"

var validVisibilities = map[string]bool{
	"public":   true,
	"unlisted": true,
	"private":  true,
}

// Validate checks cross-field constraints the defaults cannot fix.
func (c *Config) Validate() error {
	if c.Video.PollIntervalSec < 1 {
		return fmt.Errorf("video.poll_interval_sec must be >= 1, got %d", c.Video.PollIntervalSec)
	}
	if c.Video.PollMaxAttempts < 1 {
		return fmt.Errorf("video.poll_max_attempts must be >= 1, got %d", c.Video.PollMaxAttempts)
	}
	if c.Video.DownloadWorkers < 1 {
		return fmt.Errorf("video.download_workers must be >= 1, got %d", c.Video.DownloadWorkers)
	}
	if c.Script.WordsPerMinute < 60 || c.Script.WordsPerMinute > 300 {
		return fmt.Errorf("script.words_per_minute must be between 60 and 300, got %d", c.Script.WordsPerMinute)
	}
	if !validVisibilities[c.Publish.Visibility] {
		return fmt.Errorf("publish.visibility must be public, unlisted or private, got %q", c.Publish.Visibility)
	}
	return nil
}
