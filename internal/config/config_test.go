package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file yields pure defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 15, cfg.Video.PollIntervalSec)
		assert.Equal(t, 40, cfg.Video.PollMaxAttempts)
		assert.Equal(t, "9:16", cfg.Video.AspectRatio)
		assert.Equal(t, 150, cfg.Script.WordsPerMinute)
		assert.Equal(t, "private", cfg.Publish.Visibility)
		assert.NotEmpty(t, cfg.Research.SearchToolkits)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
video:
  poll_interval_sec: 5
  poll_max_attempts: 8
script:
  words_per_minute: 130
research:
  subreddits: [science]
`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Video.PollIntervalSec)
		assert.Equal(t, 8, cfg.Video.PollMaxAttempts)
		assert.Equal(t, 130, cfg.Script.WordsPerMinute)
		assert.Equal(t, []string{"science"}, cfg.Research.Subreddits)
		// untouched sections still get defaults
		assert.Equal(t, "mp3", cfg.Audio.OutputFormat)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("video: ["), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("validation catches out-of-range values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
script:
  words_per_minute: 10
`), 0644))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "words_per_minute")
	})

	t.Run("bad visibility is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
publish:
  visibility: secret
`), 0644))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "visibility")
	})
}
