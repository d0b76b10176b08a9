package config

func (c *Config) applyDefaults() {
	if c.Research.MaxItemsPerSource == 0 {
		c.Research.MaxItemsPerSource = 10
	}
	if c.Research.LookbackDays == 0 {
		c.Research.LookbackDays = 14
	}
	if len(c.Research.SearchToolkits) == 0 {
		c.Research.SearchToolkits = []string{"websearch", "newsfeed"}
	}
	if c.Script.Model == "" {
		c.Script.Model = "llama-3.3-70b-versatile"
	}
	if c.Script.Temperature == 0 {
		c.Script.Temperature = 0.7
	}
	if c.Script.MaxTokens == 0 {
		c.Script.MaxTokens = 4096
	}
	if c.Script.TargetDurationSec == 0 {
		c.Script.TargetDurationSec = 60
	}
	if c.Script.WordsPerMinute == 0 {
		c.Script.WordsPerMinute = 150
	}
	if c.Audio.Voice == "" {
		c.Audio.Voice = "narrator"
	}
	if c.Audio.OutputFormat == "" {
		c.Audio.OutputFormat = "mp3"
	}
	if c.Video.AspectRatio == "" {
		c.Video.AspectRatio = "9:16"
	}
	if c.Video.Resolution == "" {
		c.Video.Resolution = "1080x1920"
	}
	if c.Video.PollIntervalSec == 0 {
		c.Video.PollIntervalSec = 15
	}
	if c.Video.PollMaxAttempts == 0 {
		c.Video.PollMaxAttempts = 40
	}
	if c.Video.DownloadWorkers == 0 {
		c.Video.DownloadWorkers = 4
	}
	if c.Publish.Visibility == "" {
		c.Publish.Visibility = "private"
	}
	if c.Publish.CategoryID == "" {
		c.Publish.CategoryID = "24"
	}
	if c.Publish.DefaultLanguage == "" {
		c.Publish.DefaultLanguage = "en"
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = "https://api.toolbroker.dev/v1"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "output"
	}
	if c.Paths.StateDB == "" {
		c.Paths.StateDB = "output/runs.db"
	}
}
