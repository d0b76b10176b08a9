package types

// SourceItem is one piece of raw research material pulled from an
// external source before condensing.
type SourceItem struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	PublishedAt string `json:"published_at,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// ResearchDoc is the condensed research output for one topic.
type ResearchDoc struct {
	Topic         string       `json:"topic"`
	Brief         string       `json:"brief"`
	Sources       []SourceItem `json:"sources"`
	ReferenceURLs []string     `json:"reference_urls"`
	ImageURLs     []string     `json:"image_urls"`
}

// Scene is one narrated beat of the script.
type Scene struct {
	Index            int     `json:"index"`
	Narration        string  `json:"narration"`
	VisualDirection  string  `json:"visual_direction"`
	TimestampStart   float64 `json:"timestamp_start"`
	TimestampEnd     float64 `json:"timestamp_end"`
	AudioFile        string  `json:"audio_file,omitempty"`
	AudioDurationSec float64 `json:"audio_duration_sec"`
}

// VideoReference is a clip or page the model cited as supporting
// material. Parsed best-effort from the model's auxiliary output.
type VideoReference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// EngagementItem is a social-engagement suggestion (pinned comment,
// poll, caption hook) returned alongside the script.
type EngagementItem struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Script is the full structured script for one video.
type Script struct {
	Topic           string           `json:"topic"`
	Title           string           `json:"title"`
	Hook            string           `json:"hook"`
	Scenes          []Scene          `json:"scenes"`
	TotalSec        float64          `json:"total_sec"`
	VideoReferences []VideoReference `json:"video_references,omitempty"`
	EngagementItems []EngagementItem `json:"engagement_items,omitempty"`
}

// RenderResult is the terminal payload of a completed render job.
type RenderResult struct {
	JobID       string  `json:"job_id"`
	VideoURL    string  `json:"video_url"`
	DurationSec float64 `json:"duration_sec"`
	VideoPath   string  `json:"video_path,omitempty"`
}

// RunState tracks the full state of one pipeline run. It is written to
// the run directory after every stage so a run can be inspected later.
type RunState struct {
	RunID       string        `json:"run_id"`
	Topic       string        `json:"topic"`
	StartedAt   string        `json:"started_at"`
	CompletedAt string        `json:"completed_at,omitempty"`
	Research    *ResearchDoc  `json:"research,omitempty"`
	Script      *Script       `json:"script,omitempty"`
	AudioFile   string        `json:"audio_file,omitempty"`
	Render      *RenderResult `json:"render,omitempty"`
	PublishedID string        `json:"published_id,omitempty"`
	PublishedAt string        `json:"published_at,omitempty"`
	Error       string        `json:"error,omitempty"`
}
