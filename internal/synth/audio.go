// Package synth is stage four: synthesize narration audio with the
// voice provider, submit the render job to the video provider, drive
// the bounded poller until the job terminates, and download the
// results.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shortreel/internal/config"
	"shortreel/internal/types"

	"go.uber.org/zap"
)

const defaultVoiceBaseURL = "https://api.voiceworks.dev/v1"

// AudioGenerator synthesizes narration audio scene by scene.
type AudioGenerator struct {
	cfg        *config.Config
	logger     *zap.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAudioGenerator creates an AudioGenerator. The API key comes from
// VOICE_API_KEY; VOICE_BASE_URL overrides the endpoint.
func NewAudioGenerator(cfg *config.Config, logger *zap.Logger) (*AudioGenerator, error) {
	apiKey := os.Getenv("VOICE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("VOICE_API_KEY not set")
	}
	baseURL := defaultVoiceBaseURL
	if v := os.Getenv("VOICE_BASE_URL"); v != "" {
		baseURL = v
	}
	return &AudioGenerator{
		cfg:        cfg,
		logger:     logger.Named("audio"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// NewAudioGeneratorWith creates an AudioGenerator against an explicit
// endpoint. Used by tests.
func NewAudioGeneratorWith(cfg *config.Config, logger *zap.Logger, baseURL, apiKey string) *AudioGenerator {
	return &AudioGenerator{
		cfg:        cfg,
		logger:     logger.Named("audio"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type speechRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

// Run synthesizes audio for every scene, updates scene timings with
// the measured durations, and concatenates the segments into one
// narration file. Returns the path of the final audio.
func (g *AudioGenerator) Run(ctx context.Context, script *types.Script, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}

	for i := range script.Scenes {
		scene := &script.Scenes[i]
		outFile := filepath.Join(outputDir, fmt.Sprintf("scene_%03d.%s", i, g.cfg.Audio.OutputFormat))

		g.logger.Info("synthesizing scene audio",
			zap.Int("scene", i+1), zap.Int("of", len(script.Scenes)))

		dur, err := g.synthesizeScene(ctx, scene.Narration, outFile)
		if err != nil {
			return "", fmt.Errorf("scene %d speech synthesis: %w", i, err)
		}
		if dur > 0 {
			scene.AudioDurationSec = dur
		}
		scene.AudioFile = outFile
	}

	recalcTimestamps(script)

	finalAudio := filepath.Join(outputDir, "narration."+g.cfg.Audio.OutputFormat)
	if err := concatenateAudio(script, outputDir, finalAudio); err != nil {
		return "", fmt.Errorf("concatenate audio: %w", err)
	}

	g.logger.Info("narration audio ready",
		zap.String("path", finalAudio), zap.Float64("total_sec", script.TotalSec))
	return finalAudio, nil
}

// synthesizeScene calls the voice provider for one scene, retrying up
// to 3 times with linear backoff. Returns the measured duration when
// the provider reports one, 0 otherwise.
func (g *AudioGenerator) synthesizeScene(ctx context.Context, text, outFile string) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		dur, err := g.doSpeech(ctx, text, outFile)
		if err == nil {
			return dur, nil
		}
		lastErr = err
		g.logger.Warn("speech attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}
	return 0, lastErr
}

func (g *AudioGenerator) doSpeech(ctx context.Context, text, outFile string) (float64, error) {
	bodyBytes, err := json.Marshal(speechRequest{
		Text:   text,
		Voice:  g.cfg.Audio.Voice,
		Format: g.cfg.Audio.OutputFormat,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("voice provider HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if len(audio) < 100 {
		return 0, fmt.Errorf("audio response too small (%d bytes)", len(audio))
	}
	if err := os.WriteFile(outFile, audio, 0644); err != nil {
		return 0, err
	}

	dur, _ := strconv.ParseFloat(resp.Header.Get("X-Audio-Duration"), 64)
	return dur, nil
}

// concatenateAudio joins the scene segments in order with ffmpeg.
func concatenateAudio(script *types.Script, audioDir, outputFile string) error {
	listFile := filepath.Join(audioDir, "concat_list.txt")
	var lines []string
	for _, scene := range script.Scenes {
		if scene.AudioFile != "" {
			lines = append(lines, fmt.Sprintf("file '%s'", scene.AudioFile))
		}
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return err
	}

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outputFile,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// recalcTimestamps rebuilds scene timestamps from measured durations.
func recalcTimestamps(script *types.Script) {
	var elapsed float64
	for i := range script.Scenes {
		script.Scenes[i].TimestampStart = elapsed
		elapsed += script.Scenes[i].AudioDurationSec
		script.Scenes[i].TimestampEnd = elapsed
	}
	script.TotalSec = elapsed
}
