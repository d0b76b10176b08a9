package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"shortreel/internal/config"
	"shortreel/internal/types"

	"go.uber.org/zap"
)

const defaultRenderBaseURL = "https://api.reelrender.dev/v1"

// ErrRenderFailed is returned when the provider reports the job
// failed; the wrapped message carries the provider's error payload.
var ErrRenderFailed = errors.New("render job failed")

// ErrRenderTimeout is returned when the attempt budget runs out before
// the job reaches a terminal state.
var ErrRenderTimeout = errors.New("render job timed out")

// Renderer submits render jobs to the video provider and waits for
// them to finish.
type Renderer struct {
	cfg        *config.Config
	logger     *zap.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client

	pollInterval time.Duration
	maxAttempts  int
}

// NewRenderer creates a Renderer. The API key comes from
// RENDER_API_KEY; RENDER_BASE_URL overrides the endpoint.
func NewRenderer(cfg *config.Config, logger *zap.Logger) (*Renderer, error) {
	apiKey := os.Getenv("RENDER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RENDER_API_KEY not set")
	}
	baseURL := defaultRenderBaseURL
	if v := os.Getenv("RENDER_BASE_URL"); v != "" {
		baseURL = v
	}
	return NewRendererWith(cfg, logger, baseURL, apiKey), nil
}

// NewRendererWith creates a Renderer against an explicit endpoint.
func NewRendererWith(cfg *config.Config, logger *zap.Logger, baseURL, apiKey string) *Renderer {
	return &Renderer{
		cfg:          cfg,
		logger:       logger.Named("video"),
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: time.Duration(cfg.Video.PollIntervalSec) * time.Second,
		maxAttempts:  cfg.Video.PollMaxAttempts,
	}
}

type renderScene struct {
	Narration       string  `json:"narration"`
	VisualDirection string  `json:"visual_direction"`
	StartSec        float64 `json:"start_sec"`
	EndSec          float64 `json:"end_sec"`
}

type renderRequest struct {
	Title        string        `json:"title"`
	AudioAssetID string        `json:"audio_asset_id"`
	Scenes       []renderScene `json:"scenes"`
	AspectRatio  string        `json:"aspect_ratio"`
	Resolution   string        `json:"resolution"`
}

type renderSubmitResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

type renderStatusResponse struct {
	Status      string  `json:"status"`
	VideoURL    string  `json:"video_url,omitempty"`
	DurationSec float64 `json:"duration_sec,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Run uploads the narration audio, submits the render job, waits for
// it, and downloads the finished video into outputDir.
func (r *Renderer) Run(ctx context.Context, script *types.Script, audioFile, outputDir string) (*types.RenderResult, error) {
	assetID, err := r.uploadAudio(ctx, audioFile)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	r.logger.Info("narration audio uploaded", zap.String("asset_id", assetID))

	jobID, err := r.submit(ctx, script, assetID)
	if err != nil {
		return nil, fmt.Errorf("submit render: %w", err)
	}
	r.logger.Info("render job submitted", zap.String("job_id", jobID))

	result, err := r.Wait(ctx, jobID)
	if err != nil {
		return nil, err
	}

	videoPath := filepath.Join(outputDir, "video.mp4")
	if err := downloadFile(ctx, r.httpClient, result.VideoURL, videoPath); err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	result.VideoPath = videoPath

	r.logger.Info("video downloaded", zap.String("path", videoPath))
	return result, nil
}

// uploadAudio pushes the narration file as a provider asset.
func (r *Renderer) uploadAudio(ctx context.Context, audioFile string) (string, error) {
	f, err := os.Open(audioFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(audioFile))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/assets", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("asset upload HTTP %d: %s", resp.StatusCode, payload)
	}

	var out struct {
		AssetID string `json:"asset_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AssetID == "" {
		return "", fmt.Errorf("provider returned no asset id")
	}
	return out.AssetID, nil
}

func (r *Renderer) submit(ctx context.Context, script *types.Script, assetID string) (string, error) {
	req := renderRequest{
		Title:        script.Title,
		AudioAssetID: assetID,
		AspectRatio:  r.cfg.Video.AspectRatio,
		Resolution:   r.cfg.Video.Resolution,
	}
	for _, s := range script.Scenes {
		req.Scenes = append(req.Scenes, renderScene{
			Narration:       s.Narration,
			VisualDirection: s.VisualDirection,
			StartSec:        s.TimestampStart,
			EndSec:          s.TimestampEnd,
		})
	}

	var resp renderSubmitResponse
	if err := r.postJSON(ctx, "/renders", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("provider: %s", resp.Error)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("provider returned no job id")
	}
	return resp.JobID, nil
}

// Wait polls the job status endpoint on a fixed interval up to the
// attempt budget. "completed" returns the result, "failed" returns
// ErrRenderFailed with the provider's error embedded, anything else
// keeps polling; an exhausted budget returns ErrRenderTimeout.
func (r *Renderer) Wait(ctx context.Context, jobID string) (*types.RenderResult, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		status, err := r.jobStatus(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("poll job %s: %w", jobID, err)
		}

		switch status.Status {
		case "completed":
			if status.VideoURL == "" {
				return nil, fmt.Errorf("job %s completed without a video url", jobID)
			}
			return &types.RenderResult{
				JobID:       jobID,
				VideoURL:    status.VideoURL,
				DurationSec: status.DurationSec,
			}, nil

		case "failed":
			return nil, fmt.Errorf("%w: job %s: %s", ErrRenderFailed, jobID, status.Error)

		default:
			r.logger.Debug("render job pending",
				zap.String("job_id", jobID),
				zap.String("status", status.Status),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.maxAttempts))
		}

		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}

	budget := time.Duration(r.maxAttempts) * r.pollInterval
	return nil, fmt.Errorf("%w: job %s still pending after %d attempts (%s)",
		ErrRenderTimeout, jobID, r.maxAttempts, budget)
}

func (r *Renderer) jobStatus(ctx context.Context, jobID string) (*renderStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/renders/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, payload)
	}

	var status renderStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *Renderer) postJSON(ctx context.Context, path string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, payload)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
