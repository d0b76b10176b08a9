// Package publish uploads the finished video to YouTube. Optional:
// the pipeline completes with the video on disk whether or not an
// upload is configured.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"shortreel/internal/config"
	"shortreel/internal/types"

	"go.uber.org/zap"
)

// Uploader pushes videos to YouTube via the Data API v3.
type Uploader struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates an Uploader.
func New(cfg *config.Config, logger *zap.Logger) *Uploader {
	return &Uploader{cfg: cfg, logger: logger.Named("publish")}
}

// Run uploads the video with metadata derived from the script.
// Returns the YouTube video ID and watch URL.
func (u *Uploader) Run(ctx context.Context, videoFile string, script *types.Script) (string, string, error) {
	client, err := u.oauthClient(ctx)
	if err != nil {
		return "", "", fmt.Errorf("youtube auth: %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", "", fmt.Errorf("youtube service: %w", err)
	}

	u.logger.Info("uploading video", zap.String("title", script.Title))

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                script.Title,
			Description:          buildDescription(script),
			CategoryId:           u.cfg.Publish.CategoryID,
			DefaultLanguage:      u.cfg.Publish.DefaultLanguage,
			DefaultAudioLanguage: u.cfg.Publish.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.cfg.Publish.Visibility,
			SelfDeclaredMadeForKids: u.cfg.Publish.MadeForKids,
		},
	}

	f, err := os.Open(videoFile)
	if err != nil {
		return "", "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(f)

	uploaded, err := call.Do()
	if err != nil {
		return "", "", fmt.Errorf("youtube upload: %w", err)
	}

	videoURL := "https://www.youtube.com/watch?v=" + uploaded.Id
	u.logger.Info("upload complete",
		zap.String("video_id", uploaded.Id), zap.String("url", videoURL))
	return uploaded.Id, videoURL, nil
}

// oauthClient builds an OAuth2 HTTP client from env credentials using
// the refresh-token flow.
func (u *Uploader) oauthClient(ctx context.Context) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{RefreshToken: refreshToken}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
}

// buildDescription assembles hook, engagement caption, and source
// credits into the video description.
func buildDescription(script *types.Script) string {
	var sb strings.Builder
	sb.WriteString(script.Hook)
	sb.WriteString("\n\n")

	for _, item := range script.EngagementItems {
		if item.Kind == "caption" {
			sb.WriteString(item.Text)
			sb.WriteString("\n\n")
			break
		}
	}

	if len(script.VideoReferences) > 0 {
		sb.WriteString("Sources:\n")
		for _, ref := range script.VideoReferences {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", ref.Title, ref.URL))
		}
	}
	return strings.TrimSpace(sb.String())
}
