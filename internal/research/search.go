package research

import (
	"context"
	"encoding/json"
	"fmt"

	"shortreel/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// searchResult is the minimal result shape the broker's search tools
// agree on.
type searchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	PublishedAt string `json:"published_at,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type searchPayload struct {
	Results []searchResult `json:"results"`
}

// runSearchTools opens one broker session over all configured search
// toolkits and runs each toolkit's search tool. A toolkit that errors
// is skipped with a warning.
func (a *Aggregator) runSearchTools(ctx context.Context, topic string) ([]types.SourceItem, error) {
	session, err := a.broker.CreateSession(ctx, a.cfg.Research.SearchToolkits...)
	if err != nil {
		return nil, fmt.Errorf("search session: %w", err)
	}

	var items []types.SourceItem
	for _, toolkit := range a.cfg.Research.SearchToolkits {
		raw, err := session.Execute(ctx, toolkit, "search", map[string]any{
			"query": topic,
			"limit": a.cfg.Research.MaxItemsPerSource,
		})
		if err != nil {
			a.logger.Warn("search tool failed", zap.String("toolkit", toolkit), zap.Error(err))
			continue
		}

		var payload searchPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			a.logger.Warn("unparseable search payload", zap.String("toolkit", toolkit), zap.Error(err))
			continue
		}

		for _, r := range payload.Results {
			if r.Title == "" {
				continue
			}
			items = append(items, types.SourceItem{
				ID:          fmt.Sprintf("%s_%s", toolkit, uuid.NewString()[:8]),
				Source:      toolkit,
				Title:       r.Title,
				Body:        r.Snippet,
				URL:         r.URL,
				PublishedAt: r.PublishedAt,
				ImageURL:    r.ImageURL,
			})
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("all search toolkits returned nothing")
	}
	return items, nil
}
