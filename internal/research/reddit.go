package research

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"shortreel/internal/config"
	"shortreel/internal/types"

	"github.com/vartanbeno/go-reddit/v2/reddit"
	"go.uber.org/zap"
)

// redditSource pulls recent high-signal posts from the configured
// subreddits and keeps the ones that mention the topic.
type redditSource struct {
	cfg    *config.Config
	logger *zap.Logger
	client *reddit.Client
}

func newRedditSource(cfg *config.Config, logger *zap.Logger) redditSource {
	return redditSource{cfg: cfg, logger: logger}
}

// connect builds the client lazily so runs without Reddit configured
// never touch the network. Script-app credentials when present,
// readonly otherwise.
func (r *redditSource) connect() (*reddit.Client, error) {
	if r.client != nil {
		return r.client, nil
	}

	var (
		client *reddit.Client
		err    error
	)
	if id := os.Getenv("REDDIT_CLIENT_ID"); id != "" {
		client, err = reddit.NewClient(reddit.Credentials{
			ID:       id,
			Secret:   os.Getenv("REDDIT_CLIENT_SECRET"),
			Username: os.Getenv("REDDIT_USERNAME"),
			Password: os.Getenv("REDDIT_PASSWORD"),
		})
	} else {
		client, err = reddit.NewReadonlyClient()
	}
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	r.client = client
	return client, nil
}

func (r *redditSource) fetch(ctx context.Context, topic string) ([]types.SourceItem, error) {
	if len(r.cfg.Research.Subreddits) == 0 {
		return nil, fmt.Errorf("no subreddits configured")
	}

	client, err := r.connect()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -r.cfg.Research.LookbackDays)
	topicWords := strings.Fields(strings.ToLower(topic))

	var items []types.SourceItem
	for _, sub := range r.cfg.Research.Subreddits {
		posts, _, err := client.Subreddit.TopPosts(ctx, sub, &reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: 25},
			Time:        "month",
		})
		if err != nil {
			r.logger.Warn("subreddit fetch failed", zap.String("subreddit", sub), zap.Error(err))
			continue
		}

		for _, post := range posts {
			if post.Created != nil && post.Created.Before(cutoff) {
				continue
			}
			if post.Score < r.cfg.Research.MinRedditScore {
				continue
			}
			if !mentionsTopic(post.Title+" "+post.Body, topicWords) {
				continue
			}

			item := types.SourceItem{
				ID:     "reddit_" + post.ID,
				Source: "r/" + sub,
				Title:  post.Title,
				Body:   post.Body,
				URL:    "https://www.reddit.com" + post.Permalink,
				Score:  post.Score,
			}
			if post.Created != nil {
				item.PublishedAt = post.Created.Format(time.RFC3339)
			}
			if !post.IsSelfPost && isImageURL(post.URL) {
				item.ImageURL = post.URL
			}
			items = append(items, item)

			if len(items) >= r.cfg.Research.MaxItemsPerSource {
				return items, nil
			}
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no matching posts in %s", strings.Join(r.cfg.Research.Subreddits, ", "))
	}
	return items, nil
}

// mentionsTopic requires at least one topic word in the post text.
// Single-word topics must match; longer topics tolerate partial hits.
func mentionsTopic(text string, topicWords []string) bool {
	lower := strings.ToLower(text)
	for _, w := range topicWords {
		if len(w) < 3 {
			continue
		}
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func isImageURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasSuffix(lower, ".jpg") ||
		strings.HasSuffix(lower, ".jpeg") ||
		strings.HasSuffix(lower, ".png") ||
		strings.HasSuffix(lower, ".webp")
}
