// Package research is stage one of the pipeline: pull raw material
// about the topic from every configured source, condense it with the
// language model, and hand the scripting stage a single brief with the
// reference URLs pulled out of it.
package research

import (
	"context"
	"fmt"
	"strings"

	"shortreel/internal/broker"
	"shortreel/internal/config"
	"shortreel/internal/extract"
	"shortreel/internal/llm"
	"shortreel/internal/types"

	"go.uber.org/zap"
)

const condenseSystemPrompt = `You are a research assistant preparing source material for a short vertical video.
Given raw items gathered about a topic, write a tight factual brief:
- 3 to 6 paragraphs, concrete facts only, no speculation
- keep names, numbers and dates exactly as sourced
- cite the source URL inline after each claim that has one
- finish with a line starting "ANGLE:" naming the strongest hook for a 60-second video`

// Aggregator gathers, scores and condenses research material.
type Aggregator struct {
	cfg    *config.Config
	logger *zap.Logger
	broker *broker.Client
	llm    *llm.Client
	reddit redditSource
}

// New creates an Aggregator. The Reddit source degrades to a readonly
// client when no script-app credentials are in the environment.
func New(cfg *config.Config, logger *zap.Logger, bk *broker.Client, lm *llm.Client) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		logger: logger.Named("research"),
		broker: bk,
		llm:    lm,
		reddit: newRedditSource(cfg, logger.Named("research")),
	}
}

// Run aggregates material for the topic from all sources and condenses
// it into a brief. Individual sources may fail; the stage fails only
// when nothing at all came back.
func (a *Aggregator) Run(ctx context.Context, topic string) (*types.ResearchDoc, error) {
	a.logger.Info("gathering source material", zap.String("topic", topic))

	var items []types.SourceItem

	searchItems, err := a.runSearchTools(ctx, topic)
	if err != nil {
		a.logger.Warn("search toolkits failed", zap.Error(err))
	} else {
		items = append(items, searchItems...)
		a.logger.Info("search toolkits returned items", zap.Int("count", len(searchItems)))
	}

	redditItems, err := a.reddit.fetch(ctx, topic)
	if err != nil {
		a.logger.Warn("reddit source failed", zap.Error(err))
	} else {
		items = append(items, redditItems...)
		a.logger.Info("reddit returned items", zap.Int("count", len(redditItems)))
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no research material found for topic %q", topic)
	}

	brief, err := a.condense(ctx, topic, items)
	if err != nil {
		return nil, fmt.Errorf("condense research: %w", err)
	}

	doc := &types.ResearchDoc{
		Topic:         topic,
		Brief:         brief,
		Sources:       items,
		ReferenceURLs: extract.URLs(brief),
	}
	for _, item := range items {
		if item.ImageURL != "" {
			doc.ImageURLs = append(doc.ImageURLs, item.ImageURL)
		}
	}

	a.logger.Info("research brief ready",
		zap.Int("sources", len(doc.Sources)),
		zap.Int("reference_urls", len(doc.ReferenceURLs)))
	return doc, nil
}

// condense asks the model to reduce the raw items to a factual brief.
func (a *Aggregator) condense(ctx context.Context, topic string, items []types.SourceItem) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("TOPIC: %s\n\nRAW MATERIAL (%d items):\n\n", topic, len(items)))
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("--- [%s] %s\n", item.Source, item.Title))
		if item.URL != "" {
			sb.WriteString("URL: " + item.URL + "\n")
		}
		if item.Body != "" {
			sb.WriteString(truncate(item.Body, 1500) + "\n")
		}
		sb.WriteString("\n")
	}

	return a.llm.Complete(ctx, llm.Request{
		Model: a.cfg.Script.Model,
		Messages: []llm.Message{
			{Role: "system", Content: condenseSystemPrompt},
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0.3,
		MaxTokens:   2048,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
