// Package script is stage two: turn the research brief into a
// structured narration script, plus two best-effort auxiliary streams
// (video references and engagement items) the model returns as JSON
// arrays of uneven reliability.
package script

import (
	"context"
	"fmt"
	"strings"

	"shortreel/internal/config"
	"shortreel/internal/extract"
	"shortreel/internal/llm"
	"shortreel/internal/types"

	"go.uber.org/zap"
)

const systemPrompt = `You are a scriptwriter for short vertical videos (under 90 seconds, 9:16).

You MUST respond with ONLY valid JSON — no preamble, no markdown, no explanation.

The JSON object must have exactly these fields:
- "title": string, the video title (max 80 chars)
- "hook": string, the first spoken line; it must stop the scroll
- "scenes": array of 5-9 scenes

Each scene must have:
- "narration": the exact words to be spoken (1-3 sentences)
- "visual_direction": what is on screen while the words are spoken

Rules:
- open on the single most surprising fact, zero throat-clearing
- every claim must come from the supplied research, never invent
- end with a question that drives comments`

const referencesPrompt = `List supporting video clips or pages worth showing on screen for the script below.
Respond with ONLY a JSON array of objects with fields "title" and "url". Use only URLs present in the research. An empty array is fine.`

const engagementPrompt = `Suggest social-engagement items for the video below: a pinned comment, a caption hook, and up to three more.
Respond with ONLY a JSON array of objects with fields "kind" and "text".`

// Writer generates scripts from research briefs.
type Writer struct {
	cfg    *config.Config
	logger *zap.Logger
	llm    *llm.Client
}

// New creates a Writer.
func New(cfg *config.Config, logger *zap.Logger, lm *llm.Client) *Writer {
	return &Writer{cfg: cfg, logger: logger.Named("script"), llm: lm}
}

// scriptJSON is the raw object the model returns.
type scriptJSON struct {
	Title  string `json:"title"`
	Hook   string `json:"hook"`
	Scenes []struct {
		Narration       string `json:"narration"`
		VisualDirection string `json:"visual_direction"`
	} `json:"scenes"`
}

// Run generates the full script for a research doc. The script object
// itself must parse; the two auxiliary arrays are best-effort and come
// back empty when the model garbles them.
func (w *Writer) Run(ctx context.Context, doc *types.ResearchDoc) (*types.Script, error) {
	w.logger.Info("generating script", zap.String("topic", doc.Topic), zap.String("model", w.cfg.Script.Model))

	content, err := w.llm.Complete(ctx, llm.Request{
		Model: w.cfg.Script.Model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: w.userPrompt(doc)},
		},
		Temperature: w.cfg.Script.Temperature,
		MaxTokens:   w.cfg.Script.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("script completion: %w", err)
	}

	var raw scriptJSON
	if err := extract.Object(content, &raw); err != nil {
		return nil, fmt.Errorf("parse script JSON: %w\nraw content: %s", err, truncate(content, 200))
	}
	if len(raw.Scenes) == 0 {
		return nil, fmt.Errorf("model returned a script with no scenes")
	}

	script := w.assemble(doc.Topic, raw)

	// Two independent auxiliary streams, parsed with the fallback
	// extractor. Either may legitimately come back empty.
	script.VideoReferences = w.videoReferences(ctx, doc, script)
	script.EngagementItems = w.engagementItems(ctx, script)

	w.logger.Info("script ready",
		zap.Int("scenes", len(script.Scenes)),
		zap.Float64("estimated_sec", script.TotalSec),
		zap.Int("video_references", len(script.VideoReferences)),
		zap.Int("engagement_items", len(script.EngagementItems)))
	return script, nil
}

func (w *Writer) userPrompt(doc *types.ResearchDoc) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write a ~%d second script about: %s\n\n", w.cfg.Script.TargetDurationSec, doc.Topic))
	sb.WriteString("RESEARCH BRIEF:\n")
	sb.WriteString(doc.Brief)
	sb.WriteString("\n\n")
	if len(doc.ReferenceURLs) > 0 {
		sb.WriteString("REFERENCE URLS:\n")
		for _, u := range doc.ReferenceURLs {
			sb.WriteString("- " + u + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Respond ONLY with valid JSON. No markdown. No explanation.")
	return sb.String()
}

// assemble builds the Script with timing estimated at the configured
// words-per-minute rate. Real audio durations replace these later.
func (w *Writer) assemble(topic string, raw scriptJSON) *types.Script {
	script := &types.Script{
		Topic: topic,
		Title: raw.Title,
		Hook:  raw.Hook,
	}

	wpm := float64(w.cfg.Script.WordsPerMinute)
	var elapsed float64
	for i, s := range raw.Scenes {
		words := len(strings.Fields(s.Narration))
		duration := float64(words) / wpm * 60.0

		script.Scenes = append(script.Scenes, types.Scene{
			Index:            i,
			Narration:        s.Narration,
			VisualDirection:  s.VisualDirection,
			TimestampStart:   elapsed,
			TimestampEnd:     elapsed + duration,
			AudioDurationSec: duration,
		})
		elapsed += duration
	}
	script.TotalSec = elapsed
	return script
}

func (w *Writer) videoReferences(ctx context.Context, doc *types.ResearchDoc, script *types.Script) []types.VideoReference {
	content, err := w.llm.Complete(ctx, llm.Request{
		Model: w.cfg.Script.Model,
		Messages: []llm.Message{
			{Role: "system", Content: referencesPrompt},
			{Role: "user", Content: "RESEARCH:\n" + doc.Brief + "\n\nSCRIPT:\n" + narrationText(script)},
		},
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		w.logger.Warn("video references completion failed", zap.Error(err))
		return nil
	}
	return extract.Array[types.VideoReference](w.logger, content)
}

func (w *Writer) engagementItems(ctx context.Context, script *types.Script) []types.EngagementItem {
	content, err := w.llm.Complete(ctx, llm.Request{
		Model: w.cfg.Script.Model,
		Messages: []llm.Message{
			{Role: "system", Content: engagementPrompt},
			{Role: "user", Content: "TITLE: " + script.Title + "\n\nSCRIPT:\n" + narrationText(script)},
		},
		Temperature: 0.8,
		MaxTokens:   1024,
	})
	if err != nil {
		w.logger.Warn("engagement items completion failed", zap.Error(err))
		return nil
	}
	return extract.Array[types.EngagementItem](w.logger, content)
}

func narrationText(script *types.Script) string {
	var sb strings.Builder
	for _, s := range script.Scenes {
		sb.WriteString(s.Narration)
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
