package script

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shortreel/internal/config"
	"shortreel/internal/llm"
	"shortreel/internal/types"
)

const scriptResponse = "```json\n" + `{
  "title": "The Canal That Sank a Country",
  "hook": "This ditch bankrupted an empire.",
  "scenes": [
    {"narration": "In 1880 a French company started digging.", "visual_direction": "archival map"},
    {"narration": "Twenty thousand workers never came home.", "visual_direction": "jungle, slow push-in"},
    {"narration": "Would you have kept digging?", "visual_direction": "canal today, drone shot"}
  ]
}` + "\n```"

// routes completions by which system prompt arrived
func fakeModel(t *testing.T, referencesBody, engagementBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body llm.Request
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.NotEmpty(t, body.Messages)

		var content string
		system := body.Messages[0].Content
		switch {
		case strings.Contains(system, "scriptwriter"):
			content = scriptResponse
		case strings.Contains(system, "supporting video clips"):
			content = referencesBody
		case strings.Contains(system, "social-engagement"):
			content = engagementBody
		default:
			t.Fatalf("unexpected system prompt: %s", system)
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testDoc() *types.ResearchDoc {
	return &types.ResearchDoc{
		Topic:         "panama canal failure",
		Brief:         "The French canal attempt collapsed in 1889. https://example.com/canal",
		ReferenceURLs: []string{"https://example.com/canal"},
	}
}

func testWriter(t *testing.T, srvURL string) *Writer {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	return New(cfg, zap.NewNop(), llm.NewWith(srvURL, "key"))
}

func TestRun(t *testing.T) {
	t.Run("parses script and auxiliary arrays", func(t *testing.T) {
		srv := fakeModel(t,
			`[{"title":"Canal doc","url":"https://example.com/canal"}]`,
			"Here you go:\n```json\n[{\"kind\":\"pinned_comment\",\"text\":\"Would you have kept digging?\"}]\n```",
		)
		defer srv.Close()

		script, err := testWriter(t, srv.URL).Run(context.Background(), testDoc())
		require.NoError(t, err)

		assert.Equal(t, "The Canal That Sank a Country", script.Title)
		assert.Equal(t, "panama canal failure", script.Topic)
		require.Len(t, script.Scenes, 3)
		assert.Equal(t, 2, script.Scenes[2].Index)

		require.Len(t, script.VideoReferences, 1)
		assert.Equal(t, "https://example.com/canal", script.VideoReferences[0].URL)
		require.Len(t, script.EngagementItems, 1)
		assert.Equal(t, "pinned_comment", script.EngagementItems[0].Kind)
	})

	t.Run("scene timings follow the words-per-minute estimate", func(t *testing.T) {
		srv := fakeModel(t, "[]", "[]")
		defer srv.Close()

		script, err := testWriter(t, srv.URL).Run(context.Background(), testDoc())
		require.NoError(t, err)

		// default 150 wpm: 7 words -> 2.8s
		words := len(strings.Fields(script.Scenes[0].Narration))
		expected := float64(words) / 150.0 * 60.0
		assert.InDelta(t, expected, script.Scenes[0].AudioDurationSec, 0.001)
		assert.InDelta(t, script.Scenes[0].TimestampEnd, script.Scenes[1].TimestampStart, 0.001)
		assert.Greater(t, script.TotalSec, 0.0)
	})

	t.Run("garbled auxiliary streams yield empty collections", func(t *testing.T) {
		srv := fakeModel(t,
			"Sorry, I can't list clips for this.",
			`[{"kind": "broken`,
		)
		defer srv.Close()

		script, err := testWriter(t, srv.URL).Run(context.Background(), testDoc())
		require.NoError(t, err)
		assert.Empty(t, script.VideoReferences)
		assert.Empty(t, script.EngagementItems)
	})

	t.Run("unparseable script is a hard error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, `{"choices":[{"message":{"content":"I'd be happy to write that script!"}}]}`)
		}))
		defer srv.Close()

		_, err := testWriter(t, srv.URL).Run(context.Background(), testDoc())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse script JSON")
	})

	t.Run("script with no scenes is rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"title\":\"x\",\"hook\":\"y\",\"scenes\":[]}"}}]}`)
		}))
		defer srv.Close()

		_, err := testWriter(t, srv.URL).Run(context.Background(), testDoc())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no scenes")
	})
}
