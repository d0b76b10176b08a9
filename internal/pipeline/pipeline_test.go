package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shortreel/internal/config"
	"shortreel/internal/llm"
	"shortreel/internal/store"
)

const scriptBody = `{
  "title": "A Short",
  "hook": "Watch this.",
  "scenes": [
    {"narration": "First fact here.", "visual_direction": "still"},
    {"narration": "Second fact here.", "visual_direction": "map"}
  ]
}`

// fakeModel answers the condense call with a brief and the script
// calls with canned JSON.
func fakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body llm.Request
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		content := "A factual brief. https://ref.example/1"
		if len(body.Messages) > 0 {
			switch system := body.Messages[0].Content; {
			case strings.Contains(system, "scriptwriter"):
				content = scriptBody
			case strings.Contains(system, "supporting video clips"),
				strings.Contains(system, "social-engagement"):
				content = "[]"
			}
		}

		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func fakeBroker(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{
			"session_id": "sess-1",
			"connections": [
				{"toolkit": "websearch", "connection_id": "c1", "status": "active"},
				{"toolkit": "newsfeed", "connection_id": "c2", "status": "active"}
			]
		}`)
	})
	mux.HandleFunc("/execute", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"successful": true, "data": {"results": [{"title": "T", "url": "https://s.example/1", "snippet": "s"}]}}`)
	})
	return httptest.NewServer(mux)
}

func TestRunParksAtApprovalGate(t *testing.T) {
	brokerSrv := fakeBroker(t)
	defer brokerSrv.Close()
	modelSrv := fakeModel(t)
	defer modelSrv.Close()

	t.Setenv("BROKER_API_KEY", "bk")
	t.Setenv("GROQ_API_KEY", "gk")
	t.Setenv("GROQ_BASE_URL", modelSrv.URL)

	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	cfg.Broker.BaseURL = brokerSrv.URL
	cfg.Paths.Output = filepath.Join(dir, "output")
	cfg.Paths.StateDB = filepath.Join(dir, "runs.db")
	cfg.Research.Subreddits = nil
	cfg.Approval.Interactive = false

	st, err := store.Open(cfg.Paths.StateDB)
	require.NoError(t, err)
	defer st.Close()

	run, err := New(cfg, zap.NewNop(), st).Run(context.Background(), "test topic")
	require.ErrorIs(t, err, ErrAwaitingApproval)
	require.NotNil(t, run)

	got, err := st.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusAwaitingApproval, got.Status)
	require.NotNil(t, got.Script)
	assert.Equal(t, "A Short", got.Script.Title)
	assert.Len(t, got.Script.Scenes, 2)

	// stage artifacts land in the run dir
	assert.FileExists(t, filepath.Join(got.RunDir, "research.json"))
	assert.FileExists(t, filepath.Join(got.RunDir, "script.json"))
	assert.FileExists(t, filepath.Join(got.RunDir, "state.json"))

	data, err := os.ReadFile(filepath.Join(got.RunDir, "research.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://ref.example/1")
}

func TestRunMarksFailureWhenResearchDies(t *testing.T) {
	brokerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer brokerSrv.Close()
	modelSrv := fakeModel(t)
	defer modelSrv.Close()

	t.Setenv("BROKER_API_KEY", "bk")
	t.Setenv("GROQ_API_KEY", "gk")
	t.Setenv("GROQ_BASE_URL", modelSrv.URL)

	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	cfg.Broker.BaseURL = brokerSrv.URL
	cfg.Paths.Output = filepath.Join(dir, "output")
	cfg.Paths.StateDB = filepath.Join(dir, "runs.db")
	cfg.Research.Subreddits = nil

	st, err := store.Open(cfg.Paths.StateDB)
	require.NoError(t, err)
	defer st.Close()

	run, err := New(cfg, zap.NewNop(), st).Run(context.Background(), "test topic")
	require.Error(t, err)
	require.NotNil(t, run)

	got, err := st.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "research")
}

func TestResumeRequiresApprovedRun(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	cfg.Paths.StateDB = filepath.Join(dir, "runs.db")

	st, err := store.Open(cfg.Paths.StateDB)
	require.NoError(t, err)
	defer st.Close()

	_, err = st.Create(context.Background(), "run1", "topic", dir)
	require.NoError(t, err)

	err = New(cfg, zap.NewNop(), st).Resume(context.Background(), "run1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected approved")
}
