package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	t.Run("resolves connection ids per toolkit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/sessions", req.URL.Path)
			assert.Equal(t, "Bearer key", req.Header.Get("Authorization"))

			var body createSessionRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, []string{"websearch", "newsfeed"}, body.Toolkits)

			fmt.Fprint(w, `{
				"session_id": "sess-1",
				"connections": [
					{"toolkit": "websearch", "connection_id": "conn-a", "status": "active"},
					{"toolkit": "newsfeed", "connection_id": "conn-b", "status": "active"}
				]
			}`)
		}))
		defer srv.Close()

		session, err := NewWith(srv.URL, "key").CreateSession(context.Background(), "websearch", "newsfeed")
		require.NoError(t, err)
		assert.Equal(t, "sess-1", session.ID)
		assert.Equal(t, "conn-a", session.Connections["websearch"])
		assert.Equal(t, "conn-b", session.Connections["newsfeed"])
	})

	t.Run("fails fast when a toolkit has no active connection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, `{
				"session_id": "sess-2",
				"connections": [
					{"toolkit": "websearch", "connection_id": "conn-a", "status": "active"},
					{"toolkit": "newsfeed", "connection_id": "conn-b", "status": "expired"}
				]
			}`)
		}))
		defer srv.Close()

		_, err := NewWith(srv.URL, "key").CreateSession(context.Background(), "websearch", "newsfeed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"newsfeed"`)
	})

	t.Run("broker error is surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, `{"error": "plan quota exceeded"}`)
		}))
		defer srv.Close()

		_, err := NewWith(srv.URL, "key").CreateSession(context.Background(), "websearch")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "plan quota exceeded")
	})

	t.Run("empty toolkit list is rejected locally", func(t *testing.T) {
		_, err := NewWith("http://unused", "key").CreateSession(context.Background())
		assert.Error(t, err)
	})
}

func TestExecute(t *testing.T) {
	newSession := func(srvURL string) *Session {
		return &Session{
			ID:          "sess-1",
			Connections: map[string]string{"websearch": "conn-a"},
			client:      NewWith(srvURL, "key"),
		}
	}

	t.Run("carries session and connection ids", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/execute", req.URL.Path)

			var body executeRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "sess-1", body.SessionID)
			assert.Equal(t, "conn-a", body.ConnectionID)
			assert.Equal(t, "search", body.Tool)
			assert.Equal(t, "go generics", body.Arguments["query"])

			fmt.Fprint(w, `{"successful": true, "data": {"results": []}}`)
		}))
		defer srv.Close()

		data, err := newSession(srv.URL).Execute(context.Background(), "websearch", "search",
			map[string]any{"query": "go generics"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"results": []}`, string(data))
	})

	t.Run("unsuccessful execution is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, `{"successful": false, "error": "rate limited"}`)
		}))
		defer srv.Close()

		_, err := newSession(srv.URL).Execute(context.Background(), "websearch", "search", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("unknown toolkit is rejected locally", func(t *testing.T) {
		_, err := newSession("http://unused").Execute(context.Background(), "calendar", "list", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"calendar"`)
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newSession(srv.URL).Execute(context.Background(), "websearch", "search", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}
