package synth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDownloadAssets(t *testing.T) {
	payload := strings.Repeat("x", 512)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch {
		case strings.HasPrefix(req.URL.Path, "/ok"):
			fmt.Fprint(w, payload)
		case strings.HasPrefix(req.URL.Path, "/tiny"):
			fmt.Fprint(w, "x")
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	t.Run("failures are skipped, successes kept in order", func(t *testing.T) {
		urls := []string{
			srv.URL + "/ok/a.jpg",
			srv.URL + "/missing/b.jpg",
			srv.URL + "/ok/c.png",
			srv.URL + "/tiny/d.jpg",
		}
		got := DownloadAssets(context.Background(), zap.NewNop(), urls, t.TempDir(), 2)
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "asset_000.jpg")
		assert.Contains(t, got[1], "asset_002.png")
	})

	t.Run("no urls is a no-op", func(t *testing.T) {
		assert.Nil(t, DownloadAssets(context.Background(), zap.NewNop(), nil, t.TempDir(), 4))
	})

	t.Run("query strings do not leak into filenames", func(t *testing.T) {
		urls := []string{srv.URL + "/ok/a.jpg?width=800"}
		got := DownloadAssets(context.Background(), zap.NewNop(), urls, t.TempDir(), 1)
		require.Len(t, got, 1)
		assert.Contains(t, got[0], "asset_000.jpg")
	})
}
