package synth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DownloadAssets fetches reference assets (proof images, stills)
// concurrently with a bounded worker group. Individual failures are
// logged and skipped; the helper never fails the run. Returns the
// local paths of the assets that downloaded.
func DownloadAssets(ctx context.Context, logger *zap.Logger, urls []string, outputDir string, workers int) []string {
	if len(urls) == 0 {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		logger.Warn("create asset dir failed", zap.Error(err))
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	client := &http.Client{Timeout: 30 * time.Second}
	paths := make([]string, len(urls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outFile := filepath.Join(outputDir, fmt.Sprintf("asset_%03d%s", i, extensionOf(u)))
			if err := downloadFile(ctx, client, u, outFile); err != nil {
				logger.Warn("asset download failed", zap.String("url", u), zap.Error(err))
				return
			}
			paths[i] = outFile
		}(i, u)
	}
	wg.Wait()

	var downloaded []string
	for _, p := range paths {
		if p != "" {
			downloaded = append(downloaded, p)
		}
	}
	logger.Info("reference assets downloaded",
		zap.Int("requested", len(urls)), zap.Int("downloaded", len(downloaded)))
	return downloaded
}

func downloadFile(ctx context.Context, client *http.Client, url, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "shortreel/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) < 100 {
		return fmt.Errorf("response too small (%d bytes)", len(data))
	}
	return os.WriteFile(outFile, data, 0644)
}

func extensionOf(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	ext := filepath.Ext(url)
	if ext == "" || len(ext) > 5 {
		return ".bin"
	}
	return ext
}
