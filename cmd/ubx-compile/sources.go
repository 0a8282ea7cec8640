package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/edgecomet/ubx/internal/common/configtypes"
)

// readListSource fetches the text of one filter-list source: a plain
// local path, or an http(s):// URL fetched with a bounded timeout and
// read-size cap so one oversized or slow list can't stall the whole
// compile run.
func readListSource(src configtypes.ListSource, maxBytes int64) (string, error) {
	u, err := url.Parse(src.URL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return fetchHTTPList(src.URL, maxBytes)
	}
	return readLocalList(src.URL, maxBytes)
}

func readLocalList(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readCapped(f, maxBytes, path)
}

func fetchHTTPList(rawURL string, maxBytes int64) (string, error) {
	ctx, cancel := ctxWithTimeout(30 * time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return readCapped(resp.Body, maxBytes, rawURL)
}

func readCapped(r io.Reader, maxBytes int64, label string) (string, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	limited := io.LimitReader(r, maxBytes+1)
	var sb strings.Builder
	n, err := io.Copy(&sb, limited)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	if n > maxBytes {
		return "", fmt.Errorf("%s exceeds max_bytes_per_list (%d bytes)", label, maxBytes)
	}
	return sb.String(), nil
}

func ctxWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
