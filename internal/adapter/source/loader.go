// Package source loads named datasets from local files or remote URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrEmptyPayload is returned when a dataset exists but has no bytes.
var ErrEmptyPayload = errors.New("empty payload")

// FetchError reports a failed remote fetch.
type FetchError struct {
	Location   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Location, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Loader reads a dataset from a path or an http(s) URL. Remote payloads are
// revalidated against an optional cache using ETags.
type Loader struct {
	httpClient *http.Client
	cache      Cache
	logger     *slog.Logger
}

// NewLoader creates a Loader. Pass a nil cache to always fetch in full.
func NewLoader(timeout time.Duration, cache Cache, logger *slog.Logger) *Loader {
	return &Loader{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:  cache,
		logger: logger,
	}
}

// Load returns the full contents of the dataset at location.
func (l *Loader) Load(ctx context.Context, location string) ([]byte, error) {
	if isRemote(location) {
		return l.fetch(ctx, location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read %s: %w", location, ErrEmptyPayload)
	}
	return data, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	var cachedEntry Entry
	var haveCached bool
	if l.cache != nil {
		entry, ok, err := l.cache.Get(ctx, url)
		if err != nil {
			l.logger.Warn("source cache read failed", "url", url, "error", err)
		}
		cachedEntry, haveCached = entry, ok && err == nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if haveCached && cachedEntry.ETag != "" {
		req.Header.Set("If-None-Match", cachedEntry.ETag)
	}

	start := time.Now()
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Location: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && haveCached {
		l.logger.Debug("source not modified", "url", url, "etag", cachedEntry.ETag)
		return cachedEntry.Body, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Location: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Location: url, Err: err}
	}
	if len(body) == 0 {
		return nil, &FetchError{Location: url, Err: ErrEmptyPayload}
	}

	l.logger.Info("fetched source", "url", url, "bytes", len(body), "duration", time.Since(start))

	if l.cache != nil {
		if etag := resp.Header.Get("ETag"); etag != "" {
			if err := l.cache.Put(ctx, url, Entry{ETag: etag, Body: body}); err != nil {
				l.logger.Warn("source cache write failed", "url", url, "error", err)
			}
		}
	}
	return body, nil
}
