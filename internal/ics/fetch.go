package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "calshell/internal/log"
)

// Source is one ICS subscription.
type Source struct {
	ID   string
	Name string
	URL  string
}

// Feed is the body obtained for a Source.
type Feed struct {
	Source Source
	Body   []byte
	// Stale is true when Body came from the disk cache (304 or fetch failure).
	Stale bool
}

// validators are the HTTP cache validators saved next to a cached body.
type validators struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

const (
	bodyFile = "body.ics"
	metaFile = "meta.json"
)

// Fetcher downloads ICS feeds with conditional requests and keeps the last
// good body on disk so a failing upstream still renders something.
type Fetcher struct {
	client *http.Client
	dir    string
}

// NewFetcher returns a Fetcher caching under dir. A nil client gets a
// 15 second timeout.
func NewFetcher(dir string, client *http.Client) *Fetcher {
	if dir == "" {
		dir = "./var/ics-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, dir: dir}
}

// FetchAll fetches every source in order. Sources that produce no body are
// reported in the error slice and left out of the feeds.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]Feed, []error) {
	feeds := make([]Feed, 0, len(sources))
	var errs []error
	for _, src := range sources {
		feed, err := f.Fetch(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("ics: fetch %s: %w", src.ID, err))
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", RedactURL(src.URL))
			continue
		}
		feeds = append(feeds, feed)
	}
	return feeds, errs
}

// Fetch performs a conditional GET for src. A 304 or any failure with a
// cached body falls back to the cache.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (Feed, error) {
	if src.URL == "" {
		return Feed{}, errors.New("source URL is empty")
	}

	entryDir := f.entryDir(src.URL)
	if err := os.MkdirAll(entryDir, 0o700); err != nil {
		return Feed{}, err
	}
	meta := readValidators(entryDir)
	cached, _ := os.ReadFile(filepath.Join(entryDir, bodyFile))

	stale := func(reason error) (Feed, error) {
		if len(cached) == 0 {
			return Feed{}, reason
		}
		appLog.Warn("ics using cached body", "id", src.ID, "url", RedactURL(src.URL), "reason", reason)
		return Feed{Source: src, Body: cached, Stale: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Feed{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", RedactURL(src.URL))
	resp, err := f.client.Do(req)
	if err != nil {
		return stale(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return stale(err)
		}
		next := validators{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := writeEntry(entryDir, next, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID)
		}
		appLog.Info("ics fetch success", "id", src.ID, "url", RedactURL(src.URL), "bytes", len(body))
		return Feed{Source: src, Body: body}, nil
	case http.StatusNotModified:
		if len(cached) == 0 {
			return Feed{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics not modified", "id", src.ID)
		return Feed{Source: src, Body: cached, Stale: true}, nil
	default:
		return stale(errors.New(resp.Status))
	}
}

func (f *Fetcher) entryDir(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:8]))
}

func readValidators(dir string) validators {
	var v validators
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return validators{}
	}
	return v
}

// writeEntry stores the body before the validators so the metadata never
// points at a missing body.
func writeEntry(dir string, v validators, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, bodyFile), body, 0o600); err != nil {
		return err
	}
	v.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFile), data, 0o600)
}

// RedactURL keeps only scheme and host; subscription URLs usually embed
// private tokens in the path or query.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
