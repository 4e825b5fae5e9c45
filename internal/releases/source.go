// Package releases fetches appliance releases and derives download metadata.
package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// GitHubRelease is the subset of the GitHub Releases API payload we read.
// The static fallback file uses the same schema.
type GitHubRelease struct {
	TagName     string        `json:"tag_name"`
	Name        string        `json:"name"`
	Body        string        `json:"body"`
	Draft       bool          `json:"draft"`
	Prerelease  bool          `json:"prerelease"`
	PublishedAt time.Time     `json:"published_at"`
	HTMLURL     string        `json:"html_url"`
	Assets      []GitHubAsset `json:"assets"`
}

// GitHubAsset is a downloadable file attached to a release.
type GitHubAsset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Source yields the raw release list.
type Source interface {
	Fetch(ctx context.Context) ([]GitHubRelease, error)
}

// GitHubSource reads /repos/<repo>/releases from the GitHub API.
type GitHubSource struct {
	APIURL string // defaults to https://api.github.com
	Repo   string // owner/name
	Token  string
	Client *http.Client
}

// Fetch implements Source.
func (s *GitHubSource) Fetch(ctx context.Context) ([]GitHubRelease, error) {
	base := s.APIURL
	if base == "" {
		base = "https://api.github.com"
	}
	url := strings.TrimRight(base, "/") + "/repos/" + s.Repo + "/releases"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("releases: create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := httpClient(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("releases: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("releases: GitHub API returned %d", resp.StatusCode)
	}
	return decode(resp.Body)
}

// StaticSource reads a release list from a URL or a local file.
type StaticSource struct {
	Location string
	Client   *http.Client
}

// Fetch implements Source.
func (s *StaticSource) Fetch(ctx context.Context) ([]GitHubRelease, error) {
	if s.Location == "" {
		return nil, fmt.Errorf("releases: no fallback configured")
	}
	if !strings.HasPrefix(s.Location, "http://") && !strings.HasPrefix(s.Location, "https://") {
		f, err := os.Open(s.Location)
		if err != nil {
			return nil, fmt.Errorf("releases: open fallback: %w", err)
		}
		defer f.Close()
		return decode(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("releases: create request: %w", err)
	}
	resp, err := httpClient(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("releases: fetch fallback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("releases: fallback returned %d", resp.StatusCode)
	}
	return decode(resp.Body)
}

func decode(r io.Reader) ([]GitHubRelease, error) {
	var out []GitHubRelease
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("releases: parse response: %w", err)
	}
	return out, nil
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
