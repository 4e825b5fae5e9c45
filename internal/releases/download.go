package releases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrChecksumMismatch is returned when a downloaded file does not match the published digest.
var ErrChecksumMismatch = errors.New("releases: checksum mismatch")

// PrimaryAsset returns the largest asset, which is the appliance image.
func PrimaryAsset(r Release) (GitHubAsset, bool) {
	var best GitHubAsset
	found := false
	for _, a := range r.Assets {
		if !found || a.Size > best.Size {
			best = a
			found = true
		}
	}
	return best, found
}

// Download fetches asset into dir and returns the written path and its sha256.
// When want is a real digest the file is verified and removed on mismatch.
func Download(ctx context.Context, client *http.Client, asset GitHubAsset, dir, want string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("releases: create request: %w", err)
	}
	resp, err := httpClient(client).Do(req)
	if err != nil {
		return "", "", fmt.Errorf("releases: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("releases: download returned %d", resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("releases: create dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(asset.Name))
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("releases: create dest file: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		f.Close()
		_ = os.Remove(dest)
		return "", "", fmt.Errorf("releases: write download: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return "", "", fmt.Errorf("releases: close dest file: %w", err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if HasChecksum(want) && !strings.EqualFold(got, want) {
		_ = os.Remove(dest)
		return "", got, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, want)
	}
	return dest, got, nil
}

// IsNewer returns true if latest > current (semver comparison).
// A "dev" current version is always considered older.
func IsNewer(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")
	if current == "dev" || current == "" || current == "none" {
		return latest != ""
	}
	return semverLess(current, latest)
}

func semverLess(a, b string) bool {
	pa := splitSemver(a)
	pb := splitSemver(b)
	for i := 0; i < 3; i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return false
}

func splitSemver(v string) [3]int {
	// drop pre-release/build suffixes: 1.2.3-rc1+abc
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var out [3]int
	for i, p := range strings.SplitN(v, ".", 3) {
		out[i], _ = strconv.Atoi(p)
	}
	return out
}
