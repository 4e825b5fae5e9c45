package releases

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Release is the display form of one appliance release.
type Release struct {
	Version    string        `json:"version"`
	Name       string        `json:"name"`
	Date       time.Time     `json:"date"`
	Size       string        `json:"size"`
	SHA256     string        `json:"sha256"`
	Changelog  []string      `json:"changelog"`
	Assets     []GitHubAsset `json:"assets"`
	IsLatest   bool          `json:"is_latest"`
	Prerelease bool          `json:"prerelease"`
	URL        string        `json:"url,omitempty"`
}

const (
	maxChangelogItems = 6
	minChangelogItem  = 5
	summaryLimit      = 150

	// NoChecksum is reported when neither the body nor the assets carry a checksum.
	NoChecksum = "Checksum not available"
	// SumsPlaceholder points the user at a SHA256SUMS asset.
	SumsPlaceholder = "See SHA256SUMS in the release assets"
	unknownSize     = "Unknown"
)

var (
	sha256Pattern   = regexp.MustCompile(`(?i)sha256[:\s]+([a-f0-9]{64})`)
	bulletPattern   = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+(.+)$`)
	bareLinkPattern = regexp.MustCompile(`^(?:\[[^\]]*\]\([^)]*\)|<?https?://\S+>?)$`)
)

// Derive turns raw releases into display releases. Drafts are dropped, the
// rest are sorted newest first, and the first non-prerelease is marked latest.
func Derive(raw []GitHubRelease) []Release {
	kept := make([]GitHubRelease, 0, len(raw))
	for _, r := range raw {
		if !r.Draft {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].PublishedAt.After(kept[j].PublishedAt)
	})

	out := make([]Release, 0, len(kept))
	latestSet := false
	for _, r := range kept {
		rel := Release{
			Version:    r.TagName,
			Name:       r.Name,
			Date:       r.PublishedAt,
			Size:       LargestAssetSize(r.Assets),
			SHA256:     ExtractSHA256(r.Body, r.Assets),
			Changelog:  ExtractChangelog(r.Body),
			Assets:     r.Assets,
			Prerelease: r.Prerelease,
			URL:        r.HTMLURL,
		}
		if !latestSet && !r.Prerelease {
			rel.IsLatest = true
			latestSet = true
		}
		out = append(out, rel)
	}
	return out
}

// LargestAssetSize formats the size of the biggest asset, the one users download.
func LargestAssetSize(assets []GitHubAsset) string {
	var largest int64 = -1
	for _, a := range assets {
		if a.Size > largest {
			largest = a.Size
		}
	}
	if largest < 0 {
		return unknownSize
	}
	return FormatBytes(largest)
}

// FormatBytes renders n as B/KB/MB/GB/TB with one decimal, dropping a trailing ".0".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := math.Round(float64(n)/math.Pow(1024, float64(i))*10) / 10
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}

// ExtractSHA256 finds a checksum in the release body, falling back to a
// pointer at a SHA256SUMS asset, then to NoChecksum.
func ExtractSHA256(body string, assets []GitHubAsset) string {
	if m := sha256Pattern.FindStringSubmatch(body); m != nil {
		return strings.ToLower(m[1])
	}
	for _, a := range assets {
		if strings.Contains(strings.ToUpper(a.Name), "SHA256SUMS") {
			return SumsPlaceholder
		}
	}
	return NoChecksum
}

// HasChecksum reports whether s is a real hex digest rather than a placeholder.
func HasChecksum(s string) bool {
	return len(s) == 64 && s != NoChecksum && s != SumsPlaceholder
}

// ExtractChangelog pulls up to six markdown list items from body. Bare links
// and items shorter than five characters are skipped. Without list items the
// first paragraph is used, truncated to 150 characters.
func ExtractChangelog(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	items := []string{}
	for _, line := range strings.Split(body, "\n") {
		m := bulletPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		item := strings.TrimSpace(m[1])
		if len(item) < minChangelogItem || bareLinkPattern.MatchString(item) {
			continue
		}
		items = append(items, item)
		if len(items) == maxChangelogItems {
			break
		}
	}
	if len(items) > 0 {
		return items
	}

	if p := firstParagraph(body); p != "" {
		return []string{truncate(p, summaryLimit)}
	}
	return items
}

// firstParagraph returns the first blank-line separated block that is not a heading.
func firstParagraph(body string) string {
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, "#") {
			continue
		}
		return strings.Join(strings.Fields(block), " ")
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
