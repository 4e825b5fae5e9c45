package releases

import (
	"strings"
	"testing"
	"time"
)

func TestExtractChangelog_CapsAtSix(t *testing.T) {
	body := `## What's new
- Added Velociraptor 0.7 collector
- Fixed timeline export crash
* Upgraded IRIS to 2.4
+ New SOAR playbooks bundled
1. Hardened SSH defaults
2) Faster first boot
- Reduced OVA size
- Updated threat intel feeds`

	got := ExtractChangelog(body)
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6: %v", len(got), got)
	}
	if got[0] != "Added Velociraptor 0.7 collector" || got[5] != "Faster first boot" {
		t.Errorf("unexpected items: %v", got)
	}
}

func TestExtractChangelog_SkipsLinksAndShortItems(t *testing.T) {
	body := `- https://github.com/acme/dfir-ova/compare/v1...v2
- [Full changelog](https://github.com/acme/dfir-ova/compare/v1...v2)
- tiny
- A real change`
	got := ExtractChangelog(body)
	if len(got) != 1 || got[0] != "A real change" {
		t.Errorf("got %v", got)
	}
}

func TestExtractChangelog_FallsBackToParagraph(t *testing.T) {
	long := strings.Repeat("word ", 40) // 200 chars
	body := "# Release 2.0\n\n" + long + "\n\nsecond paragraph"

	got := ExtractChangelog(body)
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
	if !strings.HasSuffix(got[0], "...") {
		t.Errorf("expected ellipsis: %q", got[0])
	}
	if n := len([]rune(got[0])); n != 153 {
		t.Errorf("length = %d, want 150 + ellipsis", n)
	}
}

func TestExtractChangelog_ShortParagraphUntouched(t *testing.T) {
	got := ExtractChangelog("Maintenance release.")
	if len(got) != 1 || got[0] != "Maintenance release." {
		t.Errorf("got %v", got)
	}
	if got := ExtractChangelog(""); len(got) != 0 {
		t.Errorf("empty body: got %v", got)
	}
}

func TestExtractSHA256(t *testing.T) {
	digest := strings.Repeat("0f", 32)
	tests := []struct {
		name   string
		body   string
		assets []GitHubAsset
		want   string
	}{
		{"inline colon", "SHA256: " + strings.ToUpper(digest), nil, digest},
		{"inline space", "sha256 " + digest + " dfir.ova", nil, digest},
		{"sums asset", "no digest", []GitHubAsset{{Name: "SHA256SUMS.txt"}}, SumsPlaceholder},
		{"nothing", "no digest", []GitHubAsset{{Name: "dfir.ova"}}, NoChecksum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSHA256(tt.body, tt.assets); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5 MB"},
		{4584877998, "4.3 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3 TB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestLargestAssetSize(t *testing.T) {
	assets := []GitHubAsset{{Name: "SHA256SUMS", Size: 200}, {Name: "dfir.ova", Size: 2 * 1024 * 1024 * 1024}}
	if got := LargestAssetSize(assets); got != "2 GB" {
		t.Errorf("got %q", got)
	}
	if got := LargestAssetSize(nil); got != unknownSize {
		t.Errorf("got %q", got)
	}
}

func TestDerive_LatestAndOrdering(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	raw := []GitHubRelease{
		{TagName: "v1.0.0", PublishedAt: day(1)},
		{TagName: "v1.2.0-rc1", PublishedAt: day(20), Prerelease: true},
		{TagName: "v1.3.0", PublishedAt: day(25), Draft: true},
		{TagName: "v1.1.0", PublishedAt: day(10)},
	}
	got := Derive(raw)
	if len(got) != 3 {
		t.Fatalf("drafts should be dropped, got %d releases", len(got))
	}
	wantOrder := []string{"v1.2.0-rc1", "v1.1.0", "v1.0.0"}
	for i, v := range wantOrder {
		if got[i].Version != v {
			t.Errorf("got[%d] = %s, want %s", i, got[i].Version, v)
		}
	}
	if got[0].IsLatest || !got[1].IsLatest || got[2].IsLatest {
		t.Errorf("IsLatest flags wrong: %v %v %v", got[0].IsLatest, got[1].IsLatest, got[2].IsLatest)
	}
}
