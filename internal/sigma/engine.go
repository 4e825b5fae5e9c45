// Package sigma evaluates Sigma detection rules against search hits.
package sigma

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"strings"

	sigmalib "github.com/bradleyjkemp/sigma-go"
	"github.com/bradleyjkemp/sigma-go/evaluator"

	"github.com/iyulab/huntdesk/internal/results"
)

//go:embed rules
var embeddedRules embed.FS

// Engine evaluates Sigma rules against search hits.
type Engine struct {
	rules []evaluator.RuleEvaluator
}

// NewDefault returns an Engine holding only the built-in rules.
func NewDefault() (*Engine, error) {
	builtin, err := fs.Sub(embeddedRules, "rules")
	if err != nil {
		return nil, fmt.Errorf("sigma: embedded rules: %w", err)
	}
	return New(builtin)
}

// NewWithDir loads the embedded rules plus every rule under dir.
// An empty dir yields the embedded set only.
func NewWithDir(dir string) (*Engine, error) {
	eng, err := NewDefault()
	if err != nil || dir == "" {
		return eng, err
	}
	extra, err := New(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("sigma: rules dir %s: %w", dir, err)
	}
	eng.rules = append(eng.rules, extra.rules...)
	return eng, nil
}

// New loads every .yml/.yaml file in rulesFS as a Sigma rule. Files that
// fail to parse are reported together rather than one at a time.
func New(rulesFS fs.FS) (*Engine, error) {
	eng := &Engine{}
	var errs []error

	walkErr := fs.WalkDir(rulesFS, ".", func(name string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() || !isRuleFile(name):
			return nil
		}
		if err := eng.load(rulesFS, name); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("sigma: walk rules: %w", walkErr)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return eng, nil
}

func isRuleFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

func (e *Engine) load(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("sigma: read %s: %w", name, err)
	}
	rule, err := sigmalib.ParseRule(data)
	if err != nil {
		return fmt.Errorf("sigma: parse %s: %w", name, err)
	}
	e.rules = append(e.rules, *evaluator.ForRule(rule))
	return nil
}

// Len returns the number of loaded rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// MatchAll evaluates all rules against each hit and returns matches.
// Rules with a logsource.category only apply to hits whose event.category equals it.
func (e *Engine) MatchAll(ctx context.Context, hits []results.Hit) []Match {
	var matches []Match
	for _, h := range hits {
		if len(h.Source) == 0 {
			continue
		}
		matches = append(matches, e.matchHit(ctx, h)...)
	}
	return matches
}

func (e *Engine) matchHit(ctx context.Context, h results.Hit) []Match {
	event := Flatten(h.Source)

	var matches []Match
	for _, ev := range e.rules {
		if cat := ev.Rule.Logsource.Category; cat != "" && !hasCategory(event, cat) {
			continue
		}
		res, err := ev.Matches(ctx, event)
		if err != nil || !res.Match {
			continue
		}
		matches = append(matches, Match{
			HitID:     h.ID,
			Index:     h.Index,
			RuleTitle: ev.Rule.Title,
			RuleID:    ev.Rule.ID,
			Level:     ev.Rule.Level,
			Event:     event,
		})
	}
	return matches
}

// hasCategory accepts both scalar and array event.category values (ECS allows either).
func hasCategory(event map[string]any, cat string) bool {
	switch v := event["event.category"].(type) {
	case string:
		return v == cat
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == cat {
				return true
			}
		}
	}
	return false
}

// Flatten turns nested objects into dotted keys so rules written against
// ECS field names match both flat and nested documents. Arrays are kept
// as values; whole-number floats become ints.
func Flatten(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	flattenInto(out, "", src)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, key, val)
		case float64:
			if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
				out[key] = int64(val)
			} else {
				out[key] = val
			}
		default:
			out[key] = v
		}
	}
}
