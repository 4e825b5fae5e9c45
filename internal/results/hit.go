// Package results shapes backend search responses for display and export.
package results

import (
	"encoding/json"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Response is the backend search response envelope.
type Response struct {
	Hits  []Hit `json:"hits"`
	Total int   `json:"total"`
	Took  int   `json:"took"` // milliseconds
}

// Hit is a single search result. Source keeps the wire key order so the
// column set follows the document rather than Go's map ordering.
type Hit struct {
	ID     string         `json:"id,omitempty"`
	Index  string         `json:"index,omitempty"`
	Score  float64        `json:"score,omitempty"`
	Source map[string]any `json:"source"`

	keys []string
}

// NewHit builds a Hit from a source and an explicit key order.
// Keys missing from keys are appended in sorted order.
func NewHit(source map[string]any, keys ...string) Hit {
	h := Hit{Source: source}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := source[k]; ok && !seen[k] {
			h.keys = append(h.keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range source {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	h.keys = append(h.keys, rest...)
	return h
}

// Keys returns the top-level source keys in document order.
func (h Hit) Keys() []string {
	if len(h.keys) == len(h.Source) {
		return h.keys
	}
	return NewHit(h.Source, h.keys...).keys
}

// UnmarshalJSON decodes a hit, recording the key order of "source".
func (h *Hit) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID     string          `json:"id"`
		Index  string          `json:"index"`
		Score  float64         `json:"score"`
		Source json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	h.ID, h.Index, h.Score = wire.ID, wire.Index, wire.Score
	h.Source = map[string]any{}
	h.keys = nil

	if len(wire.Source) == 0 || string(wire.Source) == "null" {
		return nil
	}

	om := orderedmap.New[string, any]()
	if err := om.UnmarshalJSON(wire.Source); err != nil {
		return fmt.Errorf("hit %s: source: %w", wire.ID, err)
	}
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		h.keys = append(h.keys, pair.Key)
		h.Source[pair.Key] = pair.Value
	}
	return nil
}

// orderedSource returns the source as an ordered map for order-preserving encoding.
func (h Hit) orderedSource() *orderedmap.OrderedMap[string, any] {
	om := orderedmap.New[string, any](len(h.Source))
	for _, k := range h.Keys() {
		om.Set(k, h.Source[k])
	}
	return om
}

// MarshalJSON encodes the hit with its source keys in document order.
func (h Hit) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     string                              `json:"id,omitempty"`
		Index  string                              `json:"index,omitempty"`
		Score  float64                             `json:"score,omitempty"`
		Source *orderedmap.OrderedMap[string, any] `json:"source"`
	}{h.ID, h.Index, h.Score, h.orderedSource()})
}
