package results

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// Projection is a compiled jq expression applied to each hit source.
type Projection struct {
	expr string
	code *gojq.Code
}

// CompileProjection parses and compiles a jq expression.
func CompileProjection(expr string) (*Projection, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %w", err)
	}
	return &Projection{expr: expr, code: code}, nil
}

// Apply runs the projection over every hit and returns a new response.
// A hit producing no output is dropped, so `select(...)` works as a filter.
// Object outputs replace the source; any other value is stored under "value".
// Total and Took are carried over unchanged.
func (p *Projection) Apply(resp *Response) (*Response, error) {
	out := &Response{Total: resp.Total, Took: resp.Took}
	for _, h := range resp.Hits {
		iter := p.code.Run(normalize(h.Source))
		v, ok := iter.Next()
		if !ok {
			continue
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq %q on hit %s: %w", p.expr, h.ID, err)
		}

		projected := Hit{ID: h.ID, Index: h.Index, Score: h.Score}
		if m, isMap := v.(map[string]any); isMap {
			projected = NewHit(m, h.Keys()...)
			projected.ID, projected.Index, projected.Score = h.ID, h.Index, h.Score
		} else {
			projected.Source = map[string]any{"value": v}
			projected.keys = []string{"value"}
		}
		out.Hits = append(out.Hits, projected)
	}
	return out, nil
}

// normalize converts values gojq cannot consume (typed maps/slices from
// hand-built sources) into the plain JSON forms it expects.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[k] = normalize(val)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, val := range x {
			s[i] = normalize(val)
		}
		return s
	case []string:
		s := make([]any, len(x))
		for i, val := range x {
			s[i] = val
		}
		return s
	case []map[string]any:
		s := make([]any, len(x))
		for i, val := range x {
			s[i] = normalize(val)
		}
		return s
	case int64:
		return int(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}
