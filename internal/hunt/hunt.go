// Package hunt coordinates the Build → Search → Shape → Detect pipeline of the hunting console.
package hunt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iyulab/huntdesk/internal/backend"
	"github.com/iyulab/huntdesk/internal/esql"
	"github.com/iyulab/huntdesk/internal/indicators"
	"github.com/iyulab/huntdesk/internal/results"
	"github.com/iyulab/huntdesk/internal/sigma"
)

// ErrNoEnricher is returned by Enrich when the Hunter has no enricher.
var ErrNoEnricher = errors.New("hunt: enrichment not configured")

// NoIndicatorsMessage is shown when enrichment has nothing to look up.
const NoIndicatorsMessage = "No enrichable indicators found."

// Dialect selects the query language sent to the backend.
type Dialect string

const (
	ESQL Dialect = "esql"
	KQL  Dialect = "kql"
)

// ParseDialect accepts "esql", "es|ql", or "kql" in any case.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "esql", "es|ql":
		return ESQL, nil
	case "kql":
		return KQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q (esql, kql)", s)
	}
}

// Searcher runs queries against the backend.
type Searcher interface {
	SearchESQL(ctx context.Context, query string) (*results.Response, error)
	SearchKQL(ctx context.Context, query, index string, limit int) (*results.Response, error)
}

// Enricher looks up threat intel for indicators.
type Enricher interface {
	EnrichAll(ctx context.Context, inds []indicators.Indicator) ([]backend.Enrichment, error)
}

// Request describes one hunt.
type Request struct {
	Query      esql.Query `json:"query"`
	Dialect    Dialect    `json:"dialect,omitempty"`
	Projection string     `json:"jq,omitempty"`
}

// Report is the shaped outcome of a hunt.
type Report struct {
	Dialect  Dialect       `json:"dialect"`
	Query    string        `json:"query"`
	Columns  []string      `json:"columns"`
	Rows     [][]string    `json:"rows"`
	Hits     []results.Hit `json:"hits"`
	Total    int           `json:"total"`
	Took     int           `json:"took_ms"`
	Matches  []sigma.Match `json:"sigma_matches,omitempty"`
	Duration time.Duration `json:"duration"`
}

// EnrichResult pairs the extracted indicators with their lookups.
type EnrichResult struct {
	Indicators  []indicators.Indicator `json:"indicators"`
	Enrichments []backend.Enrichment   `json:"enrichments"`
	Message     string                 `json:"message,omitempty"`
}

// Hunter runs hunts. The display column set is shared across runs, so a
// hunt with no hits keeps the columns of the previous one.
type Hunter struct {
	searcher Searcher
	enricher Enricher
	engine   *sigma.Engine // optional

	mu     sync.Mutex
	shaper results.Shaper
}

// New creates a Hunter. engine and enricher may be nil.
func New(s Searcher, e Enricher, engine *sigma.Engine) *Hunter {
	return &Hunter{searcher: s, enricher: e, engine: engine}
}

// QueryText renders the request in its dialect without running it.
func QueryText(req Request) string {
	if req.Dialect == KQL {
		return esql.BuildKQL(req.Query.Conditions)
	}
	return esql.Build(req.Query)
}

// Run executes the hunt described by req.
func (h *Hunter) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	if req.Dialect == "" {
		req.Dialect = ESQL
	}

	var proj *results.Projection
	if req.Projection != "" {
		var err error
		if proj, err = results.CompileProjection(req.Projection); err != nil {
			return nil, err
		}
	}

	text := QueryText(req)
	slog.Debug("running hunt", "dialect", req.Dialect, "query", text)

	var resp *results.Response
	var err error
	switch req.Dialect {
	case KQL:
		resp, err = h.searcher.SearchKQL(ctx, text, req.Query.Index, req.Query.Limit)
	default:
		resp, err = h.searcher.SearchESQL(ctx, text)
	}
	if err != nil {
		return nil, fmt.Errorf("hunt: search: %w", err)
	}

	if proj != nil {
		if resp, err = proj.Apply(resp); err != nil {
			return nil, fmt.Errorf("hunt: %w", err)
		}
	}

	h.mu.Lock()
	cols := append([]string(nil), h.shaper.Load(resp)...)
	rows := h.shaper.Rows(resp.Hits)
	h.mu.Unlock()

	report := &Report{
		Dialect: req.Dialect,
		Query:   text,
		Columns: cols,
		Rows:    rows,
		Hits:    resp.Hits,
		Total:   resp.Total,
		Took:    resp.Took,
	}

	if h.engine != nil {
		report.Matches = h.engine.MatchAll(ctx, resp.Hits)
		if len(report.Matches) > 0 {
			slog.Info("sigma rule matches", "count", len(report.Matches))
		}
	}

	report.Duration = time.Since(start)
	slog.Info("hunt complete",
		"dialect", req.Dialect,
		"hits", len(resp.Hits),
		"total", resp.Total,
		"took_ms", resp.Took,
	)
	return report, nil
}

// Enrich extracts indicators from one hit source and looks them up.
func (h *Hunter) Enrich(ctx context.Context, source map[string]any) (*EnrichResult, error) {
	inds := indicators.Extract(source)
	if len(inds) == 0 {
		return &EnrichResult{Indicators: inds, Enrichments: []backend.Enrichment{}, Message: NoIndicatorsMessage}, nil
	}
	if h.enricher == nil {
		return nil, ErrNoEnricher
	}
	enr, err := h.enricher.EnrichAll(ctx, inds)
	if err != nil {
		return nil, fmt.Errorf("hunt: enrich: %w", err)
	}
	return &EnrichResult{Indicators: inds, Enrichments: enr}, nil
}
