package backend

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/iyulab/huntdesk/internal/indicators"
)

// Enrichment is the threat-intel verdict for one indicator.
type Enrichment struct {
	Indicator indicators.Indicator `json:"indicator"`
	Verdict   string               `json:"verdict"` // malicious | suspicious | benign | unknown
	Score     int                  `json:"score"`
	Tags      []string             `json:"tags,omitempty"`
	Sources   []EnrichmentSource   `json:"sources,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// EnrichmentSource is one intel provider's answer.
type EnrichmentSource struct {
	Name    string `json:"name"`
	Verdict string `json:"verdict"`
	Detail  string `json:"detail,omitempty"`
}

// Enrich looks up one indicator, serving repeats from the LRU cache.
func (c *Client) Enrich(ctx context.Context, ind indicators.Indicator) (*Enrichment, error) {
	if e, ok := c.enrichments.Get(ind.Key()); ok {
		return e, nil
	}
	var e Enrichment
	if err := c.doJSON(ctx, http.MethodPost, "/enrichment/lookup", ind, &e); err != nil {
		return nil, err
	}
	e.Indicator = ind
	c.enrichments.Add(ind.Key(), &e)
	return &e, nil
}

// EnrichAll looks up inds concurrently, bounded by the configured worker count.
// Per-indicator failures are recorded in Enrichment.Error; only context
// cancellation aborts the batch. Output order matches inds.
func (c *Client) EnrichAll(ctx context.Context, inds []indicators.Indicator) ([]Enrichment, error) {
	out := make([]Enrichment, len(inds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, ind := range inds {
		i, ind := i, ind
		g.Go(func() error {
			e, err := c.Enrich(ctx, ind)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("enrichment failed", "indicator", ind.Key(), "error", err)
				out[i] = Enrichment{Indicator: ind, Verdict: "unknown", Error: err.Error()}
				return nil
			}
			out[i] = *e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
