package backend

import (
	"context"
	"net/http"

	"github.com/iyulab/huntdesk/internal/results"
)

type esqlRequest struct {
	Query string `json:"query"`
}

type kqlRequest struct {
	Query string `json:"query"`
	Index string `json:"index"`
	Limit int    `json:"limit"`
}

// SearchESQL sends a pre-built ES|QL query verbatim.
func (c *Client) SearchESQL(ctx context.Context, query string) (*results.Response, error) {
	var resp results.Response
	if err := c.doJSON(ctx, http.MethodPost, "/search/esql", esqlRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchKQL runs a KQL query against index.
func (c *Client) SearchKQL(ctx context.Context, query, index string, limit int) (*results.Response, error) {
	var resp results.Response
	req := kqlRequest{Query: query, Index: index, Limit: limit}
	if err := c.doJSON(ctx, http.MethodPost, "/search/kql", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
