package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Case is an investigation record in the case-management integration.
type Case struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// ListCases returns all cases visible to the token.
func (c *Client) ListCases(ctx context.Context) ([]Case, error) {
	var out []Case
	if err := c.doJSON(ctx, http.MethodGet, "/cases", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCase opens a new case.
func (c *Client) CreateCase(ctx context.Context, in Case) (*Case, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("backend: case title is required")
	}
	var out Case
	if err := c.doJSON(ctx, http.MethodPost, "/cases", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IsolateRequest asks the endpoint tool to network-isolate a host.
type IsolateRequest struct {
	Hostname string `json:"hostname"`
	CaseID   string `json:"case_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ResponseAction is the backend's acknowledgement of a response action.
type ResponseAction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// IsolateHost triggers host isolation via the SOAR integration.
func (c *Client) IsolateHost(ctx context.Context, req IsolateRequest) (*ResponseAction, error) {
	if req.Hostname == "" {
		return nil, fmt.Errorf("backend: hostname is required")
	}
	var out ResponseAction
	if err := c.doJSON(ctx, http.MethodPost, "/response/isolate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GraphNode and GraphEdge form an investigation graph.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

type GraphEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// Graph is the response of BuildGraph.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphRequest seeds a graph build from indicators or entity IDs.
type GraphRequest struct {
	CaseID string   `json:"case_id,omitempty"`
	Seeds  []string `json:"seeds"`
	Depth  int      `json:"depth,omitempty"`
}

// BuildGraph asks the backend to expand seeds into a relationship graph.
func (c *Client) BuildGraph(ctx context.Context, req GraphRequest) (*Graph, error) {
	var out Graph
	if err := c.doJSON(ctx, http.MethodPost, "/graphs/build", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
