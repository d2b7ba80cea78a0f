package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MetricsURI is the resource exposing latency percentiles and counters.
const MetricsURI = "catalogsearch://metrics"

// registerMetricsResource registers the metrics resource.
func (s *Server) registerMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "metrics",
			URI:         MetricsURI,
			Description: "Per-operation p95 latency, latency buckets and counters for this process",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readMetrics()
		},
	)
}

func (s *Server) readMetrics() (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(s.deps.Metrics.Snapshot(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      MetricsURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
