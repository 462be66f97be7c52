package extractor

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ovrld/bannerhound/pattern"
)

// RegisterMCP registers the extraction tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	type extractIn struct {
		URL string `json:"url" jsonschema:"profile page URL to extract from"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "bannerhound_extract",
		Description: "Extract company metadata (banner, logo, description) from a profile page URL",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in extractIn) (*mcp.CallToolResult, *Profile, error) {
		profile, err := s.Extract(ctx, in.URL)
		if err != nil {
			return nil, nil, err
		}
		return nil, profile, nil
	})

	type emptyIn struct{}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "bannerhound_summary",
		Description: "Extraction diagnostics: observed/attempted counts, pattern store stats, session validity",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ emptyIn) (*mcp.CallToolResult, Summary, error) {
		return nil, s.Summary(ctx), nil
	})

	type patternsIn struct {
		Environment string `json:"environment,omitempty" jsonschema:"environment profile (production, development)"`
		Limit       int    `json:"limit,omitempty" jsonschema:"maximum patterns to return"`
	}
	type patternsOut struct {
		Patterns []pattern.Pattern `json:"patterns"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "bannerhound_patterns",
		Description: "Ranked learned request patterns for an environment",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in patternsIn) (*mcp.CallToolResult, patternsOut, error) {
		env := in.Environment
		if env == "" {
			env = "production"
		}
		limit := in.Limit
		if limit <= 0 {
			limit = 20
		}
		return nil, patternsOut{Patterns: s.BestPatterns(env, limit)}, nil
	})
}
