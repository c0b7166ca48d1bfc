// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the standards validator and adoption status to AI agents via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/merge"
	"github.com/starford/ansuz/internal/storage"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp        *server.MCPServer
	standards  storage.Provider
	roots      []string
	indexFiles []string
}

// New creates a new MCP server with all Ansuz tools registered. standards
// is the standards tree; roots and indexFiles configure the validator.
func New(standards storage.Provider, roots, indexFiles []string) *Server {
	s := &Server{standards: standards, roots: roots, indexFiles: indexFiles}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("validate_docs",
		mcp.WithDescription("Validate the standards tree: orphan guides, broken links, stale index entries. "+
			"Returns the full violation list (report-all mode)."),
	), s.validateDocs)

	s.mcp.AddTool(mcp.NewTool("read_guide",
		mcp.WithDescription("Read the full content of a guide or index file from the standards tree."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Tree-relative path (e.g. guides/writing-tests.md)")),
	), s.readGuide)

	s.mcp.AddTool(mcp.NewTool("adoption_status",
		mcp.WithDescription("Report per-marker drift for a downstream config file: which managed blocks "+
			"are clean, which were locally edited, and which snapshot version the file is pinned to. "+
			"Read the ansuz://marker-format resource for the managed-block contract."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path of the downstream project root")),
		mcp.WithString("config_file", mcp.Required(), mcp.Description("Project-relative config file (e.g. AGENTS.md)")),
	), s.adoptionStatus)

	// Resource: managed-block marker contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://marker-format", "Marker Format Contract",
			mcp.WithResourceDescription("Canonical managed-block marker syntax the merge engine owns."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMarkerFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) validateDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := graph.NewBuilder(s.standards, s.roots, s.indexFiles, nil).Build()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	violations := g.Validate(graph.ModeReportAll)

	report := struct {
		Clean      bool     `json:"clean"`
		Violations []string `json:"violations"`
	}{Clean: len(violations) == 0, Violations: []string{}}
	for _, v := range violations {
		report.Violations = append(report.Violations, v.Error())
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.standards.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

type markerStatus struct {
	Marker  string `json:"marker"`
	Drifted bool   `json:"drifted"`
}

func (s *Server) adoptionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectPath, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	configFile, err := req.RequireString("config_file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	project, err := storage.NewFS(projectPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := project.Read(configFile)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", configFile)), nil
	}
	blocks, err := markdown.ScanMarkers(configFile, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status := struct {
		PinnedVersion string         `json:"pinned_version,omitempty"`
		Blocks        []markerStatus `json:"blocks"`
	}{PinnedVersion: merge.PinnedVersion(data), Blocks: []markerStatus{}}
	for _, b := range blocks {
		status.Blocks = append(status.Blocks, markerStatus{
			Marker:  b.ID,
			Drifted: b.SourceHash == "" || b.SourceHash != checksum.SumString(b.Content),
		})
	}

	out, _ := json.MarshalIndent(status, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readMarkerFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://marker-format",
			MIMEType: "text/markdown",
			Text:     MarkerFormatContract,
		},
	}, nil
}
