package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/thoughtchain/internal/dispatch"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Dispatcher Dispatcher
	Version    string
}

// NewMCPServer creates an MCP server with the thoughtchain tools and
// resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"thoughtchain",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("thoughtchain records the pages a user reads as ordered thought chains and can write reports over them."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("capture_page",
			mcp.WithDescription("Add a web page to the active thought chain. Its summary is generated in the background."),
			mcp.WithString("url", mcp.Description("Page URL"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Page title (defaults to the URL)")),
			mcp.WithString("notes", mcp.Description("Why this page matters")),
			mcp.WithArray("tags", mcp.Description("Optional tags")),
		),
		mcpCapturePage(deps),
	)

	s.AddTool(
		mcp.NewTool("recent_chains",
			mcp.WithDescription("List recently updated thought chains."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of chains (default 5)")),
		),
		mcpRecentChains(deps),
	)

	s.AddTool(
		mcp.NewTool("split_chain",
			mcp.WithDescription("Start a new thought chain and make it active."),
		),
		mcpSplitChain(deps),
	)

	s.AddTool(
		mcp.NewTool("chain_report",
			mcp.WithDescription("Write a Markdown report that reconstructs the reasoning behind a thought chain."),
			mcp.WithString("chain_id", mcp.Description("Chain ID (defaults to the active chain)")),
			mcp.WithString("guidance", mcp.Description("Extra instructions for the report")),
		),
		mcpChainReport(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"chains://active",
			"Active Chain",
			mcp.WithResourceDescription("The active thought chain with its nodes, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceActive(deps),
	)

	return s
}

func mcpCapturePage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}
		title := req.GetString("title", "")
		if title == "" {
			title = url
		}

		resp := deps.Dispatcher.Dispatch(ctx, dispatch.Request{
			Action: dispatch.ActionAddNode,
			Node: &dispatch.NodeInput{
				Title: title,
				URL:   url,
				Notes: req.GetString("notes", ""),
				Tags:  req.GetStringSlice("tags", nil),
			},
		})
		if !resp.Success {
			return mcpError(fmt.Sprintf("capture failed: %s", resp.Error)), nil
		}
		return mcpText(fmt.Sprintf("Captured %q as node %s in chain %s", title, resp.NodeID, resp.ChainID)), nil
	}
}

func mcpRecentChains(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		resp := deps.Dispatcher.Dispatch(ctx, dispatch.Request{Action: dispatch.ActionGetRecentChains, Limit: limit})
		if !resp.Success {
			return mcpError(fmt.Sprintf("listing chains failed: %s", resp.Error)), nil
		}
		if len(resp.Chains) == 0 {
			return mcpText("[]"), nil
		}

		type chainSummary struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Nodes     int    `json:"nodes"`
			UpdatedAt string `json:"updated_at"`
		}
		out := make([]chainSummary, len(resp.Chains))
		for i, c := range resp.Chains {
			out[i] = chainSummary{
				ID:        c.ID,
				Name:      c.Name,
				Nodes:     len(c.Nodes),
				UpdatedAt: time.UnixMilli(c.UpdatedAt).UTC().Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal chains: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSplitChain(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := deps.Dispatcher.Dispatch(ctx, dispatch.Request{Action: dispatch.ActionManualSplitChain})
		if !resp.Success {
			return mcpError(fmt.Sprintf("split failed: %s", resp.Error)), nil
		}
		return mcpText(fmt.Sprintf("Started chain %q (%s)", resp.NewChainName, resp.NewChainID)), nil
	}
}

func mcpChainReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chainID := req.GetString("chain_id", "")
		if chainID == "" {
			active := deps.Dispatcher.Dispatch(ctx, dispatch.Request{Action: dispatch.ActionGetActiveChain})
			if !active.Success {
				return mcpError(fmt.Sprintf("loading active chain failed: %s", active.Error)), nil
			}
			if active.Chain == nil {
				return mcpError("no active chain"), nil
			}
			chainID = active.Chain.ID
		}

		resp := deps.Dispatcher.Dispatch(ctx, dispatch.Request{
			Action:       dispatch.ActionRequestChainSummary,
			ChainID:      chainID,
			CustomPrompt: req.GetString("guidance", ""),
		})
		if !resp.Success {
			return mcpError(fmt.Sprintf("report failed: %s", resp.Error)), nil
		}
		return mcpText(resp.SummaryDoc), nil
	}
}

func mcpResourceActive(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		resp := deps.Dispatcher.Dispatch(ctx, dispatch.Request{Action: dispatch.ActionGetActiveChain})
		if !resp.Success {
			return nil, fmt.Errorf("failed to get active chain: %s", resp.Error)
		}

		b, err := json.Marshal(resp.Chain)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chain: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
