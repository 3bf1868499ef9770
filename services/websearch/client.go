package websearch

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

const (
	clientName    = "math-rag-agent"
	clientVersion = "1.0.0"
)

// ToolCaller invokes a single MCP tool.
type ToolCaller interface {
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// ClientConfig selects the MCP server. Command wins over URL.
type ClientConfig struct {
	Command string
	Args    []string
	Env     []string
	URL     string
}

// Connect starts (stdio) or dials (streamable HTTP) the web-search MCP
// server and completes the initialize handshake. The returned client must
// be closed by the caller.
func Connect(ctx context.Context, cfg ClientConfig, logger *zap.Logger) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch {
	case cfg.Command != "":
		c, err = client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to start mcp server %q: %w", cfg.Command, err)
		}
	case cfg.URL != "":
		c, err = client.NewStreamableHttpClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create mcp http client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start mcp http client: %w", err)
		}
	default:
		return nil, errors.New("mcp server command or url is required")
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}

	result, err := c.Initialize(ctx, req)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp initialize failed: %w", err)
	}

	logger.Info("connected to web search MCP server",
		zap.String("server", result.ServerInfo.Name),
		zap.String("version", result.ServerInfo.Version),
		zap.String("protocol", result.ProtocolVersion),
	)
	return c, nil
}
