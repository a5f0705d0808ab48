package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesPrial/cosmosdb-mcp/internal/cosmos"
)

// Manager routes tool calls onto the document store. The store handle
// is created once at startup and shared by all handlers; a failure on
// an individual request becomes a tool error result and never
// terminates the server.
type Manager struct {
	store cosmos.Store
}

// NewManager creates a Manager backed by the given store.
func NewManager(store cosmos.Store) *Manager {
	return &Manager{store: store}
}

// errorResult converts a store failure into a tool error result. Store
// errors already carry their classification as a "kind: message" string.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

// invalidArguments reports a request rejected by argument validation
// before any store call was made.
func invalidArguments(format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_arguments: " + fmt.Sprintf(format, args...))
}

// jsonResult renders payload as indented JSON text content.
func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// HandleContainerStatistics reports document count, stored size,
// indexing policy, and the partition key path of the container.
func (m *Manager) HandleContainerStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := m.store.Statistics(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(stats)
}
