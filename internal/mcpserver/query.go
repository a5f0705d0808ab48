package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesPrial/cosmosdb-mcp/internal/cosmos"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// HandleQueryDocuments executes a Cosmos DB SQL query against the container.
// Parameters:
//   - query (string, required): the SQL text
//   - parameters ([]any, optional): objects with "name" and "value" fields
//   - partition_key (string, optional): scope the query to one partition
//   - cross_partition (bool, default true): allow fan-out when no partition_key is given
//   - limit (number, default 100, max 1000): cap on returned documents
//
// Returns the matching documents as JSON or an error result. A result
// carrying exactly limit documents is flagged as truncated since more
// matches may exist.
func (m *Manager) HandleQueryDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required query parameter
	query, err := request.RequireString("query")
	if err != nil {
		return invalidArguments("missing required parameter: query"), nil
	}

	params, err := queryParameters(request.GetArguments()["parameters"])
	if err != nil {
		return invalidArguments("%v", err), nil
	}

	limit := request.GetInt("limit", defaultQueryLimit)
	if limit < 1 || limit > maxQueryLimit {
		return invalidArguments("parameter limit must be between 1 and %d", maxQueryLimit), nil
	}

	opts := cosmos.QueryOptions{
		Parameters:     params,
		PartitionKey:   request.GetString("partition_key", ""),
		CrossPartition: request.GetBool("cross_partition", true),
		MaxItems:       limit,
	}

	docs, err := m.store.Query(ctx, query, opts)
	if err != nil {
		return errorResult(err), nil
	}
	if docs == nil {
		docs = []cosmos.Document{}
	}

	payload := map[string]any{
		"query":        query,
		"result_count": len(docs),
		"documents":    docs,
	}
	if len(docs) == limit {
		payload["truncated"] = true
	}
	return jsonResult(payload)
}

// queryParameters converts the raw "parameters" argument into typed
// query parameters. Each entry must be an object carrying "name" and
// "value" fields.
func queryParameters(raw any) ([]cosmos.QueryParameter, error) {
	if raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter parameters must be an array of {name, value} objects")
	}

	params := make([]cosmos.QueryParameter, 0, len(entries))
	for i, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameter at index %d must be an object with name and value", i)
		}
		name, _ := obj["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("parameter at index %d is missing a name", i)
		}
		value, ok := obj["value"]
		if !ok {
			return nil, fmt.Errorf("parameter %q is missing a value", name)
		}
		params = append(params, cosmos.QueryParameter{Name: name, Value: value})
	}
	return params, nil
}
