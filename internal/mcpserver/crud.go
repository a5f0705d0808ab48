package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesPrial/cosmosdb-mcp/internal/cosmos"
)

// HandleCreateDocument inserts a new document into the container.
// Parameters:
//   - document (map[string]any, required): the document to create
//   - partition_key (string, optional): partition key value, checked against the document's own field
//
// Returns the stored document, including its generated id when the
// request omitted one, or an error result.
func (m *Manager) HandleCreateDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required parameters
	args := request.GetArguments()
	if args == nil {
		return invalidArguments("missing required parameters"), nil
	}

	document, ok := args["document"].(map[string]any)
	if !ok {
		return invalidArguments("missing required parameter: document (object)"), nil
	}
	partitionKey := request.GetString("partition_key", "")

	created, err := m.store.CreateDocument(ctx, cosmos.Document(document), partitionKey)
	if err != nil {
		return errorResult(err), nil
	}

	return jsonResult(map[string]any{
		"status":      "created",
		"document_id": created.ID(),
		"document":    created,
	})
}

// HandleReadDocument performs a point read of one document.
// Parameters:
//   - document_id (string, required): id of the document
//   - partition_key (string, required): partition key value of the document
//
// Returns the document or an error result.
func (m *Manager) HandleReadDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required parameters
	args := request.GetArguments()
	if args == nil {
		return invalidArguments("missing required parameters"), nil
	}

	id, ok := args["document_id"].(string)
	if !ok || id == "" {
		return invalidArguments("missing required parameter: document_id"), nil
	}
	partitionKey, ok := args["partition_key"].(string)
	if !ok || partitionKey == "" {
		return invalidArguments("missing required parameter: partition_key"), nil
	}

	doc, err := m.store.ReadDocument(ctx, id, partitionKey)
	if err != nil {
		return errorResult(err), nil
	}

	return jsonResult(map[string]any{
		"status":   "found",
		"document": doc,
	})
}

// HandleUpdateDocument merges changes into an existing document.
// Parameters:
//   - document_id (string, required): id of the document
//   - partition_key (string, required): partition key value of the document
//   - document (map[string]any, required): fields to merge; top-level fields overwrite stored ones
//
// Fields absent from the patch are preserved. Returns the updated
// document or an error result.
func (m *Manager) HandleUpdateDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required parameters
	args := request.GetArguments()
	if args == nil {
		return invalidArguments("missing required parameters"), nil
	}

	id, ok := args["document_id"].(string)
	if !ok || id == "" {
		return invalidArguments("missing required parameter: document_id"), nil
	}
	partitionKey, ok := args["partition_key"].(string)
	if !ok || partitionKey == "" {
		return invalidArguments("missing required parameter: partition_key"), nil
	}
	patch, ok := args["document"].(map[string]any)
	if !ok {
		return invalidArguments("missing required parameter: document (object)"), nil
	}

	updated, err := m.store.UpdateDocument(ctx, id, partitionKey, cosmos.Document(patch))
	if err != nil {
		return errorResult(err), nil
	}

	return jsonResult(map[string]any{
		"status":      "updated",
		"document_id": id,
		"document":    updated,
	})
}

// HandleDeleteDocument removes one document from the container.
// Parameters:
//   - document_id (string, required): id of the document
//   - partition_key (string, required): partition key value of the document
//
// Returns a confirmation or an error result.
func (m *Manager) HandleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required parameters
	args := request.GetArguments()
	if args == nil {
		return invalidArguments("missing required parameters"), nil
	}

	id, ok := args["document_id"].(string)
	if !ok || id == "" {
		return invalidArguments("missing required parameter: document_id"), nil
	}
	partitionKey, ok := args["partition_key"].(string)
	if !ok || partitionKey == "" {
		return invalidArguments("missing required parameter: partition_key"), nil
	}

	if err := m.store.DeleteDocument(ctx, id, partitionKey); err != nil {
		return errorResult(err), nil
	}

	return jsonResult(map[string]any{
		"status":      "deleted",
		"document_id": id,
	})
}
