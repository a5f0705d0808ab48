// Package mcpserver provides an MCP server implementation for Azure Cosmos DB document operations.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// queryDocumentsTool returns a tool definition for running SQL queries against the container.
func queryDocumentsTool() mcp.Tool {
	return mcp.NewTool("query_documents",
		mcp.WithDescription("Execute a Cosmos DB SQL query against the container. Returns the matching documents as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The Cosmos DB SQL query to execute (e.g., SELECT * FROM c WHERE c.category = @category)")),
		mcp.WithArray("parameters",
			mcp.Description("Query parameters as objects with 'name' and 'value' fields; names may omit the leading @")),
		mcp.WithString("partition_key",
			mcp.Description("Partition key value to scope the query to a single partition")),
		mcp.WithBoolean("cross_partition",
			mcp.Description("Allow the query to fan out across partitions when no partition_key is given"),
			mcp.DefaultBool(true)),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of documents to return (1-1000)"),
			mcp.DefaultNumber(100)),
	)
}

// createDocumentTool returns a tool definition for inserting a document.
func createDocumentTool() mcp.Tool {
	return mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document in the container. An id is generated if the document does not include one."),
		mcp.WithObject("document",
			mcp.Required(),
			mcp.Description("The document to create as a JSON object; must include the container's partition key field")),
		mcp.WithString("partition_key",
			mcp.Description("Partition key value; must match the document's partition key field when provided")),
	)
}

// readDocumentTool returns a tool definition for a point read of one document.
func readDocumentTool() mcp.Tool {
	return mcp.NewTool("read_document",
		mcp.WithDescription("Read a single document by its id and partition key."),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("The id of the document to read")),
		mcp.WithString("partition_key",
			mcp.Required(),
			mcp.Description("Partition key value of the document")),
	)
}

// updateDocumentTool returns a tool definition for merging changes into a document.
func updateDocumentTool() mcp.Tool {
	return mcp.NewTool("update_document",
		mcp.WithDescription("Update an existing document. Top-level fields in the provided document overwrite stored fields; all other stored fields are preserved."),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("The id of the document to update")),
		mcp.WithString("partition_key",
			mcp.Required(),
			mcp.Description("Partition key value of the document")),
		mcp.WithObject("document",
			mcp.Required(),
			mcp.Description("Fields to merge into the document; the id cannot be changed")),
	)
}

// deleteDocumentTool returns a tool definition for removing a document.
func deleteDocumentTool() mcp.Tool {
	return mcp.NewTool("delete_document",
		mcp.WithDescription("Delete a document by its id and partition key."),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("The id of the document to delete")),
		mcp.WithString("partition_key",
			mcp.Required(),
			mcp.Description("Partition key value of the document")),
	)
}

// containerStatisticsTool returns a tool definition for container statistics.
func containerStatisticsTool() mcp.Tool {
	return mcp.NewTool("get_container_statistics",
		mcp.WithDescription("Get statistics about the container, including document count, size, indexing policy, and partition key path."),
	)
}
