package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesPrial/cosmosdb-mcp/internal/cosmos"
)

const (
	databaseResourceURI  = "cosmosdb://database"
	containerResourceURI = "cosmosdb://container"
	documentsResourceURI = "cosmosdb://documents"

	// sampleDocumentLimit caps the documents resource at a small preview.
	sampleDocumentLimit = 10
)

// databaseResource returns the resource definition for database metadata.
func databaseResource() mcp.Resource {
	return mcp.NewResource(databaseResourceURI, "Database Info",
		mcp.WithResourceDescription("Metadata about the connected Cosmos DB database"),
		mcp.WithMIMEType("text/plain"),
	)
}

// containerResource returns the resource definition for container metadata.
func containerResource() mcp.Resource {
	return mcp.NewResource(containerResourceURI, "Container Info",
		mcp.WithResourceDescription("Metadata about the connected container, including its partition key"),
		mcp.WithMIMEType("text/plain"),
	)
}

// documentsResource returns the resource definition for a document sample.
func documentsResource() mcp.Resource {
	return mcp.NewResource(documentsResourceURI, "Sample Documents",
		mcp.WithResourceDescription(fmt.Sprintf("A sample of up to %d documents from the container", sampleDocumentLimit)),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleDatabaseResource serves database metadata as plain text.
func (m *Manager) HandleDatabaseResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	info, err := m.store.DatabaseInfo(ctx)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Database: %s\nCreated: %d", info.ID, info.LastModified)
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      databaseResourceURI,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

// HandleContainerResource serves container metadata as plain text.
func (m *Manager) HandleContainerResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	info, err := m.store.ContainerInfo(ctx)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Container: %s\nPartition Key: %s", info.ID, info.PartitionKeyPath)
	if info.DefaultTTLSeconds > 0 {
		text += fmt.Sprintf("\nDefault TTL: %ds", info.DefaultTTLSeconds)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      containerResourceURI,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

// HandleDocumentsResource serves a cross-partition sample of documents
// as a JSON array.
func (m *Manager) HandleDocumentsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	query := fmt.Sprintf("SELECT TOP %d * FROM c", sampleDocumentLimit)
	docs, err := m.store.Query(ctx, query, cosmos.QueryOptions{
		CrossPartition: true,
		MaxItems:       sampleDocumentLimit,
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []cosmos.Document{}
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      documentsResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
