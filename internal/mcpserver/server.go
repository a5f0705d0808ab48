package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/JamesPrial/cosmosdb-mcp/internal/cosmos"
)

// NewServer creates and configures a new MCP server with all Cosmos DB
// tools and resources registered. Handlers share the given store, so
// one server maps onto one database container.
func NewServer(store cosmos.Store) *server.MCPServer {
	m := NewManager(store)

	s := server.NewMCPServer(
		"cosmosdb-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	)

	// Query tools
	s.AddTool(queryDocumentsTool(), m.HandleQueryDocuments)

	// Document CRUD tools
	s.AddTool(createDocumentTool(), m.HandleCreateDocument)
	s.AddTool(readDocumentTool(), m.HandleReadDocument)
	s.AddTool(updateDocumentTool(), m.HandleUpdateDocument)
	s.AddTool(deleteDocumentTool(), m.HandleDeleteDocument)

	// Container metadata tools
	s.AddTool(containerStatisticsTool(), m.HandleContainerStatistics)

	// Read-only resources
	s.AddResource(databaseResource(), m.HandleDatabaseResource)
	s.AddResource(containerResource(), m.HandleContainerResource)
	s.AddResource(documentsResource(), m.HandleDocumentsResource)

	return s
}
