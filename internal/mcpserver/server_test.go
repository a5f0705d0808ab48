package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/JamesPrial/cosmosdb-mcp/internal/cosmos"
	"github.com/mark3labs/mcp-go/server"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// newTestServer builds an MCP server backed by an in-memory store.
func newTestServer() *server.MCPServer {
	return NewServer(cosmos.NewMemoryStore("/category"))
}

// handleMessage feeds a raw JSON-RPC message to the server and returns the
// marshaled response for substring assertions.
func handleMessage(t *testing.T, srv *server.MCPServer, raw string) string {
	t.Helper()

	resp := srv.HandleMessage(context.Background(), json.RawMessage(raw))
	if resp == nil {
		t.Fatal("HandleMessage() returned nil response")
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal response: %v", err)
	}
	return string(data)
}

// ---------------------------------------------------------------------------
// NewServer: basic construction
// ---------------------------------------------------------------------------

func Test_NewServer_ReturnsNonNil(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	if srv == nil {
		t.Fatal("NewServer() returned nil server")
	}
}

// ---------------------------------------------------------------------------
// NewServer: does not reach Cosmos DB
// ---------------------------------------------------------------------------

func Test_NewServer_DoesNotDialOnConstruction(t *testing.T) {
	t.Parallel()

	// Server construction only wires tools and resources. No store
	// round trips happen until a handler is invoked.
	srv := newTestServer()
	if srv == nil {
		t.Fatal("NewServer() returned nil server")
	}
}

// ---------------------------------------------------------------------------
// NewServer: independent instances
// ---------------------------------------------------------------------------

func Test_NewServer_MultipleCallsCreateIndependentInstances(t *testing.T) {
	t.Parallel()

	srv1 := newTestServer()
	if srv1 == nil {
		t.Fatal("NewServer() first call returned nil")
	}

	srv2 := newTestServer()
	if srv2 == nil {
		t.Fatal("NewServer() second call returned nil")
	}

	if srv1 == srv2 {
		t.Error("NewServer() returned the same pointer for two calls, expected independent instances")
	}
}

// ---------------------------------------------------------------------------
// JSON-RPC: tools/list exposes every tool
// ---------------------------------------------------------------------------

func Test_Server_ListsAllTools(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	out := handleMessage(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	for _, name := range []string{
		"query_documents",
		"create_document",
		"read_document",
		"update_document",
		"delete_document",
		"get_container_statistics",
	} {
		if !strings.Contains(out, name) {
			t.Errorf("tools/list response missing tool %q; response = %s", name, out)
		}
	}
}

// ---------------------------------------------------------------------------
// JSON-RPC: resources/list exposes every resource
// ---------------------------------------------------------------------------

func Test_Server_ListsAllResources(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	out := handleMessage(t, srv, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)

	for _, uri := range []string{
		"cosmosdb://database",
		"cosmosdb://container",
		"cosmosdb://documents",
	} {
		if !strings.Contains(out, uri) {
			t.Errorf("resources/list response missing resource %q; response = %s", uri, out)
		}
	}
}

// ---------------------------------------------------------------------------
// JSON-RPC: calling a tool that does not exist
// ---------------------------------------------------------------------------

func Test_Server_UnknownToolReturnsError(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	out := handleMessage(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"drop_container","arguments":{}}}`)

	if !strings.Contains(out, "not found") {
		t.Errorf("tools/call response = %s, want it to contain %q", out, "not found")
	}
}

// ---------------------------------------------------------------------------
// JSON-RPC: full tool calls over the wire protocol
// ---------------------------------------------------------------------------

func Test_Integration_ToolCallOverJSONRPC(t *testing.T) {
	t.Parallel()

	srv := newTestServer()

	// Step 1: Create a document through the wire protocol
	createOut := handleMessage(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"create_document","arguments":{"document":{"id":"p1","category":"electronics"}}}}`)
	if !strings.Contains(createOut, "created") {
		t.Fatalf("create_document response = %s, want it to contain %q", createOut, "created")
	}

	// Step 2: Read it back
	readOut := handleMessage(t, srv,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"read_document","arguments":{"document_id":"p1","partition_key":"electronics"}}}`)
	if !strings.Contains(readOut, "found") {
		t.Fatalf("read_document response = %s, want it to contain %q", readOut, "found")
	}

	// Step 3: The documents resource reflects the write
	resOut := handleMessage(t, srv,
		`{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"cosmosdb://documents"}}`)
	if !strings.Contains(resOut, "p1") {
		t.Fatalf("resources/read response = %s, want it to contain %q", resOut, "p1")
	}
}
