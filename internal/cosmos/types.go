// Package cosmos wraps Azure Cosmos DB document operations behind a
// small typed store.
//
// This package defines the document types and the Store contract used
// throughout the server. Two implementations exist: Client talks to a
// live Cosmos DB account through the Azure SDK, and MemoryStore mirrors
// the same observable semantics in process for tests and local use.
// All failures expected during normal operation are reported as *Error
// values with a stable Kind, so callers never depend on SDK error types.
package cosmos

import (
	"context"
	"fmt"
	"strings"
)

// Document is one Cosmos DB item: arbitrary JSON fields keyed by name.
// The service's system fields (_rid, _ts, _self, _etag, _attachments)
// pass through untouched.
type Document map[string]any

// ID returns the document's "id" field, or "" when absent or not a string.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// QueryParameter binds a value to an @name placeholder in a query.
// A missing "@" prefix on Name is added automatically.
type QueryParameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// QueryOptions controls scoping and result size for Store.Query.
type QueryOptions struct {
	// Parameters are bound to placeholders in the query text.
	Parameters []QueryParameter

	// PartitionKey scopes the query to a single partition when non-empty.
	PartitionKey string

	// CrossPartition permits fan-out across partitions when no
	// PartitionKey is given. A query that is neither scoped nor allowed
	// to fan out fails with a cross_partition_required error before any
	// remote call is made.
	CrossPartition bool

	// MaxItems caps the number of documents returned. Zero means no cap.
	MaxItems int
}

// IndexingPolicySummary is the container's indexing policy reduced to
// the fields worth reporting.
type IndexingPolicySummary struct {
	Automatic     bool     `json:"automatic"`
	IndexingMode  string   `json:"indexing_mode"`
	IncludedPaths []string `json:"included_paths"`
	ExcludedPaths []string `json:"excluded_paths"`
}

// Statistics describes the container at a point in time. It is computed
// on demand from container metadata plus a COUNT query and never cached.
type Statistics struct {
	DatabaseID       string `json:"database_id"`
	ContainerID      string `json:"container_id"`
	PartitionKeyPath string `json:"partition_key"`
	DocumentCount    int64  `json:"document_count"`

	// SizeKB is the service's stored-document size estimate in
	// kilobytes, or 0 when the service omitted usage information.
	SizeKB int64 `json:"size_kb"`

	IndexingPolicy IndexingPolicySummary `json:"indexing_policy"`

	// CreatedTimestamp is the container resource's _ts in Unix seconds.
	CreatedTimestamp int64 `json:"created_timestamp"`
}

// DatabaseInfo is the metadata behind the database resource.
type DatabaseInfo struct {
	ID string `json:"id"`

	// LastModified is the database resource's _ts in Unix seconds.
	LastModified int64 `json:"last_modified"`
}

// ContainerInfo is the metadata behind the container resource.
type ContainerInfo struct {
	ID               string `json:"id"`
	PartitionKeyPath string `json:"partition_key"`

	// DefaultTTLSeconds is the container's default document time to
	// live, or 0 when none is configured.
	DefaultTTLSeconds int32 `json:"default_ttl_seconds,omitempty"`

	// LastModified is the container resource's _ts in Unix seconds.
	LastModified int64 `json:"last_modified"`
}

// Store is the contract for document operations on one Cosmos DB
// container. A Store is a long-lived handle constructed once at startup
// and shared by all request handlers; implementations must be safe for
// concurrent use.
//
// Every method reports expected failures as *Error values carrying a
// Kind from the closed set in errors.go. Point mutations enforce the
// container's partition key before any remote call: a document whose
// partition key field is absent or disagrees with the supplied value is
// rejected with an invalid_partition_key error locally.
type Store interface {
	// Query executes a Cosmos DB SQL query and returns the matching
	// documents, drained eagerly up to opts.MaxItems.
	Query(ctx context.Context, query string, opts QueryOptions) ([]Document, error)

	// ReadDocument performs a point read of one document.
	ReadDocument(ctx context.Context, id, partitionKey string) (Document, error)

	// CreateDocument inserts a new document. An id is generated when the
	// document has none. Fails with a conflict error when the id already
	// exists in the same partition.
	CreateDocument(ctx context.Context, doc Document, partitionKey string) (Document, error)

	// UpdateDocument merges patch into the stored document and replaces
	// it. Top-level patch fields overwrite, all other fields are
	// preserved. The identifier cannot be changed.
	UpdateDocument(ctx context.Context, id, partitionKey string, patch Document) (Document, error)

	// DeleteDocument removes one document. Fails with a not_found error
	// when it does not exist.
	DeleteDocument(ctx context.Context, id, partitionKey string) error

	// Statistics reports document count, size estimate, indexing policy,
	// and partition key path for the container.
	Statistics(ctx context.Context) (Statistics, error)

	// DatabaseInfo reports metadata about the connected database.
	DatabaseInfo(ctx context.Context) (DatabaseInfo, error)

	// ContainerInfo reports metadata about the connected container.
	ContainerInfo(ctx context.Context) (ContainerInfo, error)

	// PartitionKeyPath returns the container's partition key path,
	// e.g. "/category".
	PartitionKeyPath() string
}

// pkFieldValue walks the partition key path ("/a" or "/a/b") through the
// document and renders the value found there as a string. Returns false
// when any path segment is absent or null.
func pkFieldValue(doc Document, path string) (string, bool) {
	current := any(map[string]any(doc))
	for _, segment := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		obj, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = obj[segment]
		if !ok {
			return "", false
		}
	}

	switch v := current.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

// checkPartitionKey enforces that doc carries the container's partition
// key field and that it agrees with the explicit partitionKey argument
// when one was given. Returns the effective partition key value.
func checkPartitionKey(doc Document, pkPath, partitionKey string) (string, error) {
	field := strings.TrimPrefix(pkPath, "/")
	value, ok := pkFieldValue(doc, pkPath)
	if !ok || value == "" {
		return "", partitionKeyError("document is missing partition key field %q (path %s)", field, pkPath)
	}
	if partitionKey != "" && partitionKey != value {
		return "", partitionKeyError("partition key %q does not match document field %q value %q", partitionKey, field, value)
	}
	return value, nil
}

// cloneDocument makes a top-level copy so stored documents and caller
// maps never alias each other.
func cloneDocument(doc Document) Document {
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// mergePatch overlays patch fields onto current. The identifier is
// forced back to id so a patch can never rename a document.
func mergePatch(current, patch Document, id string) Document {
	merged := make(Document, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	merged["id"] = id
	return merged
}
