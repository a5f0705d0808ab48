package cosmos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/google/uuid"

	"github.com/JamesPrial/cosmosdb-mcp/internal/config"
)

const (
	// quotaInfoHeader asks the service to include resource usage
	// numbers on container metadata reads.
	quotaInfoHeader = "x-ms-documentdb-populatequotainfo"

	// resourceUsageHeader carries those numbers back as
	// "key=value;key=value" pairs.
	resourceUsageHeader = "x-ms-resource-usage"

	countQuery = "SELECT VALUE COUNT(1) FROM c"
)

// consistencyLevels maps configured names onto the SDK's request-level
// consistency values.
var consistencyLevels = map[config.ConsistencyLevel]azcosmos.ConsistencyLevel{
	config.ConsistencyStrong:           azcosmos.ConsistencyLevelStrong,
	config.ConsistencyBoundedStaleness: azcosmos.ConsistencyLevelBoundedStaleness,
	config.ConsistencySession:          azcosmos.ConsistencyLevelSession,
	config.ConsistencyConsistentPrefix: azcosmos.ConsistencyLevelConsistentPrefix,
	config.ConsistencyEventual:         azcosmos.ConsistencyLevelEventual,
}

// quotaPolicy tags every outgoing request so container reads report
// storage usage in their response headers.
type quotaPolicy struct{}

func (quotaPolicy) Do(req *policy.Request) (*http.Response, error) {
	req.Raw().Header.Set(quotaInfoHeader, "true")
	return req.Next()
}

// Client implements Store against a live Cosmos DB container through
// the Azure SDK. Construct it once with NewClient and share it; the
// underlying SDK client is safe for concurrent use.
type Client struct {
	database      *azcosmos.DatabaseClient
	container     *azcosmos.ContainerClient
	databaseName  string
	containerName string
	consistency   *azcosmos.ConsistencyLevel
	pkPath        string
}

// NewClient connects to the configured Cosmos DB account and verifies
// that the database and container exist before returning. The probe
// failures are classified like any other store error, so a bad endpoint
// or key is reported as connection_failed at startup rather than on the
// first tool call.
func NewClient(ctx context.Context, cfg config.Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.ConnectionMode == config.ConnectionDirect {
		logger.Printf("%s=Direct is not supported by the gateway-based SDK; continuing in Gateway mode", config.EnvConnectionMode)
	}

	cred, err := azcosmos.NewKeyCredential(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid account key: %w", err)
	}

	opts := &azcosmos.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			PerCallPolicies: []policy.Policy{quotaPolicy{}},
			// Surface throttling to the caller instead of retrying
			// inside the SDK.
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}
	client, err := azcosmos.NewClientWithKey(cfg.Endpoint, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create Cosmos DB client: %w", err)
	}

	database, err := client.NewDatabase(cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.DatabaseName, err)
	}
	container, err := client.NewContainer(cfg.DatabaseName, cfg.ContainerName)
	if err != nil {
		return nil, fmt.Errorf("open container %q: %w", cfg.ContainerName, err)
	}

	if _, err := database.Read(ctx, nil); err != nil {
		return nil, translate("read database", "", "", err)
	}
	contResp, err := container.Read(ctx, nil)
	if err != nil {
		return nil, translate("read container", "", "", err)
	}

	pkPath := "/id"
	if props := contResp.ContainerProperties; props != nil && len(props.PartitionKeyDefinition.Paths) > 0 {
		pkPath = props.PartitionKeyDefinition.Paths[0]
	}

	level, ok := consistencyLevels[cfg.ConsistencyLevel]
	if !ok {
		level = azcosmos.ConsistencyLevelSession
	}

	logger.Printf("connected to Cosmos DB database %q container %q (partition key %s)",
		cfg.DatabaseName, cfg.ContainerName, pkPath)

	return &Client{
		database:      database,
		container:     container,
		databaseName:  cfg.DatabaseName,
		containerName: cfg.ContainerName,
		consistency:   &level,
		pkPath:        pkPath,
	}, nil
}

// PartitionKeyPath returns the container's partition key path.
func (c *Client) PartitionKeyPath() string {
	return c.pkPath
}

// readOptions applies the configured consistency level. Cosmos DB only
// accepts per-request consistency overrides on reads and queries.
func (c *Client) readOptions() *azcosmos.ItemOptions {
	return &azcosmos.ItemOptions{ConsistencyLevel: c.consistency}
}

// writeOptions asks the service to echo the stored document back so
// mutations can return the authoritative version with system fields.
func (c *Client) writeOptions() *azcosmos.ItemOptions {
	return &azcosmos.ItemOptions{EnableContentResponseOnWrite: true}
}

// CreateDocument inserts doc, generating a UUID id when the document
// carries none. The partition key is validated against the document
// before the request is sent.
func (c *Client) CreateDocument(ctx context.Context, doc Document, partitionKey string) (Document, error) {
	item := cloneDocument(doc)
	if item.ID() == "" {
		item["id"] = uuid.NewString()
	}

	pk, err := checkPartitionKey(item, c.pkPath, partitionKey)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	resp, err := c.container.CreateItem(ctx, azcosmos.NewPartitionKeyString(pk), body, c.writeOptions())
	if err != nil {
		return nil, translate("create document", item.ID(), pk, err)
	}
	return decodeItem(resp.Value, item), nil
}

// ReadDocument performs a point read.
func (c *Client) ReadDocument(ctx context.Context, id, partitionKey string) (Document, error) {
	resp, err := c.container.ReadItem(ctx, azcosmos.NewPartitionKeyString(partitionKey), id, c.readOptions())
	if err != nil {
		return nil, translate("read document", id, partitionKey, err)
	}
	var doc Document
	if err := json.Unmarshal(resp.Value, &doc); err != nil {
		return nil, fmt.Errorf("decode document %q: %w", id, err)
	}
	return doc, nil
}

// UpdateDocument reads the current document, overlays the patch's
// top-level fields, and replaces the stored version. The replace is
// conditioned on the etag read, so a concurrent writer turns into a
// conflict error instead of a silent lost update.
func (c *Client) UpdateDocument(ctx context.Context, id, partitionKey string, patch Document) (Document, error) {
	current, err := c.ReadDocument(ctx, id, partitionKey)
	if err != nil {
		return nil, err
	}

	field := strings.TrimPrefix(c.pkPath, "/")
	if patched, ok := pkFieldValue(patch, c.pkPath); ok {
		if existing, _ := pkFieldValue(current, c.pkPath); patched != existing {
			return nil, partitionKeyError("cannot change partition key field %q from %q to %q", field, existing, patched)
		}
	}

	merged := mergePatch(current, patch, id)
	body, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	opts := c.writeOptions()
	if etag, ok := current["_etag"].(string); ok && etag != "" {
		tag := azcore.ETag(etag)
		opts.IfMatchEtag = &tag
	}

	resp, err := c.container.ReplaceItem(ctx, azcosmos.NewPartitionKeyString(partitionKey), id, body, opts)
	if err != nil {
		return nil, translate("update document", id, partitionKey, err)
	}
	return decodeItem(resp.Value, merged), nil
}

// DeleteDocument removes one document by id and partition key.
func (c *Client) DeleteDocument(ctx context.Context, id, partitionKey string) error {
	_, err := c.container.DeleteItem(ctx, azcosmos.NewPartitionKeyString(partitionKey), id, nil)
	if err != nil {
		return translate("delete document", id, partitionKey, err)
	}
	return nil
}

// Query executes a Cosmos DB SQL query and drains the pager into a
// slice, stopping early once opts.MaxItems documents are collected.
func (c *Client) Query(ctx context.Context, query string, opts QueryOptions) ([]Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidQueryError("query text is empty")
	}

	pk := azcosmos.PartitionKey{}
	if opts.PartitionKey != "" {
		pk = azcosmos.NewPartitionKeyString(opts.PartitionKey)
	} else if !opts.CrossPartition {
		return nil, crossPartitionError()
	}

	queryOpts := &azcosmos.QueryOptions{ConsistencyLevel: c.consistency}
	for _, p := range opts.Parameters {
		name := p.Name
		if !strings.HasPrefix(name, "@") {
			name = "@" + name
		}
		queryOpts.QueryParameters = append(queryOpts.QueryParameters, azcosmos.QueryParameter{Name: name, Value: p.Value})
	}
	if opts.MaxItems > 0 && opts.MaxItems < math.MaxInt32 {
		queryOpts.PageSizeHint = int32(opts.MaxItems)
	}

	docs := []Document{}
	pager := c.container.NewQueryItemsPager(query, pk, queryOpts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, translate("query", "", "", err)
		}
		for _, raw := range page.Items {
			docs = append(docs, decodeQueryItem(raw))
			if opts.MaxItems > 0 && len(docs) >= opts.MaxItems {
				return docs, nil
			}
		}
	}
	return docs, nil
}

// Statistics combines container metadata, the storage usage reported by
// the quota headers, and a cross-partition COUNT of the documents.
func (c *Client) Statistics(ctx context.Context) (Statistics, error) {
	resp, err := c.container.Read(ctx, nil)
	if err != nil {
		return Statistics{}, translate("read container", "", "", err)
	}
	count, err := c.countDocuments(ctx)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		DatabaseID:       c.databaseName,
		ContainerID:      c.containerName,
		PartitionKeyPath: c.pkPath,
		DocumentCount:    count,
		SizeKB:           resourceUsageValue(resp.RawResponse, "documentsSize"),
	}
	if props := resp.ContainerProperties; props != nil {
		stats.IndexingPolicy = summarizeIndexingPolicy(props.IndexingPolicy)
		if !props.LastModified.IsZero() {
			stats.CreatedTimestamp = props.LastModified.Unix()
		}
	}
	return stats, nil
}

// DatabaseInfo reads database metadata on demand.
func (c *Client) DatabaseInfo(ctx context.Context) (DatabaseInfo, error) {
	resp, err := c.database.Read(ctx, nil)
	if err != nil {
		return DatabaseInfo{}, translate("read database", "", "", err)
	}
	info := DatabaseInfo{ID: c.databaseName}
	if props := resp.DatabaseProperties; props != nil {
		info.ID = props.ID
		if !props.LastModified.IsZero() {
			info.LastModified = props.LastModified.Unix()
		}
	}
	return info, nil
}

// ContainerInfo reads container metadata on demand.
func (c *Client) ContainerInfo(ctx context.Context) (ContainerInfo, error) {
	resp, err := c.container.Read(ctx, nil)
	if err != nil {
		return ContainerInfo{}, translate("read container", "", "", err)
	}
	info := ContainerInfo{ID: c.containerName, PartitionKeyPath: c.pkPath}
	if props := resp.ContainerProperties; props != nil {
		info.ID = props.ID
		if len(props.PartitionKeyDefinition.Paths) > 0 {
			info.PartitionKeyPath = props.PartitionKeyDefinition.Paths[0]
		}
		if props.DefaultTimeToLive != nil {
			info.DefaultTTLSeconds = *props.DefaultTimeToLive
		}
		if !props.LastModified.IsZero() {
			info.LastModified = props.LastModified.Unix()
		}
	}
	return info, nil
}

func (c *Client) countDocuments(ctx context.Context) (int64, error) {
	var total int64
	pager := c.container.NewQueryItemsPager(countQuery, azcosmos.PartitionKey{}, &azcosmos.QueryOptions{ConsistencyLevel: c.consistency})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return 0, translate("count documents", "", "", err)
		}
		for _, raw := range page.Items {
			var n int64
			if err := json.Unmarshal(raw, &n); err == nil {
				total += n
			}
		}
	}
	return total, nil
}

// decodeItem unmarshals a service response body, falling back to the
// document that was sent when the service returned no content.
func decodeItem(raw []byte, fallback Document) Document {
	if len(raw) == 0 {
		return fallback
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fallback
	}
	return doc
}

// decodeQueryItem accepts both full documents and scalar projections
// such as SELECT VALUE expressions, wrapping scalars under "value".
func decodeQueryItem(raw []byte) Document {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return Document{"value": string(raw)}
	}
	if m, ok := value.(map[string]any); ok {
		return Document(m)
	}
	return Document{"value": value}
}

func summarizeIndexingPolicy(ip *azcosmos.IndexingPolicy) IndexingPolicySummary {
	if ip == nil {
		return IndexingPolicySummary{}
	}
	summary := IndexingPolicySummary{
		Automatic:    ip.Automatic,
		IndexingMode: string(ip.IndexingMode),
	}
	for _, p := range ip.IncludedPaths {
		summary.IncludedPaths = append(summary.IncludedPaths, p.Path)
	}
	for _, p := range ip.ExcludedPaths {
		summary.ExcludedPaths = append(summary.ExcludedPaths, p.Path)
	}
	return summary
}

// resourceUsageValue extracts one numeric field from the
// "key=value;key=value" resource usage header, returning 0 when the
// header or key is absent.
func resourceUsageValue(resp *http.Response, key string) int64 {
	if resp == nil {
		return 0
	}
	for _, pair := range strings.Split(resp.Header.Get(resourceUsageHeader), ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), key) {
			continue
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
