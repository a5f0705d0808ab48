package cosmos

import (
	"context"
	"encoding/json"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	memoryDatabaseID  = "local"
	memoryContainerID = "documents"
)

// MemoryStore implements Store entirely in process. It mirrors the
// observable semantics of Client (partition key enforcement, merge
// updates, the error taxonomy) without a Cosmos DB account, which makes
// it the backend for handler tests and for poking at the server without
// credentials.
//
// Query evaluates the subset of Cosmos DB SQL the server itself emits:
// SELECT [TOP n] * or SELECT VALUE COUNT(1), FROM with a single alias,
// and an optional WHERE clause of equality comparisons joined by AND.
// Anything else fails with an invalid_query error.
type MemoryStore struct {
	mu      sync.RWMutex
	pkPath  string
	docs    map[memoryKey]Document
	created int64
}

// memoryKey addresses one document the way the service does, by
// partition key value plus id.
type memoryKey struct {
	partitionKey string
	id           string
}

// NewMemoryStore returns an empty store partitioned on pkPath, or on
// "/id" when pkPath is empty.
func NewMemoryStore(pkPath string) *MemoryStore {
	if pkPath == "" {
		pkPath = "/id"
	}
	return &MemoryStore{
		pkPath:  pkPath,
		docs:    make(map[memoryKey]Document),
		created: time.Now().Unix(),
	}
}

// PartitionKeyPath returns the store's partition key path.
func (m *MemoryStore) PartitionKeyPath() string {
	return m.pkPath
}

// CreateDocument inserts doc, generating a UUID id when the document
// carries none.
func (m *MemoryStore) CreateDocument(_ context.Context, doc Document, partitionKey string) (Document, error) {
	item := cloneDocument(doc)
	if item.ID() == "" {
		item["id"] = uuid.NewString()
	}

	pk, err := checkPartitionKey(item, m.pkPath, partitionKey)
	if err != nil {
		return nil, err
	}

	key := memoryKey{partitionKey: pk, id: item.ID()}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[key]; exists {
		return nil, conflictError(item.ID(), pk)
	}
	m.docs[key] = cloneDocument(item)
	return item, nil
}

// ReadDocument performs a point read.
func (m *MemoryStore) ReadDocument(_ context.Context, id, partitionKey string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[memoryKey{partitionKey: partitionKey, id: id}]
	if !ok {
		return nil, notFoundError(id, partitionKey)
	}
	return cloneDocument(doc), nil
}

// UpdateDocument overlays the patch's top-level fields onto the stored
// document. The identifier and the partition key field cannot change.
func (m *MemoryStore) UpdateDocument(_ context.Context, id, partitionKey string, patch Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{partitionKey: partitionKey, id: id}
	current, ok := m.docs[key]
	if !ok {
		return nil, notFoundError(id, partitionKey)
	}

	field := strings.TrimPrefix(m.pkPath, "/")
	if patched, ok := pkFieldValue(patch, m.pkPath); ok {
		if existing, _ := pkFieldValue(current, m.pkPath); patched != existing {
			return nil, partitionKeyError("cannot change partition key field %q from %q to %q", field, existing, patched)
		}
	}

	merged := mergePatch(current, patch, id)
	m.docs[key] = cloneDocument(merged)
	return merged, nil
}

// DeleteDocument removes one document by id and partition key.
func (m *MemoryStore) DeleteDocument(_ context.Context, id, partitionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{partitionKey: partitionKey, id: id}
	if _, ok := m.docs[key]; !ok {
		return notFoundError(id, partitionKey)
	}
	delete(m.docs, key)
	return nil
}

// Query evaluates the supported SQL subset over the stored documents.
// Results are ordered by partition key then id so repeated queries are
// deterministic.
func (m *MemoryStore) Query(_ context.Context, query string, opts QueryOptions) ([]Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidQueryError("query text is empty")
	}
	if opts.PartitionKey == "" && !opts.CrossPartition {
		return nil, crossPartitionError()
	}

	parsed, err := parseMemoryQuery(query)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(opts.Parameters))
	for _, p := range opts.Parameters {
		name := p.Name
		if !strings.HasPrefix(name, "@") {
			name = "@" + name
		}
		params[name] = p.Value
	}

	m.mu.RLock()
	candidates := make([]Document, 0, len(m.docs))
	for key, doc := range m.docs {
		if opts.PartitionKey != "" && key.partitionKey != opts.PartitionKey {
			continue
		}
		candidates = append(candidates, cloneDocument(doc))
	}
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		pi, _ := pkFieldValue(candidates[i], m.pkPath)
		pj, _ := pkFieldValue(candidates[j], m.pkPath)
		if pi != pj {
			return pi < pj
		}
		return candidates[i].ID() < candidates[j].ID()
	})

	matched := []Document{}
	for _, doc := range candidates {
		ok, err := matchConditions(doc, parsed.alias, parsed.conditions, params)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	if parsed.countOnly {
		return []Document{{"value": len(matched)}}, nil
	}

	limit := len(matched)
	if parsed.top > 0 && parsed.top < limit {
		limit = parsed.top
	}
	if opts.MaxItems > 0 && opts.MaxItems < limit {
		limit = opts.MaxItems
	}
	return matched[:limit], nil
}

// Statistics reports counts and sizes computed from the live contents.
func (m *MemoryStore) Statistics(_ context.Context) (Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var storedBytes int
	for _, doc := range m.docs {
		if raw, err := json.Marshal(doc); err == nil {
			storedBytes += len(raw)
		}
	}

	return Statistics{
		DatabaseID:       memoryDatabaseID,
		ContainerID:      memoryContainerID,
		PartitionKeyPath: m.pkPath,
		DocumentCount:    int64(len(m.docs)),
		SizeKB:           int64(storedBytes / 1024),
		IndexingPolicy: IndexingPolicySummary{
			Automatic:     true,
			IndexingMode:  "consistent",
			IncludedPaths: []string{"/*"},
			ExcludedPaths: []string{`/"_etag"/?`},
		},
		CreatedTimestamp: m.created,
	}, nil
}

// DatabaseInfo describes the in-process database stand-in.
func (m *MemoryStore) DatabaseInfo(_ context.Context) (DatabaseInfo, error) {
	return DatabaseInfo{ID: memoryDatabaseID, LastModified: m.created}, nil
}

// ContainerInfo describes the in-process container stand-in.
func (m *MemoryStore) ContainerInfo(_ context.Context) (ContainerInfo, error) {
	return ContainerInfo{
		ID:               memoryContainerID,
		PartitionKeyPath: m.pkPath,
		LastModified:     m.created,
	}, nil
}

// ----- query evaluation -----

type memoryQuery struct {
	top        int
	countOnly  bool
	alias      string
	conditions []string
}

var (
	selectPattern = regexp.MustCompile(`(?is)^\s*SELECT\s+(?:TOP\s+(\d+)\s+)?(\*|VALUE\s+COUNT\(1\))\s+FROM\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s+WHERE\s+(.+?))?\s*;?\s*$`)
	andSplitter   = regexp.MustCompile(`(?i)\s+AND\s+`)
)

func parseMemoryQuery(query string) (memoryQuery, error) {
	groups := selectPattern.FindStringSubmatch(query)
	if groups == nil {
		return memoryQuery{}, invalidQueryError("unsupported query %q; expected SELECT [TOP n] * FROM <alias> [WHERE <alias>.<field> = <value> [AND ...]]", strings.TrimSpace(query))
	}

	parsed := memoryQuery{alias: groups[3]}
	if groups[1] != "" {
		n, err := strconv.Atoi(groups[1])
		if err != nil || n <= 0 {
			return memoryQuery{}, invalidQueryError("invalid TOP value %q", groups[1])
		}
		parsed.top = n
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(groups[2])), "VALUE") {
		parsed.countOnly = true
	}
	if groups[4] != "" {
		parsed.conditions = andSplitter.Split(groups[4], -1)
	}
	return parsed, nil
}

func matchConditions(doc Document, alias string, conditions []string, params map[string]any) (bool, error) {
	for _, cond := range conditions {
		field, token, err := splitCondition(cond, alias)
		if err != nil {
			return false, err
		}
		want, err := parseOperand(token, params)
		if err != nil {
			return false, err
		}
		got, ok := docFieldValue(doc, field)
		if !ok || !looseEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func splitCondition(cond, alias string) (string, string, error) {
	idx := strings.Index(cond, "=")
	if idx <= 0 || strings.ContainsAny(cond[:idx], "<>!") {
		return "", "", invalidQueryError("unsupported filter %q; only equality comparisons are evaluated", strings.TrimSpace(cond))
	}
	left := strings.TrimSpace(cond[:idx])
	right := strings.TrimSpace(cond[idx+1:])

	prefix, field, ok := strings.Cut(left, ".")
	if !ok || !strings.EqualFold(prefix, alias) || field == "" || right == "" {
		return "", "", invalidQueryError("unsupported filter %q; fields must be referenced as %s.<field>", strings.TrimSpace(cond), alias)
	}
	return field, right, nil
}

func parseOperand(token string, params map[string]any) (any, error) {
	switch {
	case strings.HasPrefix(token, "@"):
		value, ok := params[token]
		if !ok {
			return nil, invalidQueryError("query references undefined parameter %s", token)
		}
		return value, nil
	case len(token) >= 2 && token[0] == '\'' && token[len(token)-1] == '\'':
		return token[1 : len(token)-1], nil
	case len(token) >= 2 && token[0] == '"' && token[len(token)-1] == '"':
		return token[1 : len(token)-1], nil
	case strings.EqualFold(token, "true"):
		return true, nil
	case strings.EqualFold(token, "false"):
		return false, nil
	case strings.EqualFold(token, "null"):
		return nil, nil
	default:
		n, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, invalidQueryError("unsupported literal %q in filter", token)
		}
		return n, nil
	}
}

// docFieldValue walks a dotted field path ("price", "address.city")
// through the document.
func docFieldValue(doc Document, path string) (any, bool) {
	current := any(map[string]any(doc))
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEqual compares with numeric coercion so int 99 matches float64
// 99 regardless of how the values were decoded.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
