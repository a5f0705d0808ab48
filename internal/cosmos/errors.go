package cosmos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// Kind classifies a store failure. The set is closed: every error a
// Store returns carries exactly one of these values, and callers switch
// on Kind rather than on SDK types or status codes.
type Kind string

const (
	// KindNotFound: the document does not exist at the given id and
	// partition key.
	KindNotFound Kind = "not_found"

	// KindConflict: a document with the same id already exists, or a
	// concurrent writer changed the document mid-update.
	KindConflict Kind = "conflict"

	// KindInvalidPartitionKey: the supplied partition key is absent from
	// the document or disagrees with the document's own field.
	KindInvalidPartitionKey Kind = "invalid_partition_key"

	// KindCrossPartitionRequired: a query without a partition key was
	// issued with cross-partition execution disabled.
	KindCrossPartitionRequired Kind = "cross_partition_required"

	// KindRateLimited: the service throttled the request (429).
	KindRateLimited Kind = "rate_limited"

	// KindConnectionFailed: the account is unreachable, the credentials
	// were rejected, or the service returned an unexpected status.
	KindConnectionFailed Kind = "connection_failed"

	// KindInvalidQuery: the query text or its parameters are malformed.
	KindInvalidQuery Kind = "invalid_query"
)

// retryAfterHeader carries the service's throttle backoff hint in
// milliseconds.
const retryAfterHeader = "x-ms-retry-after-ms"

// Error is a classified store failure. Message is safe to surface to
// MCP clients: it never contains the account key or raw service
// payloads.
type Error struct {
	Kind    Kind
	Message string

	// RetryAfter is the service's suggested backoff for rate_limited
	// errors, zero otherwise.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %s)", e.Kind, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf returns the Kind carried by err, or "" for nil and foreign
// errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func notFoundError(id, partitionKey string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("document %q with partition key %q not found", id, partitionKey),
	}
}

func conflictError(id, partitionKey string) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("document %q already exists with partition key %q", id, partitionKey),
	}
}

func partitionKeyError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidPartitionKey, Message: fmt.Sprintf(format, args...)}
}

func crossPartitionError() *Error {
	return &Error{
		Kind:    KindCrossPartitionRequired,
		Message: "query spans multiple partitions; set cross_partition=true or provide partition_key",
	}
}

func invalidQueryError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidQuery, Message: fmt.Sprintf(format, args...)}
}

// translate maps an Azure SDK error to a classified *Error. op names
// the failed operation for the message ("read document", "query"). id
// and partitionKey describe the document a point operation targeted and
// may be empty for queries and metadata reads.
//
// Messages are composed locally from op, id, and status information.
// Service response bodies are inspected for classification only and are
// never echoed, so credentials and account internals cannot leak into
// tool results.
func translate(op, id, partitionKey string, err error) error {
	if err == nil {
		return nil
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return translateResponse(op, id, partitionKey, respErr)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:    KindConnectionFailed,
			Message: fmt.Sprintf("%s: request canceled or timed out", op),
		}
	}

	return &Error{
		Kind:    KindConnectionFailed,
		Message: fmt.Sprintf("%s: cannot reach Cosmos DB: %v", op, err),
	}
}

func translateResponse(op, id, partitionKey string, respErr *azcore.ResponseError) error {
	switch respErr.StatusCode {
	case 404:
		if id != "" {
			return notFoundError(id, partitionKey)
		}
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s: resource not found", op)}

	case 409:
		if id != "" {
			return conflictError(id, partitionKey)
		}
		return &Error{Kind: KindConflict, Message: fmt.Sprintf("%s: resource already exists", op)}

	case 412:
		return &Error{
			Kind:    KindConflict,
			Message: fmt.Sprintf("document %q was modified concurrently; retry the update", id),
		}

	case 429:
		return &Error{
			Kind:       KindRateLimited,
			Message:    fmt.Sprintf("%s: request rate limited by Cosmos DB", op),
			RetryAfter: retryAfterHint(respErr),
		}

	case 400:
		return translateBadRequest(op, respErr)

	case 401, 403:
		return &Error{
			Kind:    KindConnectionFailed,
			Message: fmt.Sprintf("%s: authorization failed (status %d); check the configured endpoint and key", op, respErr.StatusCode),
		}

	default:
		return &Error{
			Kind:    KindConnectionFailed,
			Message: fmt.Sprintf("%s: Cosmos DB returned status %d (%s)", op, respErr.StatusCode, respErr.ErrorCode),
		}
	}
}

// translateBadRequest splits 400s into the partition-scoping failures
// and plain malformed queries. The service reports both under one
// status code, distinguishable only by the response body.
func translateBadRequest(op string, respErr *azcore.ResponseError) error {
	detail := serviceDetail(respErr)

	if strings.Contains(detail, "cross partition") {
		return crossPartitionError()
	}
	if strings.Contains(detail, "partition key") {
		return &Error{
			Kind:    KindInvalidPartitionKey,
			Message: fmt.Sprintf("%s: partition key rejected by Cosmos DB", op),
		}
	}
	return invalidQueryError("%s: Cosmos DB rejected the query as malformed", op)
}

// serviceDetail returns a lowercased prefix of the response body for
// classification. The result is matched against, never surfaced.
func serviceDetail(respErr *azcore.ResponseError) string {
	if respErr.RawResponse == nil || respErr.RawResponse.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(respErr.RawResponse.Body, 8192))
	if err != nil {
		return ""
	}
	return strings.ToLower(string(body))
}

func retryAfterHint(respErr *azcore.ResponseError) time.Duration {
	if respErr.RawResponse == nil {
		return 0
	}
	ms, err := strconv.Atoi(respErr.RawResponse.Header.Get(retryAfterHeader))
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
