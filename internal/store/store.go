// Package store defines the hierarchical document-store port. Collections
// contain documents; documents contain scalar fields and subcollections.
// Paths alternate collection and document segments, so a collection path has
// an odd number of segments and a document path an even number. All
// persistence in the system goes through this port.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Op is a query predicate operator.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpIn  Op = "in"
)

// Predicate is one (field, op, value) filter over top-level document fields.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Query narrows and orders a collection listing.
type Query struct {
	Predicates []Predicate
	OrderBy    string
	Descending bool
	Limit      int
}

// Doc is a document snapshot.
type Doc struct {
	Path       string
	ID         string
	Data       map[string]any
	UpdateTime time.Time
}

// serverTimestamp is the sentinel type replaced with the store's
// authoritative instant at commit.
type serverTimestamp struct{}

// ServerTimestamp returns the sentinel value for commit-time timestamps.
func ServerTimestamp() any { return serverTimestamp{} }

// IsServerTimestamp reports whether v is the sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveServerTimestamps replaces sentinel values with now, recursing into
// nested maps. Implementations call it at commit.
func ResolveServerTimestamps(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case serverTimestamp:
			out[k] = now.UTC().Format(time.RFC3339Nano)
		case map[string]any:
			out[k] = ResolveServerTimestamps(val, now)
		default:
			out[k] = v
		}
	}
	return out
}

// Reader is the read capability set shared by stores and transactions.
type Reader interface {
	// Get returns the document at path or domain.ErrNotFound.
	Get(ctx context.Context, path string) (*Doc, error)
	// ListDocs returns the document IDs of a collection, including ghost
	// documents (no scalar fields, live subcollections).
	ListDocs(ctx context.Context, collection string) ([]string, error)
	// ListCollections returns the subcollection names under a document path.
	ListCollections(ctx context.Context, docPath string) ([]string, error)
	// QueryDocs returns the documents of a collection matching q.
	QueryDocs(ctx context.Context, collection string, q Query) ([]*Doc, error)
}

// Writer is the write capability set shared by stores and transactions.
type Writer interface {
	// Set writes the full document, creating or replacing it.
	Set(ctx context.Context, path string, data map[string]any) error
	// Create writes the document only if absent; domain.ErrAlreadyExists
	// otherwise. Transaction-ID uniqueness across processes rests on this.
	Create(ctx context.Context, path string, data map[string]any) error
	// Update merges partial into an existing document; domain.ErrNotFound if
	// the document is absent.
	Update(ctx context.Context, path string, partial map[string]any) error
	// Delete removes the document. Deleting is not recursive; subcollections
	// survive as ghost documents.
	Delete(ctx context.Context, path string) error
}

// Tx is the transactional handle passed to RunTransaction functions.
type Tx interface {
	Reader
	Writer
}

// Store is the full document-store port.
type Store interface {
	Reader
	Writer
	// RunTransaction executes fn atomically. On transient conflict the store
	// retries fn, so fn must be side-effect free outside the handle.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Encode converts a domain value into a document field map via its JSON
// form. Money stays integer centavos; it is bounded well inside float64's
// exact-integer range.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode converts a document field map back into a domain value.
func Decode(doc *Doc, out any) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
