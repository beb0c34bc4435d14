// Package memory is an in-memory document store used by tests and local
// development. A single mutex serializes transactions, which trivially
// satisfies the port's atomicity contract.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/store"
)

type document struct {
	data       map[string]any
	updateTime time.Time
}

// Store is the in-memory implementation of store.Store.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*document
	now  func() time.Time
}

// New creates an empty store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a store with an injected clock, used as the server
// timestamp source in tests.
func NewWithClock(now func() time.Time) *Store {
	return &Store{docs: make(map[string]*document), now: now}
}

func deepCopy(data map[string]any) map[string]any {
	raw, err := json.Marshal(data)
	if err != nil {
		// Documents are built via store.Encode and are always JSON-safe.
		panic("memory store: unserializable document: " + err.Error())
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic("memory store: " + err.Error())
	}
	return out
}

func resolveSentinels(data map[string]any, now time.Time) map[string]any {
	return store.ResolveServerTimestamps(data, now)
}

func (s *Store) Get(ctx context.Context, path string) (*store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(path)
}

func (s *Store) get(path string) (*store.Doc, error) {
	doc, ok := s.docs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &store.Doc{
		Path:       path,
		ID:         store.DocID(path),
		Data:       deepCopy(doc.data),
		UpdateTime: doc.updateTime,
	}, nil
}

func (s *Store) ListDocs(ctx context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDocs(collection)
}

func (s *Store) listDocs(collection string) ([]string, error) {
	prefix := collection + "/"
	depth := len(store.SplitPath(collection)) + 1
	ids := make(map[string]bool)
	for path := range s.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		// Direct children are documents; deeper paths imply ghost ancestors,
		// which list as refs too.
		segs := store.SplitPath(path)
		if len(segs) >= depth {
			ids[segs[depth-1]] = true
		}
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListCollections(ctx context.Context, docPath string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCollections(docPath)
}

func (s *Store) listCollections(docPath string) ([]string, error) {
	prefix := docPath + "/"
	depth := len(store.SplitPath(docPath)) + 1
	names := make(map[string]bool)
	for path := range s.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		segs := store.SplitPath(path)
		if len(segs) > depth {
			names[segs[depth-1]] = true
		}
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) QueryDocs(ctx context.Context, collection string, q store.Query) ([]*store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryDocs(collection, q)
}

func (s *Store) queryDocs(collection string, q store.Query) ([]*store.Doc, error) {
	depth := len(store.SplitPath(collection)) + 1
	prefix := collection + "/"

	var out []*store.Doc
	for path, doc := range s.docs {
		if !strings.HasPrefix(path, prefix) || len(store.SplitPath(path)) != depth {
			continue
		}
		if !matches(doc.data, q.Predicates) {
			continue
		}
		out = append(out, &store.Doc{
			Path:       path,
			ID:         store.DocID(path),
			Data:       deepCopy(doc.data),
			UpdateTime: doc.updateTime,
		})
	}

	orderBy := q.OrderBy
	sort.Slice(out, func(i, j int) bool {
		var less bool
		if orderBy != "" {
			less = compareValues(out[i].Data[orderBy], out[j].Data[orderBy]) < 0
		} else {
			less = out[i].ID < out[j].ID
		}
		if q.Descending {
			return !less
		}
		return less
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(data map[string]any, preds []store.Predicate) bool {
	for _, p := range preds {
		field, ok := data[p.Field]
		if !ok {
			return false
		}
		switch p.Op {
		case store.OpIn:
			values, ok := p.Value.([]any)
			if !ok {
				return false
			}
			hit := false
			for _, v := range values {
				if compareValues(field, v) == 0 {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		case store.OpEq:
			if compareValues(field, p.Value) != 0 {
				return false
			}
		case store.OpLt:
			if compareValues(field, p.Value) >= 0 {
				return false
			}
		case store.OpLte:
			if compareValues(field, p.Value) > 0 {
				return false
			}
		case store.OpGt:
			if compareValues(field, p.Value) <= 0 {
				return false
			}
		case store.OpGte:
			if compareValues(field, p.Value) < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders JSON scalars: numbers numerically, everything else by
// string form. Times compare correctly because RFC 3339 strings sort.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := stringify(a), stringify(b)
	return strings.Compare(as, bs)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case domain.Centavos:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	default:
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(path, data)
}

func (s *Store) set(path string, data map[string]any) error {
	now := s.now()
	s.docs[path] = &document{data: deepCopy(resolveSentinels(data, now)), updateTime: now}
	return nil
}

func (s *Store) Create(ctx context.Context, path string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(path, data)
}

func (s *Store) create(path string, data map[string]any) error {
	if _, exists := s.docs[path]; exists {
		return domain.ErrAlreadyExists
	}
	return s.set(path, data)
}

func (s *Store) Update(ctx context.Context, path string, partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(path, partial)
}

func (s *Store) update(path string, partial map[string]any) error {
	doc, ok := s.docs[path]
	if !ok {
		return domain.ErrNotFound
	}
	now := s.now()
	merged := deepCopy(doc.data)
	for k, v := range resolveSentinels(partial, now) {
		merged[k] = v
	}
	s.docs[path] = &document{data: deepCopy(merged), updateTime: now}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	return nil
}

// tx buffers writes and applies them at commit while the store mutex is
// held, so readers outside see either the full pre- or post-state.
type tx struct {
	s      *Store
	writes []func() error
}

func (t *tx) Get(ctx context.Context, path string) (*store.Doc, error) {
	return t.s.get(path)
}

func (t *tx) ListDocs(ctx context.Context, collection string) ([]string, error) {
	return t.s.listDocs(collection)
}

func (t *tx) ListCollections(ctx context.Context, docPath string) ([]string, error) {
	return t.s.listCollections(docPath)
}

func (t *tx) QueryDocs(ctx context.Context, collection string, q store.Query) ([]*store.Doc, error) {
	return t.s.queryDocs(collection, q)
}

func (t *tx) Set(ctx context.Context, path string, data map[string]any) error {
	data = deepCopy(resolveSentinels(data, t.s.now()))
	t.writes = append(t.writes, func() error { return t.s.set(path, data) })
	return nil
}

func (t *tx) Create(ctx context.Context, path string, data map[string]any) error {
	if _, exists := t.s.docs[path]; exists {
		return domain.ErrAlreadyExists
	}
	data = deepCopy(resolveSentinels(data, t.s.now()))
	t.writes = append(t.writes, func() error { return t.s.create(path, data) })
	return nil
}

func (t *tx) Update(ctx context.Context, path string, partial map[string]any) error {
	if _, exists := t.s.docs[path]; !exists {
		return domain.ErrNotFound
	}
	partial = deepCopy(resolveSentinels(partial, t.s.now()))
	t.writes = append(t.writes, func() error { return t.s.update(path, partial) })
	return nil
}

func (t *tx) Delete(ctx context.Context, path string) error {
	t.writes = append(t.writes, func() error {
		delete(t.s.docs, path)
		return nil
	})
	return nil
}

// RunTransaction executes fn under the store mutex. fn's writes are buffered
// and discarded when fn errors.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	if err := fn(ctx, t); err != nil {
		return err
	}
	for _, write := range t.writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}
