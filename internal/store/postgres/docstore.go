// Package postgres implements the document-store port on PostgreSQL. Every
// document is one row of the documents table keyed by its full path, with
// fields in a jsonb column. Serializable transactions back RunTransaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/store"
)

const (
	// txRetries is how often RunTransaction retries a serialization failure
	// before surfacing it.
	txRetries = 5
	// retryBackoff is the base delay between retries; attempt n waits n times
	// this long.
	retryBackoff = 50 * time.Millisecond
)

// Store is the PostgreSQL implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on the given pool. The documents table must exist; see
// db/migrations.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// querier is the subset of pgx shared by pool and transaction handles.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) Get(ctx context.Context, path string) (*store.Doc, error) {
	return getDoc(ctx, s.pool, path)
}

func getDoc(ctx context.Context, q querier, path string) (*store.Doc, error) {
	var raw []byte
	var updated time.Time
	err := q.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE path = $1`, path).
		Scan(&raw, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, domain.WrapError(domain.KindIntegrity, "undecodable document", err).With("path", path)
	}
	return &store.Doc{Path: path, ID: store.DocID(path), Data: data, UpdateTime: updated}, nil
}

func (s *Store) ListDocs(ctx context.Context, collection string) ([]string, error) {
	return listDocs(ctx, s.pool, collection)
}

// listDocs returns direct child document IDs, including ghost documents that
// exist only as ancestors of deeper rows.
func listDocs(ctx context.Context, q querier, collection string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT DISTINCT split_part(substr(path, length($1) + 2), '/', 1) AS id
		   FROM documents
		  WHERE path LIKE $1 || '/%'
		  ORDER BY id`, collection)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *Store) ListCollections(ctx context.Context, docPath string) ([]string, error) {
	return listCollections(ctx, s.pool, docPath)
}

func listCollections(ctx context.Context, q querier, docPath string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT DISTINCT split_part(substr(path, length($1) + 2), '/', 1) AS name
		   FROM documents
		  WHERE path LIKE $1 || '/%'
		    AND position('/' in substr(path, length($1) + 2)) > 0
		  ORDER BY name`, docPath)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *Store) QueryDocs(ctx context.Context, collection string, q store.Query) ([]*store.Doc, error) {
	return queryDocs(ctx, s.pool, collection, q)
}

func queryDocs(ctx context.Context, qr querier, collection string, q store.Query) ([]*store.Doc, error) {
	sql := strings.Builder{}
	sql.WriteString(`SELECT path, data, updated_at FROM documents WHERE parent = $1`)
	args := []any{collection}

	for _, p := range q.Predicates {
		clause, newArgs, err := predicateSQL(p, len(args))
		if err != nil {
			return nil, err
		}
		sql.WriteString(" AND ")
		sql.WriteString(clause)
		args = append(args, newArgs...)
	}

	if q.OrderBy != "" {
		// Field name is interpolated; it comes from code, never from callers.
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&sql, " ORDER BY data->>%s %s", quoteLiteral(q.OrderBy), dir)
	} else {
		sql.WriteString(" ORDER BY path")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sql, " LIMIT %d", q.Limit)
	}

	rows, err := qr.Query(ctx, sql.String(), args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []*store.Doc
	for rows.Next() {
		var path string
		var raw []byte
		var updated time.Time
		if err := rows.Scan(&path, &raw, &updated); err != nil {
			return nil, err
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, domain.WrapError(domain.KindIntegrity, "undecodable document", err).With("path", path)
		}
		out = append(out, &store.Doc{Path: path, ID: store.DocID(path), Data: data, UpdateTime: updated})
	}
	return out, rows.Err()
}

func predicateSQL(p store.Predicate, argOffset int) (string, []any, error) {
	field := fmt.Sprintf("data->>%s", quoteLiteral(p.Field))
	switch p.Op {
	case store.OpEq, store.OpLt, store.OpLte, store.OpGt, store.OpGte:
		if f, ok := numeric(p.Value); ok {
			return fmt.Sprintf("(%s)::numeric %s $%d", field, p.Op, argOffset+1), []any{f}, nil
		}
		return fmt.Sprintf("%s %s $%d", field, p.Op, argOffset+1), []any{stringValue(p.Value)}, nil
	case store.OpIn:
		values, ok := p.Value.([]any)
		if !ok {
			return "", nil, domain.NewError(domain.KindInvalidInput, "in predicate requires a value slice")
		}
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = stringValue(v)
		}
		return fmt.Sprintf("%s = ANY($%d)", field, argOffset+1), []any{strs}, nil
	default:
		return "", nil, domain.NewError(domain.KindInvalidInput, "unsupported query operator").With("op", string(p.Op))
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case domain.Centavos:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	return setDoc(ctx, s.pool, path, data)
}

func setDoc(ctx context.Context, q querier, path string, data map[string]any) error {
	raw, err := marshalDoc(data)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx,
		`INSERT INTO documents (path, parent, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		path, store.ParentPath(path), raw)
	return mapPgError(err)
}

func (s *Store) Create(ctx context.Context, path string, data map[string]any) error {
	return createDoc(ctx, s.pool, path, data)
}

func createDoc(ctx context.Context, q querier, path string, data map[string]any) error {
	raw, err := marshalDoc(data)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		`INSERT INTO documents (path, parent, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (path) DO NOTHING`,
		path, store.ParentPath(path), raw)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Update(ctx context.Context, path string, partial map[string]any) error {
	return updateDoc(ctx, s.pool, path, partial)
}

func updateDoc(ctx context.Context, q querier, path string, partial map[string]any) error {
	raw, err := marshalDoc(partial)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		`UPDATE documents SET data = data || $2::jsonb, updated_at = now() WHERE path = $1`,
		path, raw)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
	return mapPgError(err)
}

// marshalDoc resolves server-timestamp sentinels and marshals to jsonb.
// Sentinels resolve to the client clock; the row's updated_at carries the
// server's authoritative instant.
func marshalDoc(data map[string]any) ([]byte, error) {
	resolved := store.ResolveServerTimestamps(data, time.Now())
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, domain.WrapError(domain.KindInvalidInput, "unserializable document", err)
	}
	return raw, nil
}

// pgTx adapts a pgx transaction to the store.Tx port.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, path string) (*store.Doc, error) {
	return getDoc(ctx, t.tx, path)
}

func (t *pgTx) ListDocs(ctx context.Context, collection string) ([]string, error) {
	return listDocs(ctx, t.tx, collection)
}

func (t *pgTx) ListCollections(ctx context.Context, docPath string) ([]string, error) {
	return listCollections(ctx, t.tx, docPath)
}

func (t *pgTx) QueryDocs(ctx context.Context, collection string, q store.Query) ([]*store.Doc, error) {
	return queryDocs(ctx, t.tx, collection, q)
}

func (t *pgTx) Set(ctx context.Context, path string, data map[string]any) error {
	return setDoc(ctx, t.tx, path, data)
}

func (t *pgTx) Create(ctx context.Context, path string, data map[string]any) error {
	return createDoc(ctx, t.tx, path, data)
}

func (t *pgTx) Update(ctx context.Context, path string, partial map[string]any) error {
	return updateDoc(ctx, t.tx, path, partial)
}

func (t *pgTx) Delete(ctx context.Context, path string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
	return mapPgError(err)
}

// RunTransaction executes fn inside a serializable transaction, retrying
// serialization failures and deadlocks with linear backoff.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
		err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable},
			func(tx pgx.Tx) error {
				return fn(ctx, &pgTx{tx: tx})
			})
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("Retrying store transaction")
	}
	return domain.WrapError(domain.KindTransient, "store transaction retries exhausted", lastErr)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.KindTransient, "store operation timed out", err)
	}
	return err
}
