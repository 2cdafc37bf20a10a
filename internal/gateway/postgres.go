package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	seq        BIGSERIAL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (collection, seq);
`

// PostgresStore keeps every collection in one JSONB documents table.
// Listing order is insertion order.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the documents table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, documentsSchema); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var data map[string]any
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Data: data}, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::text::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`
	if merge {
		query = `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::text::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data`
	}
	if _, err := s.pool.Exec(ctx, query, collection, id, string(raw)); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::text::jsonb)
		ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(raw),
	)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET data = data || $3::text::jsonb
		WHERE collection = $1 AND id = $2`,
		collection, id, string(raw),
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	return s.query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq`,
		collection,
	)
}

// Query compares the JSONB field against value using jsonb ordering, so
// numbers compare numerically and strings lexically.
func (s *PostgresStore) Query(ctx context.Context, collection, field, op string, value any) ([]Document, error) {
	if err := checkOperator(op); err != nil {
		return nil, err
	}

	if op == OpIn {
		values, err := jsonList(value)
		if err != nil {
			return nil, err
		}
		return s.query(ctx, `
			SELECT id, data FROM documents
			WHERE collection = $1 AND data -> $2::text = ANY($3::text[]::jsonb[])
			ORDER BY seq`,
			collection, field, values,
		)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}
	sqlOp := op
	if op == OpEqual {
		sqlOp = "="
	} else if op == OpNotEqual {
		sqlOp = "<>"
	}
	// sqlOp comes from the closed operator set checked above.
	return s.query(ctx, `
		SELECT id, data FROM documents
		WHERE collection = $1 AND data -> $2::text IS NOT NULL AND data -> $2::text `+sqlOp+` $3::text::jsonb
		ORDER BY seq`,
		collection, field, string(raw),
	)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Document, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func jsonList(value any) ([]string, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: \"in\" needs a list value", ErrUnsupportedOperator)
	}
	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		raw, err := json.Marshal(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("encode query value: %w", err)
		}
		out = append(out, string(raw))
	}
	return out, nil
}
