package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresSubmissionRepository struct {
	pool        *pgxpool.Pool
	collections map[string]struct{}
}

// NewPostgresSubmissionRepository returns a repository that only touches the
// listed collections (table names).
func NewPostgresSubmissionRepository(pool *pgxpool.Pool, collections []string) *PostgresSubmissionRepository {
	allowed := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		allowed[c] = struct{}{}
	}
	return &PostgresSubmissionRepository{pool: pool, collections: allowed}
}

func (r *PostgresSubmissionRepository) Insert(ctx context.Context, collection string, record map[string]any) error {
	if _, ok := r.collections[collection]; !ok {
		return &RemoteWriteError{Collection: collection, Err: ErrUnknownCollection}
	}

	query, err := buildInsertQuery(collection, record)
	if err != nil {
		return &RemoteWriteError{Collection: collection, Err: err}
	}

	// pgx encodes the map as jsonb
	if _, err := r.pool.Exec(ctx, query, record); err != nil {
		return &RemoteWriteError{Collection: collection, Err: fmt.Errorf("failed to insert record: %w", err)}
	}
	return nil
}

func (r *PostgresSubmissionRepository) List(ctx context.Context, collection string) ([]map[string]any, error) {
	if _, ok := r.collections[collection]; !ok {
		return nil, fmt.Errorf("failed to list %s: %w", collection, ErrUnknownCollection)
	}

	table := pgx.Identifier{collection}.Sanitize()
	query := fmt.Sprintf(`SELECT row_to_json(t)::jsonb FROM %s t`, table)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var row map[string]any
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", collection, err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return out, nil
}

func (r *PostgresSubmissionRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// buildInsertQuery produces an INSERT that copies exactly the record's keys
// into same-named columns, letting Postgres coerce each JSON value to the
// column type. Columns the record omits keep their defaults.
func buildInsertQuery(collection string, record map[string]any) (string, error) {
	if len(record) == 0 {
		return "", ErrEmptyRecord
	}

	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = pgx.Identifier{k}.Sanitize()
	}
	columnList := strings.Join(cols, ", ")
	table := pgx.Identifier{collection}.Sanitize()

	return fmt.Sprintf(
		`INSERT INTO %[1]s (%[2]s) SELECT %[2]s FROM jsonb_populate_record(NULL::%[1]s, $1::jsonb)`,
		table, columnList,
	), nil
}
