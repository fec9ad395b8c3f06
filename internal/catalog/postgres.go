package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DBTX is the subset of *pgxpool.Pool the store needs.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore reads and writes catalog records in PostgreSQL.
type PostgresStore struct {
	db    DBTX
	table TableConfig
}

// NewPostgresStore creates a PostgresStore over table. An empty TableConfig
// selects DefaultTable.
func NewPostgresStore(db DBTX, table TableConfig) *PostgresStore {
	if table.Name == "" {
		table.Name = DefaultTable.Name
	}
	if table.IDColumn == "" {
		table.IDColumn = DefaultTable.IDColumn
	}
	return &PostgresStore{db: db, table: table}
}

func (s *PostgresStore) tableName() string {
	return pgx.Identifier{s.table.Name}.Sanitize()
}

func (s *PostgresStore) idColumn() string {
	return pgx.Identifier{s.table.IDColumn}.Sanitize()
}

// QueryAll returns every record ordered by identity.
func (s *PostgresStore) QueryAll(ctx context.Context) ([]Record, error) {
	sql := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s`, s.tableName(), s.idColumn())
	records, err := s.query(ctx, sql)
	if err != nil {
		return nil, &StorageError{Op: "query all", Err: err}
	}
	return records, nil
}

// QueryNew returns records with identity greater than sinceID.
func (s *PostgresStore) QueryNew(ctx context.Context, sinceID int64) ([]Record, error) {
	sql := fmt.Sprintf(`SELECT * FROM %s WHERE %s > $1 ORDER BY %s`, s.tableName(), s.idColumn(), s.idColumn())
	records, err := s.query(ctx, sql, sinceID)
	if err != nil {
		return nil, &StorageError{Op: "query new", Err: err}
	}
	return records, nil
}

// MaxID returns the largest stored identity, or 0 for an empty table.
func (s *PostgresStore) MaxID(ctx context.Context) (int64, error) {
	var id int64
	sql := fmt.Sprintf(`SELECT COALESCE(MAX(%s), 0)::bigint FROM %s`, s.idColumn(), s.tableName())
	if err := s.db.QueryRow(ctx, sql).Scan(&id); err != nil {
		return 0, &StorageError{Op: "max id", Err: err}
	}
	return id, nil
}

// Insert stores fields inside a transaction. The deferred rollback resets the
// connection whenever the statement or commit fails.
func (s *PostgresStore) Insert(ctx context.Context, fields map[string]any) (Record, error) {
	if len(fields) == 0 {
		return nil, &StorageError{Op: "insert", Err: ErrEmptyProduct}
	}

	sql, args := s.insertSQL(fields)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "insert", Err: fmt.Errorf("begin: %w", err)}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, &StorageError{Op: "insert", Err: err}
	}
	records, err := collect(rows)
	if err != nil {
		return nil, &StorageError{Op: "insert", Err: err}
	}
	if len(records) != 1 {
		return nil, &StorageError{Op: "insert", Err: fmt.Errorf("expected 1 returned row, got %d", len(records))}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: "insert", Err: fmt.Errorf("commit: %w", err)}
	}
	return records[0], nil
}

// insertSQL builds the INSERT statement with columns in sorted order so the
// generated SQL is stable.
func (s *PostgresStore) insertSQL(fields map[string]any) (string, []any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, len(keys))
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = pgx.Identifier{k}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[k]
	}

	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		s.tableName(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return sql, args
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	records := []Record{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		records = append(records, toRecord(fields, values))
	}
	return records, rows.Err()
}

func toRecord(fields []pgconn.FieldDescription, values []any) Record {
	r := make(Record, len(fields))
	for i, f := range fields {
		r[f.Name] = columnValue(values[i])
	}
	return r
}

// columnValue keeps numeric columns exact as decimal.Decimal and widens small
// integers so identities always come back as int64.
func columnValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid || x.NaN || x.InfinityModifier != pgtype.Finite || x.Int == nil {
			return nil
		}
		return decimal.NewFromBigInt(x.Int, x.Exp)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	default:
		return v
	}
}
