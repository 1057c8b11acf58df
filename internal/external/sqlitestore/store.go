package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ritualsync/internal/external"
	"ritualsync/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Older staging
// databases must be deleted.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is a SQLite-backed external.Store.
type Store struct {
	db        *sql.DB
	path      string
	pageSize  int
	batchSize int
}

// Open creates or connects to the staging database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "sqlitestore", "open", "database path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: path, pageSize: external.MaxPageSize, batchSize: external.MaxBatchSize}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// ReadAll pages through the staging table in insertion order.
func (s *Store) ReadAll(ctx context.Context, q external.Query) ([]external.Row, error) {
	if strings.TrimSpace(q.Formula) != "" {
		return nil, services.Wrap(services.ErrValidation, "sqlitestore", "read", "formula filters are not supported", nil)
	}
	where := "seq > ?"
	var filterArgs []any
	if q.Filter != nil && strings.TrimSpace(q.Filter.Field) != "" {
		where += " AND json_extract(fields_json, ?) = ?"
		filterArgs = append(filterArgs, jsonPath(q.Filter.Field), q.Filter.Value)
	}
	query := "SELECT seq, row_id, fields_json FROM rows WHERE " + where + " ORDER BY seq LIMIT ?"

	var out []external.Row
	var last int64
	for {
		limit := s.pageSize
		if q.MaxRecords > 0 {
			limit = min(limit, q.MaxRecords-len(out))
		}
		if limit <= 0 {
			break
		}
		args := append([]any{last}, filterArgs...)
		args = append(args, limit)
		page, lastSeq, err := s.readPage(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < limit {
			break
		}
		last = lastSeq
	}
	return out, nil
}

func (s *Store) readPage(ctx context.Context, query string, args ...any) ([]external.Row, int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrTransport, "sqlitestore", "read", "", err)
	}
	defer rows.Close()
	var (
		out  []external.Row
		last int64
	)
	for rows.Next() {
		var (
			seq    int64
			id     string
			fields string
		)
		if err := rows.Scan(&seq, &id, &fields); err != nil {
			return nil, 0, services.Wrap(services.ErrTransport, "sqlitestore", "read", "scan row", err)
		}
		decoded, err := decodeFields(fields)
		if err != nil {
			return nil, 0, services.Wrap(services.ErrDecode, "sqlitestore", "read", fmt.Sprintf("row %s", id), err)
		}
		out = append(out, external.Row{ID: id, Fields: decoded})
		last = seq
	}
	if err := rows.Err(); err != nil {
		return nil, 0, services.Wrap(services.ErrTransport, "sqlitestore", "read", "iterate rows", err)
	}
	return out, last, nil
}

// BatchCreate inserts rows, one transaction per chunk.
func (s *Store) BatchCreate(ctx context.Context, rows []external.Fields) error {
	for i, chunk := range external.Chunk(rows, s.batchSize) {
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			now := time.Now().UTC().Format(time.RFC3339Nano)
			for _, fields := range chunk {
				encoded, err := encodeFields(fields)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO rows (row_id, fields_json, created_at, updated_at) VALUES (?, ?, ?, ?)",
					"stg"+strings.ReplaceAll(uuid.NewString(), "-", ""), encoded, now, now,
				); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("create chunk %d: %w", i+1, classify("create", err))
		}
	}
	return nil
}

// BatchUpdate merges columns into existing rows. An unknown row id fails its
// whole chunk.
func (s *Store) BatchUpdate(ctx context.Context, updates []external.RowUpdate) error {
	for i, chunk := range external.Chunk(updates, s.batchSize) {
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			now := time.Now().UTC().Format(time.RFC3339Nano)
			for _, u := range chunk {
				var current string
				err := tx.QueryRowContext(ctx, "SELECT fields_json FROM rows WHERE row_id = ?", u.ID).Scan(&current)
				if errors.Is(err, sql.ErrNoRows) {
					return services.Wrap(services.ErrNotFound, "sqlitestore", "update", fmt.Sprintf("row %s", u.ID), nil)
				}
				if err != nil {
					return err
				}
				merged, err := decodeFields(current)
				if err != nil {
					return services.Wrap(services.ErrDecode, "sqlitestore", "update", fmt.Sprintf("row %s", u.ID), err)
				}
				for k, v := range u.Fields {
					merged[k] = v
				}
				encoded, err := encodeFields(merged)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx,
					"UPDATE rows SET fields_json = ?, updated_at = ? WHERE row_id = ?",
					encoded, now, u.ID,
				); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("update chunk %d: %w", i+1, classify("update", err))
		}
	}
	return nil
}

// Count returns the number of staged rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM rows").Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func classify(op string, err error) error {
	for _, marker := range []error{services.ErrNotFound, services.ErrDecode, services.ErrValidation} {
		if errors.Is(err, marker) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrTransport, "sqlitestore", op, "", err)
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

func encodeFields(fields external.Fields) (string, error) {
	if fields == nil {
		fields = external.Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "sqlitestore", "encode", "fields", err)
	}
	return string(data), nil
}

func decodeFields(raw string) (external.Fields, error) {
	fields := external.Fields{}
	if strings.TrimSpace(raw) == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

var _ external.Store = (*Store)(nil)
