package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/pdfqa/internal/document"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. An empty path
// opens an in-memory database for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: writers serialize and :memory: stays a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS owners (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		collection_id TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id                          TEXT PRIMARY KEY,
		owner_id                    TEXT NOT NULL,
		filename                    TEXT NOT NULL,
		external_file_id            TEXT NOT NULL UNIQUE,
		external_collection_file_id TEXT NOT NULL DEFAULT '',
		status                      TEXT NOT NULL,
		is_active                   INTEGER NOT NULL DEFAULT 1,
		page_count                  INTEGER,
		size_bytes                  INTEGER,
		created_at                  INTEGER NOT NULL,
		updated_at                  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const documentColumns = `id, owner_id, filename, external_file_id, external_collection_file_id,
	status, is_active, page_count, size_bytes, created_at, updated_at`

// Create inserts a new record.
func (s *SQLiteStore) Create(ctx context.Context, rec *document.Record) error {
	now := s.now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.Status == "" {
		rec.Status = document.StatusProcessing
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.Filename, rec.ExternalFileID, rec.ExternalCollectionFileID,
		string(rec.Status), boolToInt(rec.IsActive), nullInt(rec.PageCount), nullInt64(rec.SizeBytes),
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Get returns the record with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*document.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// FindByExternalFileID returns the record for a backend file id.
func (s *SQLiteStore) FindByExternalFileID(ctx context.Context, fileID string) (*document.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE external_file_id = ?`, fileID)
	return scanDocument(row)
}

// ListByOwner returns the owner's records, oldest first.
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]document.Record, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
}

// ListByStatus returns every record in status, oldest first.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status document.Status) ([]document.Record, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = ? ORDER BY created_at, id`, string(status))
}

// FindByExternalFileIDs resolves many backend file ids in one query.
func (s *SQLiteStore) FindByExternalFileIDs(ctx context.Context, fileIDs []string) ([]document.Record, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fileIDs)), ",")
	args := make([]any, len(fileIDs))
	for i, id := range fileIDs {
		args[i] = id
	}

	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE external_file_id IN (`+placeholders+`)`, args...)
}

// ToggleActive flips IsActive in a single statement and returns the
// updated record.
func (s *SQLiteStore) ToggleActive(ctx context.Context, id string) (*document.Record, error) {
	row := s.db.QueryRowContext(ctx, `UPDATE documents
		SET is_active = CASE is_active WHEN 0 THEN 1 ELSE 0 END, updated_at = ?
		WHERE id = ?
		RETURNING `+documentColumns,
		s.now().UTC().UnixNano(), id)
	rec, err := scanDocument(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to toggle document: %w", err)
	}
	return rec, err
}

// SetMetadata records the page count. size is written only when no size
// is stored yet.
func (s *SQLiteStore) SetMetadata(ctx context.Context, id string, pages int, size int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents
		SET page_count = ?, size_bytes = COALESCE(size_bytes, ?), updated_at = ?
		WHERE id = ?`,
		pages, size, s.now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to update document metadata: %w", err)
	}
	return requireAffected(res)
}

// UpdateStatus performs a conditional status transition.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, from, to document.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), s.now().UTC().UnixNano(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check document: %w", err)
	}
	return false, nil
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return requireAffected(res)
}

// GetOwner returns the owner with the given id.
func (s *SQLiteStore) GetOwner(ctx context.Context, id string) (*document.Owner, error) {
	var (
		o       document.Owner
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, collection_id, created_at FROM owners WHERE id = ?`, id).
		Scan(&o.ID, &o.Name, &o.CollectionID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	o.CreatedAt = time.Unix(0, created).UTC()
	return &o, nil
}

// UpsertOwner creates the owner or renames an existing one. The collection
// id is never overwritten here; see SetCollection.
func (s *SQLiteStore) UpsertOwner(ctx context.Context, owner *document.Owner) error {
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO owners (id, name, collection_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		owner.ID, owner.Name, owner.CollectionID, owner.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert owner: %w", err)
	}
	return nil
}

// SetCollection sets the collection id if the owner has none.
func (s *SQLiteStore) SetCollection(ctx context.Context, ownerID, collectionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE owners SET collection_id = ? WHERE id = ? AND collection_id = ''`,
		collectionID, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to set collection: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	if _, err := s.GetOwner(ctx, ownerID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]document.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []document.Record
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*document.Record, error) {
	var (
		rec       document.Record
		status    string
		active    int
		pages     sql.NullInt64
		size      sql.NullInt64
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Filename, &rec.ExternalFileID,
		&rec.ExternalCollectionFileID, &status, &active, &pages, &size, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	st, err := document.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	rec.Status = st
	rec.IsActive = active != 0
	if pages.Valid {
		rec.PageCount = document.IntPtr(int(pages.Int64))
	}
	if size.Valid {
		rec.SizeBytes = document.Int64Ptr(size.Int64)
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return &rec, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
