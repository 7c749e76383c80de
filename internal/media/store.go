package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// Artifact is one stored media file.
type Artifact struct {
	ID        string `db:"id"         json:"id"`
	Kind      Kind   `db:"kind"       json:"kind"`
	MIMEType  string `db:"mime_type"  json:"mimeType"`
	FileName  string `db:"file_name"  json:"fileName"`
	Label     string `db:"label"      json:"label"`
	Size      int64  `db:"size_bytes" json:"size"`
	CreatedMs int64  `db:"created_at" json:"-"`
}

// CreatedAt returns the creation time.
func (a *Artifact) CreatedAt() time.Time {
	return time.UnixMilli(a.CreatedMs).UTC()
}

// Ref returns the message reference for the artifact.
func (a *Artifact) Ref() *Ref {
	return &Ref{ID: a.ID, Kind: a.Kind, URL: URL(a.ID), MIMEType: a.MIMEType, Label: a.Label}
}

// Store writes artifacts under a directory and indexes them in SQLite so the
// local media URLs keep resolving across restarts.
type Store struct {
	db     *sqlx.DB
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// OpenStore creates the media directory, connects to the index and applies
// migrations.
func OpenStore(dir, dbPath string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create media directory %s: %w", dir, err)
	}
	if dbDir := filepath.Dir(extractDBNameFromPath(dbPath)); dbDir != "" {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	db, err := newDB(dbPath)
	if err != nil {
		return nil, err
	}

	logger := log.With("component", "media_store")
	logger.Info("Media store opened", "dir", dir, "db_path", dbPath)
	return &Store{
		db:     db,
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}, nil
}

func newDB(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support concurrent writes, so max open conns = 1
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := applyMigrations(db.DB, extractDBNameFromPath(dbPath)); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return db, nil
}

func applyMigrations(db *sql.DB, dbName string) error {
	if dbName == "" {
		return errors.New("database name/path for migration driver is empty")
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite3 database driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	slog.Info("Database migrations applied successfully.")
	return nil
}

// extractDBNameFromPath strips a file: prefix and query parameters.
func extractDBNameFromPath(path string) string {
	path = strings.TrimPrefix(path, "file:")
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}

// Close closes the index.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close media index: %w", err)
	}
	s.logger.Info("Media store closed")
	return nil
}

// Ping checks the index connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save writes data to disk and records it. An empty or generic mimeType is
// replaced by the sniffed content type.
func (s *Store) Save(ctx context.Context, kind Kind, mimeType, label string, data []byte) (*Artifact, error) {
	if len(data) == 0 {
		return nil, errors.New("refusing to store empty artifact")
	}

	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}
	mimeType, _, _ = strings.Cut(mimeType, ";")

	a := &Artifact{
		ID:        uuid.NewString(),
		Kind:      kind,
		MIMEType:  mimeType,
		Label:     label,
		Size:      int64(len(data)),
		CreatedMs: s.now().UnixMilli(),
	}
	a.FileName = a.ID + extensionFor(mimeType)

	path := s.Path(a)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return nil, fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	query := `INSERT INTO media_artifacts (id, kind, mime_type, file_name, label, size_bytes, created_at)
	          VALUES (:id, :kind, :mime_type, :file_name, :label, :size_bytes, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.WarnContext(ctx, "Failed to remove orphaned artifact file", "path", path, "error", rmErr)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to index artifact: %w", err)
	}

	s.logger.DebugContext(ctx, "Artifact stored", "id", a.ID, "kind", kind, "mime_type", mimeType, "size", a.Size)
	return a, nil
}

// Get looks up an artifact by id.
func (s *Store) Get(ctx context.Context, id string) (*Artifact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("media " + id + " not found")
	}

	var a Artifact
	query := `SELECT id, kind, mime_type, file_name, label, size_bytes, created_at
	          FROM media_artifacts WHERE id = ?`
	err := s.db.GetContext(ctx, &a, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, apperrors.NewNotFoundError("media " + id + " not found")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to get artifact %s: %w", id, err)
	}
	return &a, nil
}

// Path returns the on-disk location of an artifact.
func (s *Store) Path(a *Artifact) string {
	return filepath.Join(s.dir, filepath.Base(a.FileName))
}

// DeleteOlderThan removes artifacts created before cutoff, files first, and
// returns how many index rows were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	var expired []Artifact
	err = tx.SelectContext(ctx, &expired,
		`SELECT id, kind, mime_type, file_name, label, size_bytes, created_at
		 FROM media_artifacts WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired artifacts: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	for i := range expired {
		path := s.Path(&expired[i])
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "Failed to remove artifact file", "path", path, "error", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM media_artifacts WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired artifacts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit artifact cleanup: %w", err)
	}

	n, _ := res.RowsAffected()
	s.logger.InfoContext(ctx, "Expired artifacts removed", "count", n, "cutoff", cutoff)
	return int(n), nil
}

// RunSQLMaintenance executes VACUUM on the index.
func (s *Store) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}
	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}
