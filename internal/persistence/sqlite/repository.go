// Package sqlite provides a single-file SQLite store for activities and users.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/observability"
	"example.com/footprint/internal/persistence"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository provides SQLite-backed persistence for activities and users.
type Repository struct {
	db *sql.DB
}

var _ domain.Store = (*Repository)(nil)

// Open creates the database file if needed, applies pragmas and migrations.
func Open(ctx context.Context, path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers; SQLite allows only one at a time anyway.
	db.SetMaxOpenConns(1)

	repo, err := NewRepository(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps an open database handle and migrates it.
func NewRepository(ctx context.Context, db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	for _, stmt := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	r := &Repository{db: db}
	if err := r.Migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	migrations, err := persistence.LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := r.db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("exec migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const activityColumns = `id, owner_id, car, bus, flight, electricity, gas, total_emission, created_at`

// Create inserts an activity record.
func (r *Repository) Create(ctx context.Context, a domain.Activity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID,
		nullIfEmpty(a.OwnerID),
		a.Quantities.Car,
		a.Quantities.Bus,
		a.Quantities.Flight,
		a.Quantities.Electricity,
		a.Quantities.Gas,
		a.TotalEmission,
		a.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	observability.RecordActivityPersisted(a.CreatedAt)
	return nil
}

// ListRecent returns activities newest first, continuing after cursor when given.
func (r *Repository) ListRecent(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	var (
		where []string
		args  []any
	)
	if ownerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, ownerID)
	}
	if cursor != nil {
		where = append(where, "(created_at, id) < (?, ?)")
		args = append(args, cursor.CreatedAt.UTC().UnixNano(), cursor.ID)
	}

	query := `SELECT ` + activityColumns + ` FROM activities`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	results, err := r.queryActivities(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	return results, persistence.NextCursor(results, limit), nil
}

// ListAll returns every activity oldest first.
func (r *Repository) ListAll(ctx context.Context, ownerID string) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return r.queryActivities(ctx, query, args...)
}

func (r *Repository) queryActivities(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		var (
			a       domain.Activity
			owner   sql.NullString
			created int64
		)
		if err := rows.Scan(&a.ID, &owner, &a.Quantities.Car, &a.Quantities.Bus, &a.Quantities.Flight,
			&a.Quantities.Electricity, &a.Quantities.Gas, &a.TotalEmission, &created); err != nil {
			return nil, err
		}
		a.OwnerID = owner.String
		a.CreatedAt = time.Unix(0, created).UTC()
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateUser inserts a user, mapping unique violations to domain.ErrDuplicateIdentity.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByEmail looks a user up by email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(ctx, `email = ?`, email)
}

// FindUserByUsername looks a user up by username.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findUser(ctx, `username = ?`, username)
}

// GetUser looks a user up by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.findUser(ctx, `id = ?`, id)
}

func (r *Repository) findUser(ctx context.Context, predicate string, arg any) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE `+predicate, arg)

	var (
		u       domain.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
