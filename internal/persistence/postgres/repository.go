// Package postgres provides Postgres-backed persistence for activities, users and outbox events.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/observability"
	"example.com/footprint/internal/outbox"
	"example.com/footprint/internal/persistence"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	migrations, err := persistence.LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := r.pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("exec migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const activityColumns = `id, owner_id, car, bus, flight, electricity, gas, total_emission, created_at`

// Create persists the activity and records its outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, a domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID,
		nullIfEmpty(a.OwnerID),
		a.Quantities.Car,
		a.Quantities.Bus,
		a.Quantities.Flight,
		a.Quantities.Electricity,
		a.Quantities.Gas,
		a.TotalEmission,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	if err = insertOutbox(ctx, tx, a, outbox.EventFootprintRecorded, outbox.NewFootprintRecorded(a)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(a.CreatedAt)
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, a domain.Activity, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := outbox.Catalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		a.ID,
		eventType,
		meta.Topic,
		meta.PartitionKeyFn(a),
		body,
		fmt.Sprintf("%s:%s", a.ID, eventType),
	)
	return err
}

// ListRecent returns activities newest first, continuing after cursor when given.
func (r *Repository) ListRecent(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	var (
		where []string
		args  []any
	)
	if ownerID != "" {
		args = append(args, ownerID)
		where = append(where, "owner_id = $"+strconv.Itoa(len(args)))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + activityColumns + ` FROM activities`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

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
		query += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return r.queryActivities(ctx, query, args...)
}

func (r *Repository) queryActivities(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		var (
			a     domain.Activity
			owner *string
		)
		if err := rows.Scan(&a.ID, &owner, &a.Quantities.Car, &a.Quantities.Bus, &a.Quantities.Flight,
			&a.Quantities.Electricity, &a.Quantities.Gas, &a.TotalEmission, &a.CreatedAt); err != nil {
			return nil, err
		}
		if owner != nil {
			a.OwnerID = *owner
		}
		a.CreatedAt = a.CreatedAt.UTC()
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateUser inserts a user, mapping unique violations to domain.ErrDuplicateIdentity.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByEmail looks a user up by email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(ctx, `email = $1`, email)
}

// FindUserByUsername looks a user up by username.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findUser(ctx, `username = $1`, username)
}

// GetUser looks a user up by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.findUser(ctx, `id = $1`, id)
}

func (r *Repository) findUser(ctx context.Context, predicate string, arg any) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE `+predicate, arg)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
