package domain

import (
	"context"
	"time"

	"example.com/footprint/internal/emissions"
)

// Activity is one persisted calculation. It is immutable after creation.
type Activity struct {
	ID            string
	OwnerID       string
	Quantities    emissions.Quantities
	TotalEmission float64
	CreatedAt     time.Time
}

// Cursor models the keyset pagination token for newest-first listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ActivityRepository captures persistence operations for activity records.
// An empty ownerID means the listing is not scoped to a user.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity) error
	ListRecent(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	ListAll(ctx context.Context, ownerID string) ([]Activity, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	ActivityRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}
