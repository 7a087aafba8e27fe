package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/footprint/internal/emissions"
)

type fakeActivityRepo struct {
	created []Activity
	err     error
}

func (f *fakeActivityRepo) Create(ctx context.Context, activity Activity) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, activity)
	return nil
}

func (f *fakeActivityRepo) ListRecent(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	out := make([]Activity, 0, limit)
	for i := len(f.created) - 1; i >= 0 && len(out) < limit; i-- {
		if ownerID == "" || f.created[i].OwnerID == ownerID {
			out = append(out, f.created[i])
		}
	}
	return out, nil, f.err
}

func (f *fakeActivityRepo) ListAll(ctx context.Context, ownerID string) ([]Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Activity, 0, len(f.created))
	for _, a := range f.created {
		if ownerID == "" || a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestService(repo ActivityRepository) *Service {
	svc := NewService(repo, emissions.DefaultFactors())
	base := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	var n int
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * 24 * time.Hour)
	}
	svc.newID = func() string { return fmt.Sprintf("act-%02d", n) }
	return svc
}

func TestRecordPersistsCalculation(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := newTestService(repo)

	calc, err := svc.Record(context.Background(), "user-1", map[string]any{"car": "100", "bus": "0", "flight": "x"})
	require.NoError(t, err)

	require.Equal(t, 21.0, calc.Activity.TotalEmission)
	require.Equal(t, emissions.RecommendationLow, calc.Recommendation)
	require.Equal(t, emissions.TierLow, calc.Tier)
	require.Len(t, calc.Breakdown, len(emissions.Categories))

	require.Len(t, repo.created, 1)
	stored := repo.created[0]
	require.Equal(t, "user-1", stored.OwnerID)
	require.Equal(t, 100.0, stored.Quantities.Car)
	require.Zero(t, stored.Quantities.Flight)
	require.NotEmpty(t, stored.ID)
	require.Equal(t, time.UTC, stored.CreatedAt.Location())
}

func TestRecordSurfacesStorageFailure(t *testing.T) {
	boom := errors.New("database is locked")
	svc := newTestService(&fakeActivityRepo{err: boom})

	_, err := svc.Record(context.Background(), "", map[string]any{"flight": 500})
	require.ErrorIs(t, err, boom)
}

func TestEstimateDoesNotPersist(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := newTestService(repo)

	calc := svc.Estimate(map[string]any{"flight": 500})
	require.Equal(t, 125.0, calc.Activity.TotalEmission)
	require.Equal(t, emissions.TierHigh, calc.Tier)
	require.Empty(t, repo.created)
}

func TestRecentDefaultsLimit(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := svc.Record(ctx, "user-1", map[string]any{"car": i})
		require.NoError(t, err)
	}

	items, _, err := svc.Recent(ctx, "user-1", nil, 0)
	require.NoError(t, err)
	require.Len(t, items, 5)
	require.Equal(t, repo.created[6].ID, items[0].ID)
}

func TestHistoryReturnsParallelSequences(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, "user-1", map[string]any{"car": 100})
	require.NoError(t, err)
	_, err = svc.Record(ctx, "user-2", map[string]any{"gas": 1})
	require.NoError(t, err)
	_, err = svc.Record(ctx, "user-1", map[string]any{"flight": 500})
	require.NoError(t, err)

	h, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"2025-03-02", "2025-03-04"}, h.Dates)
	require.Equal(t, []float64{21.0, 125.0}, h.Totals)
}
