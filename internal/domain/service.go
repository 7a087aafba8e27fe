// Package domain defines the business logic for the footprint service.
package domain

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/observability"
)

// HistoryDateLayout formats history dates as ISO calendar dates.
const HistoryDateLayout = "2006-01-02"

// Service orchestrates calculation and persistence workflows.
type Service struct {
	repo    ActivityRepository
	factors *emissions.FactorTable
	now     func() time.Time
	newID   func() string
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, factors *emissions.FactorTable) *Service {
	return &Service{
		repo:    repo,
		factors: factors,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return ulid.Make().String() },
	}
}

// Factors exposes the table the service calculates with.
func (s *Service) Factors() *emissions.FactorTable {
	return s.factors
}

// Calculation is the outcome of one submitted input.
type Calculation struct {
	Activity       Activity
	Recommendation string
	Tier           string
	Breakdown      []emissions.Contribution
}

// Estimate runs the calculator without persisting anything.
func (s *Service) Estimate(input map[string]any) Calculation {
	total := s.factors.Calculate(input)
	return Calculation{
		Activity: Activity{
			Quantities:    emissions.ExtractQuantities(input),
			TotalEmission: total,
		},
		Recommendation: emissions.Recommend(total),
		Tier:           emissions.Tier(total),
		Breakdown:      s.factors.Breakdown(input),
	}
}

// Record calculates the total for input and persists it for ownerID.
func (s *Service) Record(ctx context.Context, ownerID string, input map[string]any) (*Calculation, error) {
	calc := s.Estimate(input)
	calc.Activity.ID = s.newID()
	calc.Activity.OwnerID = ownerID
	calc.Activity.CreatedAt = s.now()

	if err := s.repo.Create(ctx, calc.Activity); err != nil {
		return nil, err
	}

	observability.RecordCalculation(calc.Tier, calc.Activity.TotalEmission)
	return &calc, nil
}

// Recent lists records newest first.
func (s *Service) Recent(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.repo.ListRecent(ctx, ownerID, cursor, limit)
}

// History holds parallel date and total sequences for charting, oldest first.
type History struct {
	Dates  []string  `json:"dates"`
	Totals []float64 `json:"emissions"`
}

// History returns every record for ownerID in chronological order.
func (s *Service) History(ctx context.Context, ownerID string) (History, error) {
	activities, err := s.repo.ListAll(ctx, ownerID)
	if err != nil {
		return History{}, err
	}

	h := History{
		Dates:  make([]string, 0, len(activities)),
		Totals: make([]float64, 0, len(activities)),
	}
	for _, a := range activities {
		h.Dates = append(h.Dates, a.CreatedAt.UTC().Format(HistoryDateLayout))
		h.Totals = append(h.Totals, a.TotalEmission)
	}
	return h, nil
}
