package outbox

import (
	"time"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
)

// EventFootprintRecorded is emitted once per persisted activity record.
const EventFootprintRecorded = "footprint.recorded"

// FootprintRecorded is the payload of EventFootprintRecorded.
type FootprintRecorded struct {
	ActivityID     string             `json:"activity_id"`
	OwnerID        string             `json:"owner_id,omitempty"`
	Quantities     map[string]float64 `json:"quantities"`
	TotalEmission  float64            `json:"total_emission_kgCO2"`
	Tier           string             `json:"tier"`
	RecordedAt     time.Time          `json:"recorded_at"`
	PayloadVersion string             `json:"version"`
}

// NewFootprintRecorded builds the event payload for an activity.
func NewFootprintRecorded(a domain.Activity) FootprintRecorded {
	quantities := make(map[string]float64, len(emissions.Categories))
	for _, category := range emissions.Categories {
		quantities[category] = a.Quantities.Get(category)
	}
	return FootprintRecorded{
		ActivityID:     a.ID,
		OwnerID:        a.OwnerID,
		Quantities:     quantities,
		TotalEmission:  a.TotalEmission,
		Tier:           emissions.Tier(a.TotalEmission),
		RecordedAt:     a.CreatedAt.UTC(),
		PayloadVersion: "v1",
	}
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	PartitionKeyFn func(domain.Activity) string
}

// Catalog maps event types to their routing metadata.
var Catalog = map[string]EventMetadata{
	EventFootprintRecorded: {
		Topic: "footprint_events",
		PartitionKeyFn: func(a domain.Activity) string {
			if a.OwnerID != "" {
				return a.OwnerID
			}
			return a.ID
		},
	},
}
