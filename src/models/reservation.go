package models

import (
	"aeropark/src/types"
	"time"

	"github.com/google/uuid"
)

// Reservation is the ledger entry for a booking. Spot holds the live
// state; this row survives cancellation, completion and expiry for
// billing and audit. A deleted spot orphans its rows, which listings
// filter out rather than deleting history.
type Reservation struct {
	ID              uuid.UUID               `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	SpotID          string                  `json:"spot_id,omitempty"`
	UserID          string                  `gorm:"index:idx_reservations_one_active,unique,where:status = 'active'" json:"user_id,omitempty"`
	UserEmail       string                  `json:"user_email,omitempty"`
	Start           time.Time               `json:"start,omitempty"`
	End             time.Time               `json:"end,omitempty"`
	DurationMinutes int                     `json:"duration_minutes,omitempty"`
	VehiclePlate    *string                 `json:"vehicle_plate,omitempty"`
	AmountDue       float32                 `json:"amount_due,omitempty"`
	Status          types.ReservationStatus `gorm:"default:'active'" json:"status,omitempty"`

	types.Timestamps
}
