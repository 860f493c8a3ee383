package models

import (
	"aeropark/src/types"
	"time"
)

// Spot is the live, physical truth for one parking space. The engine
// is the only writer of Status and the reservation fields; Version
// backs the optimistic-concurrency check in the registry.
type Spot struct {
	ID         string           `gorm:"primarykey" json:"id"`
	SpotNumber string           `json:"spot_number,omitempty"`
	Zone       string           `gorm:"default:'General'" json:"zone,omitempty"`
	Floor      int              `gorm:"default:1" json:"floor,omitempty"`
	SensorID   string           `json:"sensor_id,omitempty"`
	Status     types.SpotStatus `gorm:"default:'FREE'" json:"status"`

	ReservedBy       *string    `json:"reserved_by,omitempty"`
	ReservedByEmail  *string    `json:"reserved_by_email,omitempty"`
	ReservationStart *time.Time `json:"reservation_start_time,omitempty"`
	ReservationEnd   *time.Time `json:"reservation_end_time,omitempty"`
	VehiclePlate     *string    `json:"vehicle_plate,omitempty"`
	OccupiedAt       *time.Time `json:"occupied_at,omitempty"`

	SensorPresent          bool `json:"sensor_present"`
	UnauthorizedOccupation bool `json:"unauthorized_occupation"`

	Version uint `json:"-"`

	types.Timestamps
}

// Expired reports whether the reservation window has passed at t.
// A spot with no window is never expired.
func (s *Spot) Expired(t time.Time) bool {
	return s.ReservationEnd != nil && !s.ReservationEnd.After(t)
}

// ClearReservation resets all reservation-derived fields. Status is
// left to the caller.
func (s *Spot) ClearReservation() {
	s.ReservedBy = nil
	s.ReservedByEmail = nil
	s.ReservationStart = nil
	s.ReservationEnd = nil
	s.VehiclePlate = nil
	s.OccupiedAt = nil
}
