package models

import (
	"aeropark/src/types"

	"github.com/google/uuid"
)

// BarrierLog records every admission attempt, granted or denied, for
// operator review. One row per CheckEntryAccess / ProcessExit call.
type BarrierLog struct {
	ID              uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	BarrierID       string    `json:"barrier_id,omitempty"`
	DeviceID        string    `json:"device_id,omitempty"`
	VehiclePresence bool      `json:"vehicle_presence"`
	Code            *string   `json:"code,omitempty"`
	CodeValid       bool      `json:"code_valid"`
	AccessGranted   bool      `json:"access_granted"`
	Reason          string    `json:"reason,omitempty"`
	SpotID          *string   `json:"spot_id,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`

	types.Timestamps
}
