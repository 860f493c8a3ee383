package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type SpotStatus string

const (
	SPOT_FREE     SpotStatus = "FREE"
	SPOT_RESERVED SpotStatus = "RESERVED"
	SPOT_OCCUPIED SpotStatus = "OCCUPIED"
)

type ReservationStatus string

const (
	RESERVATION_ACTIVE    ReservationStatus = "active"
	RESERVATION_COMPLETED ReservationStatus = "completed"
	RESERVATION_CANCELED  ReservationStatus = "cancelled"
	RESERVATION_EXPIRED   ReservationStatus = "expired"
)

type CodeKind string

const (
	CODE_ENTRY CodeKind = "ENTRY"
	CODE_EXIT  CodeKind = "EXIT"
)

type CodeStatus string

const (
	CODE_ACTIVE      CodeStatus = "ACTIVE"
	CODE_USED        CodeStatus = "USED"
	CODE_EXPIRED     CodeStatus = "EXPIRED"
	CODE_INVALIDATED CodeStatus = "INVALIDATED"
)

type DeviceStatus string

const (
	DEVICE_ONLINE   DeviceStatus = "online"
	DEVICE_DEGRADED DeviceStatus = "degraded"
	DEVICE_OFFLINE  DeviceStatus = "offline"
)

type CommandStatus string

const (
	COMMAND_PENDING CommandStatus = "pending"
	COMMAND_SENT    CommandStatus = "sent"
)

// Stable reason codes returned to hardware and UI. Firmware and the
// dashboard map these to display messages; the engine never produces
// display text of its own.
const (
	REASON_NO_VEHICLE      = "no_vehicle"
	REASON_SPOTS_AVAILABLE = "spots_available"
	REASON_CODE_VALID      = "code_valid"
	REASON_INVALID_CODE    = "invalid_code"
	REASON_PARKING_FULL    = "parking_full"
	REASON_CODE_REQUIRED   = "code_required"
	REASON_VEHICLE_EXIT    = "vehicle_exit"
	REASON_FORCE_RELEASE   = "force_release"
)

type CreateSpotRequestBody struct {
	SpotNumber string `json:"spot_number" binding:"required,min=1,max=10"`
	Zone       string `json:"zone,omitempty"`
	Floor      int    `json:"floor,omitempty"`
	SensorID   string `json:"sensor_id,omitempty"`
}

type ReserveRequestBody struct {
	SpotID          string `json:"spot_id" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,reservableduration"`
	VehiclePlate    string `json:"vehicle_plate,omitempty"`
}

type ExtendRequestBody struct {
	AdditionalMinutes int `json:"additional_minutes" binding:"required,reservableduration"`
}

type SensorUpdateRequestBody struct {
	SpotID   string  `json:"spot_id" binding:"required"`
	Status   string  `json:"status" binding:"required,oneof=occupied free"`
	SensorID string  `json:"sensor_id,omitempty"`
	Distance float64 `json:"distance_cm,omitempty"`
}

type EntryAccessRequestBody struct {
	SensorPresence bool    `json:"sensor_presence"`
	AccessCode     *string `json:"access_code,omitempty"`
	BarrierID      string  `json:"barrier_id,omitempty"`
}

type ValidateCodeRequestBody struct {
	Code           string `json:"code" binding:"required,min=3,max=6"`
	SensorPresence bool   `json:"sensor_presence"`
	BarrierID      string `json:"barrier_id,omitempty"`
}

type GenerateCodeRequestBody struct {
	ReservationID string `json:"reservation_id" binding:"required"`
	Kind          string `json:"kind" binding:"required,oneof=ENTRY EXIT"`
}

type InvalidateCodeRequestBody struct {
	Code   string `json:"code" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

type ForceReleaseRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

type ExitRequestBody struct {
	SensorPresence bool   `json:"sensor_presence"`
	SpotID         string `json:"spot_id,omitempty"`
}

type BarrierOpenRequestBody struct {
	BarrierID      string  `json:"barrier_id" binding:"required,oneof=entry exit"`
	Reason         string  `json:"reason" binding:"required,oneof=auto_free code_valid manual"`
	Code           *string `json:"code,omitempty"`
	SensorPresence bool    `json:"sensor_presence"`
}

type BarrierCloseRequestBody struct {
	BarrierID string `json:"barrier_id" binding:"required,oneof=entry exit"`
}

type HeartbeatRequestBody struct {
	DeviceID        string          `json:"device_id" binding:"required"`
	DeviceType      string          `json:"device_type,omitempty"`
	FirmwareVersion string          `json:"firmware_version,omitempty"`
	UptimeSeconds   int64           `json:"uptime_seconds,omitempty"`
	FreeHeap        int64           `json:"free_heap,omitempty"`
	WifiRSSI        int             `json:"wifi_rssi,omitempty"`
	SensorStatus    map[string]bool `json:"sensor_status,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
}

type DeviceCommandRequestBody struct {
	Command string `json:"command" binding:"required"`
	Payload JSONB  `json:"payload,omitempty"`
}

type SpotURIParams struct {
	ID string `uri:"id" binding:"required"`
}

type ReservationURIParams struct {
	ID string `uri:"id" binding:"required"`
}

type StateChangeEvent struct {
	SpotID    string     `json:"spot_id"`
	Previous  SpotStatus `json:"previous"`
	New       SpotStatus `json:"new"`
	Cause     string     `json:"cause"`
	Timestamp time.Time  `json:"timestamp"`
}

type ParkingStatusResponse struct {
	TotalSpots int       `json:"total_spots"`
	Free       int       `json:"free"`
	Reserved   int       `json:"reserved"`
	Occupied   int       `json:"occupied"`
	Spots      any       `json:"spots,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
