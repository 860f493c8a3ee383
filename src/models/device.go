package models

import (
	"aeropark/src/types"
	"time"

	"github.com/google/uuid"
)

type Device struct {
	DeviceID        string             `gorm:"primarykey" json:"device_id"`
	DeviceType      string             `json:"device_type,omitempty"`
	Status          types.DeviceStatus `gorm:"default:'online'" json:"status,omitempty"`
	FirmwareVersion string             `json:"firmware_version,omitempty"`
	UptimeSeconds   int64              `json:"uptime_seconds,omitempty"`
	FreeHeap        int64              `json:"free_heap,omitempty"`
	WifiRSSI        int                `json:"wifi_rssi,omitempty"`
	SensorStatus    types.JSONB        `gorm:"type:jsonb" json:"sensor_status,omitempty"`
	LastError       string             `json:"last_error,omitempty"`
	IPAddress       string             `json:"ip_address,omitempty"`
	LastSeen        *time.Time         `json:"last_seen,omitempty"`
	TotalHeartbeats int64              `json:"total_heartbeats,omitempty"`

	Commands []DeviceCommand `gorm:"foreignKey:device_id" json:"commands,omitempty"`

	types.Timestamps
}

type DeviceCommand struct {
	ID       uuid.UUID           `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	DeviceID string              `json:"device_id,omitempty"`
	Command  string              `json:"command,omitempty"`
	Payload  types.JSONB         `gorm:"type:jsonb" json:"payload,omitempty"`
	Status   types.CommandStatus `gorm:"default:'pending'" json:"status,omitempty"`
	SentAt   *time.Time          `json:"sent_at,omitempty"`

	types.Timestamps
}
