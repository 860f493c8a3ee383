package models

import (
	"aeropark/src/types"
	"time"
)

type AccessCode struct {
	Code          string           `gorm:"primarykey" json:"code"`
	SpotID        string           `json:"spot_id,omitempty"`
	ReservationID string           `json:"reservation_id,omitempty"`
	Kind          types.CodeKind   `json:"kind,omitempty"`
	IssuedTo      string           `json:"issued_to,omitempty"`
	IssuedToEmail string           `json:"issued_to_email,omitempty"`
	Status        types.CodeStatus `gorm:"default:'ACTIVE'" json:"status,omitempty"`
	ExpiresAt     time.Time        `json:"expires_at,omitempty"`
	UsedAt        *time.Time       `json:"used_at,omitempty"`

	types.Timestamps
}

func (c *AccessCode) Active(now time.Time) bool {
	return c.Status == types.CODE_ACTIVE && c.ExpiresAt.After(now)
}

func (c *AccessCode) RemainingMinutes(now time.Time) int {
	remaining := int(c.ExpiresAt.Sub(now).Minutes())
	if remaining < 0 {
		return 0
	}
	return remaining
}
