package store

import (
	"aeropark/src/models"
	"aeropark/src/types"
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrDuplicateCode          = errors.New("an active code with this value already exists")
	ErrCodeNotActive          = errors.New("code is not active")
)

// SpotRegistry is the authoritative store of live spot state. Apply is
// the only mutation path: it runs fn against a fresh read of the spot
// and persists the result under an optimistic per-spot version check,
// returning ErrConcurrentModification when it loses a race. Callers
// retry against fresh state rather than clobbering it.
type SpotRegistry interface {
	Get(ctx context.Context, id string) (*models.Spot, error)
	List(ctx context.Context) ([]models.Spot, error)
	CountByStatus(ctx context.Context) (map[types.SpotStatus]int, error)
	Create(ctx context.Context, spot *models.Spot) error
	Delete(ctx context.Context, id string) error
	Apply(ctx context.Context, id string, fn func(spot *models.Spot) error) (*models.Spot, error)
}

// AccessCodeStore holds issued codes. UpdateStatus is a compare-and-set
// on the status column so a code can be consumed at most once.
type AccessCodeStore interface {
	Get(ctx context.Context, code string) (*models.AccessCode, error)
	ActiveBySpotAndKind(ctx context.Context, spotID string, kind types.CodeKind) (*models.AccessCode, error)
	List(ctx context.Context, status *types.CodeStatus) ([]models.AccessCode, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]models.AccessCode, error)
	Create(ctx context.Context, code *models.AccessCode) error
	UpdateStatus(ctx context.Context, code string, from, to types.CodeStatus, usedAt *time.Time) error
}

// ReservationLedger is the historical record, decoupled from live spot
// state. Rows are never deleted; status transitions close them out.
type ReservationLedger interface {
	Get(ctx context.Context, id string) (*models.Reservation, error)
	List(ctx context.Context) ([]models.Reservation, error)
	ActiveByUser(ctx context.Context, userID string) (*models.Reservation, error)
	ActiveBySpot(ctx context.Context, spotID string) (*models.Reservation, error)
	Create(ctx context.Context, r *models.Reservation) error
	UpdateStatus(ctx context.Context, id string, status types.ReservationStatus) error
	UpdateEnd(ctx context.Context, id string, end time.Time, durationMinutes int) error
}

// Stores bundles the three engine-owned stores for injection.
type Stores struct {
	Spots        SpotRegistry
	Codes        AccessCodeStore
	Reservations ReservationLedger
}
