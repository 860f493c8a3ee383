package store

import (
	"aeropark/src/models"
	"aeropark/src/types"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMemorySpotRegistryApply(t *testing.T) {
	ctx := context.Background()
	reg := NewMemorySpotRegistry()
	assert.NoError(t, reg.Create(ctx, &models.Spot{ID: "a1", SpotNumber: "A1", Status: types.SPOT_FREE}))

	spot, err := reg.Apply(ctx, "a1", func(s *models.Spot) error {
		s.Status = types.SPOT_RESERVED
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, types.SPOT_RESERVED, spot.Status)
	assert.Equal(t, uint(1), spot.Version)

	_, err = reg.Apply(ctx, "nope", func(s *models.Spot) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySpotRegistryApplyConcurrent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemorySpotRegistry()
	assert.NoError(t, reg.Create(ctx, &models.Spot{ID: "a1", Status: types.SPOT_FREE}))

	var wg sync.WaitGroup
	granted := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		user := string(rune('a' + i))
		go func() {
			defer wg.Done()
			_, err := reg.Apply(ctx, "a1", func(s *models.Spot) error {
				if s.Status != types.SPOT_FREE {
					return ErrNotFound
				}
				s.Status = types.SPOT_RESERVED
				s.ReservedBy = &user
				return nil
			})
			if err == nil {
				granted <- user
			}
		}()
	}
	wg.Wait()
	close(granted)

	var winners []string
	for w := range granted {
		winners = append(winners, w)
	}
	assert.Len(t, winners, 1)

	spot, err := reg.Get(ctx, "a1")
	assert.NoError(t, err)
	assert.Equal(t, winners[0], *spot.ReservedBy)
	assert.Equal(t, uint(1), spot.Version)
}

func TestMemoryAccessCodeStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAccessCodeStore()
	now := time.Now()

	code := &models.AccessCode{
		Code:      "A7K",
		SpotID:    "a1",
		Kind:      types.CODE_ENTRY,
		Status:    types.CODE_ACTIVE,
		ExpiresAt: now.Add(15 * time.Minute),
	}
	assert.NoError(t, s.Create(ctx, code))
	assert.ErrorIs(t, s.Create(ctx, &models.AccessCode{Code: "A7K", Status: types.CODE_ACTIVE}), ErrDuplicateCode)

	active, err := s.ActiveBySpotAndKind(ctx, "a1", types.CODE_ENTRY)
	assert.NoError(t, err)
	assert.Equal(t, "A7K", active.Code)
	_, err = s.ActiveBySpotAndKind(ctx, "a1", types.CODE_EXIT)
	assert.ErrorIs(t, err, ErrNotFound)

	usedAt := now
	assert.NoError(t, s.UpdateStatus(ctx, "A7K", types.CODE_ACTIVE, types.CODE_USED, &usedAt))
	// second consume loses the race
	assert.ErrorIs(t, s.UpdateStatus(ctx, "A7K", types.CODE_ACTIVE, types.CODE_USED, &usedAt), ErrCodeNotActive)

	got, err := s.Get(ctx, "A7K")
	assert.NoError(t, err)
	assert.Equal(t, types.CODE_USED, got.Status)
	assert.NotNil(t, got.UsedAt)
}

func TestMemoryAccessCodeStoreListExpiredActive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAccessCodeStore()
	now := time.Now()

	assert.NoError(t, s.Create(ctx, &models.AccessCode{Code: "OLD", Status: types.CODE_ACTIVE, ExpiresAt: now.Add(-time.Minute)}))
	assert.NoError(t, s.Create(ctx, &models.AccessCode{Code: "NEW", Status: types.CODE_ACTIVE, ExpiresAt: now.Add(time.Minute)}))
	assert.NoError(t, s.Create(ctx, &models.AccessCode{Code: "GON", Status: types.CODE_USED, ExpiresAt: now.Add(-time.Minute)}))

	expired, err := s.ListExpiredActive(ctx, now)
	assert.NoError(t, err)
	assert.Len(t, expired, 1)
	assert.Equal(t, "OLD", expired[0].Code)
}

func TestMemoryReservationLedger(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores()
	ledger := stores.Reservations

	assert.NoError(t, stores.Spots.Create(ctx, &models.Spot{ID: "a1", Status: types.SPOT_RESERVED}))

	res := &models.Reservation{
		SpotID:          "a1",
		UserID:          "u-1",
		Start:           time.Now(),
		End:             time.Now().Add(time.Hour),
		DurationMinutes: 60,
		Status:          types.RESERVATION_ACTIVE,
	}
	res.ID = uuid.New()
	assert.NoError(t, ledger.Create(ctx, res))

	active, err := ledger.ActiveByUser(ctx, "u-1")
	assert.NoError(t, err)
	assert.Equal(t, res.ID, active.ID)

	bySpot, err := ledger.ActiveBySpot(ctx, "a1")
	assert.NoError(t, err)
	assert.Equal(t, res.ID, bySpot.ID)

	assert.NoError(t, ledger.UpdateStatus(ctx, res.ID.String(), types.RESERVATION_COMPLETED))
	_, err = ledger.ActiveByUser(ctx, "u-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// listings drop rows whose spot was deleted
	all, err := ledger.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)
	assert.NoError(t, stores.Spots.Delete(ctx, "a1"))
	all, err = ledger.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, all)
}
