package engine

import (
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"context"
	"errors"
	"log"
)

// RunExpirySweep is the backstop for reservations and codes that never
// see a triggering event. It expires stale ACTIVE codes and frees
// RESERVED spots whose window has passed, closing their ledger rows as
// expired. Occupied spots are left alone; a car is still in them.
func (e *Engine) RunExpirySweep(ctx context.Context) (codesExpired, spotsFreed int, err error) {
	now := e.now()

	stale, err := e.codes.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	for _, code := range stale {
		if err := e.codes.UpdateStatus(ctx, code.Code, types.CODE_ACTIVE, types.CODE_EXPIRED, nil); err != nil {
			if errors.Is(err, store.ErrCodeNotActive) {
				continue
			}
			log.Printf("sweep: could not expire code %s: %s", code.Code, err)
			continue
		}
		codesExpired++
	}

	spots, err := e.spots.List(ctx)
	if err != nil {
		return codesExpired, 0, err
	}
	for _, spot := range spots {
		if spot.Status != types.SPOT_RESERVED || !spot.Expired(now) {
			continue
		}
		// freed is decided inside fn against fresh state; the listing
		// above is only a candidate scan and may be stale by the time
		// Apply runs.
		freed := false
		_, err := e.transition(ctx, spot.ID, "expiry_sweep", func(spot *models.Spot) error {
			freed = false
			if spot.Status != types.SPOT_RESERVED || !spot.Expired(now) {
				return nil
			}
			spot.ClearReservation()
			spot.Status = types.SPOT_FREE
			freed = true
			return nil
		})
		if err != nil {
			log.Printf("sweep: could not free spot %s: %s", spot.ID, err)
			continue
		}
		if !freed {
			continue
		}
		e.closeActiveReservation(ctx, spot.ID, types.RESERVATION_EXPIRED)
		spotsFreed++
	}
	return codesExpired, spotsFreed, nil
}
