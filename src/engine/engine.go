package engine

import (
	"aeropark/src/config"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Notifier receives state-change events after every successful spot
// transition. Delivery is the notifier's problem; the engine only
// emits.
type Notifier interface {
	SpotChanged(event types.StateChangeEvent)
}

type NopNotifier struct{}

func (NopNotifier) SpotChanged(types.StateChangeEvent) {}

// Engine is the sole writer of spot state, code status and the
// reservation ledger. Every mutation goes through the registry's
// atomic Apply so concurrent requests, sensor events and the sweep
// serialize per spot.
type Engine struct {
	spots  store.SpotRegistry
	codes  store.AccessCodeStore
	ledger store.ReservationLedger
	notify Notifier
	now    func() time.Time

	bmu      sync.Mutex
	barriers map[string]*barrierState
}

func New(stores store.Stores, notify Notifier) *Engine {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Engine{
		spots:  stores.Spots,
		codes:  stores.Codes,
		ledger: stores.Reservations,
		notify: notify,
		now:    time.Now,
		barriers: map[string]*barrierState{
			"entry": {Status: BARRIER_CLOSED},
			"exit":  {Status: BARRIER_CLOSED},
		},
	}
}

var std *Engine

func SetDefault(e *Engine) {
	std = e
}

func Default() *Engine {
	return std
}

// transition wraps the registry Apply with a single retry on a lost
// optimistic-concurrency race and emits an event when the status
// actually changed. Guard failures inside fn propagate unretried.
func (e *Engine) transition(ctx context.Context, spotID, cause string, fn func(spot *models.Spot) error) (*models.Spot, error) {
	var prev types.SpotStatus
	wrapped := func(spot *models.Spot) error {
		prev = spot.Status
		return fn(spot)
	}
	spot, err := e.spots.Apply(ctx, spotID, wrapped)
	if errors.Is(err, store.ErrConcurrentModification) {
		spot, err = e.spots.Apply(ctx, spotID, wrapped)
	}
	if err != nil {
		return nil, err
	}
	if spot.Status != prev {
		e.notify.SpotChanged(types.StateChangeEvent{
			SpotID:    spot.ID,
			Previous:  prev,
			New:       spot.Status,
			Cause:     cause,
			Timestamp: e.now(),
		})
	}
	return spot, nil
}

// NormalizeDuration clamps minutes into the allowed window and rounds
// up to the next booking step.
func NormalizeDuration(minutes int) int {
	if minutes < config.MIN_RESERVATION_MINUTES {
		minutes = config.MIN_RESERVATION_MINUTES
	}
	if minutes > config.MAX_RESERVATION_MINUTES {
		minutes = config.MAX_RESERVATION_MINUTES
	}
	if rem := minutes % config.RESERVATION_STEP_MINUTES; rem != 0 {
		minutes += config.RESERVATION_STEP_MINUTES - rem
	}
	return minutes
}

// Reserve takes a FREE spot for the user and opens a ledger entry.
// One active reservation per user.
func (e *Engine) Reserve(ctx context.Context, userID, userEmail string, body types.ReserveRequestBody) (*models.Reservation, *models.Spot, error) {
	if _, err := e.ledger.ActiveByUser(ctx, userID); err == nil {
		return nil, nil, ErrActiveReservationExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}

	minutes := NormalizeDuration(body.DurationMinutes)
	now := e.now()
	end := now.Add(time.Duration(minutes) * time.Minute)

	spot, err := e.transition(ctx, body.SpotID, "reservation", func(spot *models.Spot) error {
		if spot.Status != types.SPOT_FREE {
			return ErrSpotUnavailable
		}
		spot.Status = types.SPOT_RESERVED
		spot.ReservedBy = &userID
		spot.ReservedByEmail = &userEmail
		spot.ReservationStart = &now
		spot.ReservationEnd = &end
		spot.UnauthorizedOccupation = false
		if body.VehiclePlate != "" {
			plate := body.VehiclePlate
			spot.VehiclePlate = &plate
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	reservation := &models.Reservation{
		SpotID:          spot.ID,
		UserID:          userID,
		UserEmail:       userEmail,
		Start:           now,
		End:             end,
		DurationMinutes: minutes,
		AmountDue:       float32(minutes) / 60 * config.HOURLY_RATE,
		Status:          types.RESERVATION_ACTIVE,
	}
	if body.VehiclePlate != "" {
		plate := body.VehiclePlate
		reservation.VehiclePlate = &plate
	}
	if err := e.ledger.Create(ctx, reservation); err != nil {
		e.releaseSpot(ctx, spot.ID, "reservation_rollback")
		return nil, nil, err
	}

	// Re-check after the write: two racing Reserve calls on different
	// spots can both pass the ActiveByUser pre-check. Whoever sees a
	// competing ACTIVE row yields its own, so at most one survives.
	if dup, err := e.hasOtherActiveReservation(ctx, userID, reservation.ID.String()); err != nil {
		log.Printf("could not re-check reservations for %s: %s", userID, err)
	} else if dup {
		if err := e.ledger.UpdateStatus(ctx, reservation.ID.String(), types.RESERVATION_CANCELED); err != nil {
			log.Printf("could not yield duplicate reservation %s: %s", reservation.ID, err)
		}
		e.releaseSpot(ctx, spot.ID, "reservation_rollback")
		return nil, nil, ErrActiveReservationExists
	}
	return reservation, spot, nil
}

// releaseSpot frees a spot held during a Reserve that did not go
// through, so the registry and ledger do not disagree.
func (e *Engine) releaseSpot(ctx context.Context, spotID, cause string) {
	if _, err := e.transition(ctx, spotID, cause, func(spot *models.Spot) error {
		spot.ClearReservation()
		spot.Status = types.SPOT_FREE
		return nil
	}); err != nil {
		log.Printf("could not roll back spot %s: %s", spotID, err)
	}
}

// hasOtherActiveReservation reports whether the user holds an ACTIVE
// reservation other than excludeID.
func (e *Engine) hasOtherActiveReservation(ctx context.Context, userID, excludeID string) (bool, error) {
	all, err := e.ledger.List(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range all {
		if r.UserID == userID && r.Status == types.RESERVATION_ACTIVE && r.ID.String() != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// Cancel closes the reservation and frees its spot. Cancelling an
// already-cancelled reservation succeeds without effect.
func (e *Engine) Cancel(ctx context.Context, userID, reservationID string) error {
	reservation, err := e.ledger.Get(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.UserID != userID {
		return ErrForbidden
	}
	if reservation.Status == types.RESERVATION_CANCELED {
		return nil
	}
	if reservation.Status != types.RESERVATION_ACTIVE {
		return ErrReservationNotActive
	}

	_, err = e.transition(ctx, reservation.SpotID, "cancellation", func(spot *models.Spot) error {
		if spot.ReservedBy == nil || *spot.ReservedBy != userID {
			return nil
		}
		spot.ClearReservation()
		spot.Status = types.SPOT_FREE
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return e.ledger.UpdateStatus(ctx, reservationID, types.RESERVATION_CANCELED)
}

// Extend pushes the reservation window out by additionalMinutes,
// capped so the total stays within the maximum booking length.
func (e *Engine) Extend(ctx context.Context, userID, reservationID string, additionalMinutes int) (*models.Reservation, error) {
	reservation, err := e.ledger.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.UserID != userID {
		return nil, ErrForbidden
	}
	if reservation.Status != types.RESERVATION_ACTIVE {
		return nil, ErrReservationNotActive
	}

	additionalMinutes = NormalizeDuration(additionalMinutes)
	total := reservation.DurationMinutes + additionalMinutes
	if total > config.MAX_RESERVATION_MINUTES {
		total = config.MAX_RESERVATION_MINUTES
		additionalMinutes = total - reservation.DurationMinutes
	}
	if additionalMinutes <= 0 {
		return reservation, nil
	}
	end := reservation.End.Add(time.Duration(additionalMinutes) * time.Minute)

	_, err = e.transition(ctx, reservation.SpotID, "extension", func(spot *models.Spot) error {
		if spot.ReservedBy == nil || *spot.ReservedBy != userID {
			return ErrForbidden
		}
		spot.ReservationEnd = &end
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.ledger.UpdateEnd(ctx, reservationID, end, total); err != nil {
		return nil, err
	}
	reservation.End = end
	reservation.DurationMinutes = total
	reservation.AmountDue = float32(total) / 60 * config.HOURLY_RATE
	return reservation, nil
}

// SensorUpdate reconciles a presence reading with the current spot
// state. Readings that match the current state only refresh the raw
// presence field and emit nothing.
func (e *Engine) SensorUpdate(ctx context.Context, spotID string, present bool) (*models.Spot, error) {
	now := e.now()
	var freedAfterOccupancy, freedAfterExpiry bool

	spot, err := e.transition(ctx, spotID, "sensor", func(spot *models.Spot) error {
		freedAfterOccupancy, freedAfterExpiry = false, false
		spot.SensorPresent = present
		if present {
			switch spot.Status {
			case types.SPOT_RESERVED:
				// arrival keeps the original window; time runs from
				// reservation, not from showing up
				spot.Status = types.SPOT_OCCUPIED
				spot.OccupiedAt = &now
			case types.SPOT_FREE:
				spot.Status = types.SPOT_OCCUPIED
				spot.UnauthorizedOccupation = true
			}
			return nil
		}
		switch spot.Status {
		case types.SPOT_OCCUPIED:
			if spot.ReservationEnd != nil && now.Before(*spot.ReservationEnd) {
				// left early with paid time remaining; hold the spot
				spot.Status = types.SPOT_RESERVED
				spot.OccupiedAt = nil
			} else {
				freedAfterOccupancy = spot.ReservedBy != nil
				spot.ClearReservation()
				spot.UnauthorizedOccupation = false
				spot.Status = types.SPOT_FREE
			}
		case types.SPOT_RESERVED:
			if spot.Expired(now) {
				freedAfterExpiry = true
				spot.ClearReservation()
				spot.Status = types.SPOT_FREE
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if freedAfterOccupancy {
		e.closeActiveReservation(ctx, spotID, types.RESERVATION_COMPLETED)
	} else if freedAfterExpiry {
		e.closeActiveReservation(ctx, spotID, types.RESERVATION_EXPIRED)
	}
	return spot, nil
}

// ForceRelease is the operator override. It frees the spot regardless
// of state and cancels any backing reservation.
func (e *Engine) ForceRelease(ctx context.Context, spotID string) (previous, current types.SpotStatus, err error) {
	var prev types.SpotStatus
	spot, err := e.transition(ctx, spotID, "force_release", func(spot *models.Spot) error {
		prev = spot.Status
		spot.ClearReservation()
		spot.UnauthorizedOccupation = false
		spot.Status = types.SPOT_FREE
		return nil
	})
	if err != nil {
		return "", "", err
	}
	e.closeActiveReservation(ctx, spotID, types.RESERVATION_CANCELED)
	return prev, spot.Status, nil
}

func (e *Engine) closeActiveReservation(ctx context.Context, spotID string, status types.ReservationStatus) {
	reservation, err := e.ledger.ActiveBySpot(ctx, spotID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("could not resolve active reservation for spot %s: %s", spotID, err)
		}
		return
	}
	if err := e.ledger.UpdateStatus(ctx, reservation.ID.String(), status); err != nil {
		log.Printf("could not close reservation %s: %s", reservation.ID, err)
	}
}
