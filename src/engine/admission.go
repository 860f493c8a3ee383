package engine

import (
	"aeropark/src/config"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"context"
	"errors"
)

// Decision is the structured grant/deny returned to barrier hardware.
// Business denials land here with a stable reason code; only
// infrastructure failures surface as errors.
type Decision struct {
	AccessGranted bool    `json:"access_granted"`
	Reason        string  `json:"reason"`
	SpotID        *string `json:"spot_id,omitempty"`
	IssuedTo      *string `json:"issued_to,omitempty"`
	FreeSpots     int     `json:"free_spots"`
	CodeRequired  bool    `json:"code_required,omitempty"`
	OpenSeconds   int     `json:"barrier_open_seconds,omitempty"`
}

func deny(reason string) Decision {
	return Decision{AccessGranted: false, Reason: reason}
}

// CheckEntryAccess is the two-factor gate: the barrier opens only when
// a vehicle is physically present and either free capacity exists or a
// valid entry code is consumed. The code path wins over the capacity
// path when both apply, so a reserved spot's code binds the vehicle to
// its spot.
func (e *Engine) CheckEntryAccess(ctx context.Context, present bool, code *string) (Decision, error) {
	if !present {
		return deny(types.REASON_NO_VEHICLE), nil
	}
	counts, err := e.spots.CountByStatus(ctx)
	if err != nil {
		return Decision{}, err
	}
	free := counts[types.SPOT_FREE]

	if code != nil && *code != "" {
		decision := e.validateAndConsume(ctx, *code, types.CODE_ENTRY)
		decision.FreeSpots = free
		return decision, nil
	}
	if free > 0 {
		return Decision{
			AccessGranted: true,
			Reason:        types.REASON_SPOTS_AVAILABLE,
			FreeSpots:     free,
			OpenSeconds:   config.BARRIER_OPEN_SECONDS,
		}, nil
	}
	d := deny(types.REASON_PARKING_FULL)
	d.CodeRequired = true
	return d, nil
}

// ValidateCode is the explicit code lane at the barrier keypad.
// Presence is still required; a replayed code with no vehicle in front
// of the sensor never opens anything.
func (e *Engine) ValidateCode(ctx context.Context, present bool, code string, kind types.CodeKind) (Decision, error) {
	if !present {
		return deny(types.REASON_NO_VEHICLE), nil
	}
	counts, err := e.spots.CountByStatus(ctx)
	if err != nil {
		return Decision{}, err
	}
	decision := e.validateAndConsume(ctx, code, kind)
	decision.FreeSpots = counts[types.SPOT_FREE]
	return decision, nil
}

// ProcessExit gates the exit barrier on presence alone. When the
// departing spot is known its sensor transition runs through the
// normal state machine so the free count stays honest.
func (e *Engine) ProcessExit(ctx context.Context, present bool, spotID string) (Decision, error) {
	if !present {
		return deny(types.REASON_NO_VEHICLE), nil
	}
	var resolved *string
	if spotID != "" {
		spot, err := e.SensorUpdate(ctx, spotID, false)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Decision{}, err
		}
		if err == nil {
			resolved = &spot.ID
		}
	}
	counts, err := e.spots.CountByStatus(ctx)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		AccessGranted: true,
		Reason:        types.REASON_VEHICLE_EXIT,
		SpotID:        resolved,
		FreeSpots:     counts[types.SPOT_FREE],
		OpenSeconds:   config.BARRIER_OPEN_SECONDS,
	}, nil
}

// validateAndConsume flips an ACTIVE code to USED exactly once. Every
// failure mode collapses into one invalid_code denial so the keypad
// cannot be used to probe which codes exist.
func (e *Engine) validateAndConsume(ctx context.Context, code string, kind types.CodeKind) Decision {
	ac, err := e.codes.Get(ctx, code)
	if err != nil {
		return deny(types.REASON_INVALID_CODE)
	}
	if ac.Kind != kind || !ac.Active(e.now()) {
		return deny(types.REASON_INVALID_CODE)
	}
	usedAt := e.now()
	if err := e.codes.UpdateStatus(ctx, ac.Code, types.CODE_ACTIVE, types.CODE_USED, &usedAt); err != nil {
		// lost the consume race or the sweep got there first
		return deny(types.REASON_INVALID_CODE)
	}
	return Decision{
		AccessGranted: true,
		Reason:        types.REASON_CODE_VALID,
		SpotID:        &ac.SpotID,
		IssuedTo:      &ac.IssuedTo,
		OpenSeconds:   config.BARRIER_OPEN_SECONDS,
	}
}

// ResolveCodeSpot reads a code without consuming it, for dashboards.
func (e *Engine) ResolveCodeSpot(ctx context.Context, code string) (*models.AccessCode, error) {
	return e.codes.Get(ctx, code)
}
