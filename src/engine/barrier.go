package engine

import (
	"aeropark/src/config"
	"aeropark/src/types"
	"context"
	"fmt"
	"time"
)

const (
	BARRIER_OPEN   = "open"
	BARRIER_CLOSED = "closed"
)

// barrierState is process-local. The controller re-syncs on every
// heartbeat, so a restart losing the open/closed flag is harmless.
type barrierState struct {
	Status         string
	LastAction     string
	LastActionTime *time.Time
}

type BarrierStatus struct {
	BarrierID       string     `json:"barrier_id"`
	Status          string     `json:"status"`
	LastAction      *string    `json:"last_action"`
	LastActionTime  *time.Time `json:"last_action_time"`
	FreeSpots       int        `json:"parking_available_spots"`
	TotalSpots      int        `json:"parking_total_spots"`
	AutoOpenAllowed bool       `json:"auto_open_allowed"`
}

type BarrierAction struct {
	Success     bool   `json:"success"`
	BarrierID   string `json:"barrier_id"`
	Action      string `json:"action"`
	Message     string `json:"message"`
	OpenSeconds int    `json:"open_duration_seconds"`
}

func (e *Engine) barrier(id string) *barrierState {
	e.bmu.Lock()
	defer e.bmu.Unlock()
	state, ok := e.barriers[id]
	if !ok {
		state = &barrierState{Status: BARRIER_CLOSED}
		e.barriers[id] = state
	}
	return state
}

// BarrierStatus combines the local barrier flag with the live free
// count so the controller can decide whether auto-open is allowed
// before a vehicle even hits the sensor.
func (e *Engine) BarrierStatus(ctx context.Context, barrierID string) (BarrierStatus, error) {
	counts, err := e.spots.CountByStatus(ctx)
	if err != nil {
		return BarrierStatus{}, err
	}
	free := counts[types.SPOT_FREE]
	total := counts[types.SPOT_FREE] + counts[types.SPOT_RESERVED] + counts[types.SPOT_OCCUPIED]

	e.bmu.Lock()
	defer e.bmu.Unlock()
	state, ok := e.barriers[barrierID]
	if !ok {
		state = e.barriers["entry"]
	}
	status := BarrierStatus{
		BarrierID:       barrierID,
		Status:          state.Status,
		LastActionTime:  state.LastActionTime,
		FreeSpots:       free,
		TotalSpots:      total,
		AutoOpenAllowed: free > 0,
	}
	if state.LastAction != "" {
		action := state.LastAction
		status.LastAction = &action
	}
	return status, nil
}

func (e *Engine) OpenBarrier(barrierID, reason string) BarrierAction {
	now := e.now()
	state := e.barrier(barrierID)
	e.bmu.Lock()
	state.Status = BARRIER_OPEN
	state.LastAction = "open"
	state.LastActionTime = &now
	e.bmu.Unlock()
	return BarrierAction{
		Success:     true,
		BarrierID:   barrierID,
		Action:      "open",
		Message:     fmt.Sprintf("barrier %s opened: %s", barrierID, reason),
		OpenSeconds: config.BARRIER_OPEN_SECONDS,
	}
}

// CloseBarrier is normally called by the controller after the open
// delay elapsed.
func (e *Engine) CloseBarrier(barrierID string) BarrierAction {
	now := e.now()
	state := e.barrier(barrierID)
	e.bmu.Lock()
	state.Status = BARRIER_CLOSED
	state.LastAction = "close"
	state.LastActionTime = &now
	e.bmu.Unlock()
	return BarrierAction{
		Success:   true,
		BarrierID: barrierID,
		Action:    "close",
		Message:   fmt.Sprintf("barrier %s closed", barrierID),
	}
}
