package engine

import (
	"aeropark/src/config"
	"aeropark/src/store"
	"aeropark/src/types"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCode(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, "a1")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	eng.now = func() time.Time { return base }

	reservation, _, err := eng.Reserve(ctx, "u1", "u1@example.com", types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 60})
	assert.NoError(t, err)

	code, err := eng.GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
	assert.NoError(t, err)
	assert.Len(t, code.Code, config.CODE_LENGTH)
	assert.Equal(t, "a1", code.SpotID)
	assert.Equal(t, types.CODE_ACTIVE, code.Status)
	assert.Equal(t, base.Add(config.CODE_TTL), code.ExpiresAt)
	assert.Equal(t, 15, code.RemainingMinutes(base))
	assert.Equal(t, 0, code.RemainingMinutes(base.Add(config.CODE_TTL+time.Minute)))
	for _, r := range code.Code {
		assert.True(t, strings.ContainsRune(config.CODE_ALPHABET, r))
	}

	_, err = eng.GenerateCode(ctx, "u2", reservation.ID.String(), types.CODE_ENTRY)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = eng.GenerateCode(ctx, "u1", "00000000-0000-0000-0000-000000000000", types.CODE_ENTRY)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerateCodeSupersedesPriorActive(t *testing.T) {
	ctx := context.Background()
	eng, stores, _ := newTestEngine(t, "a1")

	reservation, _, err := eng.Reserve(ctx, "u1", "u1@example.com", types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 60})
	assert.NoError(t, err)

	first, err := eng.GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
	assert.NoError(t, err)
	second, err := eng.GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
	assert.NoError(t, err)
	assert.NotEqual(t, first.Code, second.Code)

	superseded, err := stores.Codes.Get(ctx, first.Code)
	assert.NoError(t, err)
	assert.Equal(t, types.CODE_EXPIRED, superseded.Status)

	// exactly one ACTIVE ENTRY code remains for the spot
	active, err := stores.Codes.ActiveBySpotAndKind(ctx, "a1", types.CODE_ENTRY)
	assert.NoError(t, err)
	assert.Equal(t, second.Code, active.Code)
	status := types.CODE_ACTIVE
	all, err := stores.Codes.List(ctx, &status)
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	// an EXIT code does not supersede the ENTRY code
	_, err = eng.GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_EXIT)
	assert.NoError(t, err)
	all, err = stores.Codes.List(ctx, &status)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInvalidateCodeIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, stores, _ := newTestEngine(t, "a1")

	reservation, _, err := eng.Reserve(ctx, "u1", "u1@example.com", types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 60})
	assert.NoError(t, err)
	code, err := eng.GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
	assert.NoError(t, err)

	assert.NoError(t, eng.InvalidateCode(ctx, code.Code))
	got, err := stores.Codes.Get(ctx, code.Code)
	assert.NoError(t, err)
	assert.Equal(t, types.CODE_INVALIDATED, got.Status)

	// retry on an already-inactive code is a no-op
	assert.NoError(t, eng.InvalidateCode(ctx, code.Code))
	assert.ErrorIs(t, eng.InvalidateCode(ctx, "NOP"), store.ErrNotFound)
}

func TestSweepExpiresStaleCodes(t *testing.T) {
	ctx := context.Background()
	eng, stores, _ := newTestEngine(t, "a1")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	eng.now = func() time.Time { return base }

	reservation, _, err := eng.Reserve(ctx, "u1", "u1@example.com", types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 480})
	assert.NoError(t, err)
	code, err := eng.GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
	assert.NoError(t, err)

	// sweep before the code lifetime elapses leaves everything alone
	expired, freed, err := eng.RunExpirySweep(ctx)
	assert.NoError(t, err)
	assert.Zero(t, expired)
	assert.Zero(t, freed)

	eng.now = func() time.Time { return base.Add(config.CODE_TTL + time.Minute) }
	expired, freed, err = eng.RunExpirySweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Zero(t, freed)

	got, err := stores.Codes.Get(ctx, code.Code)
	assert.NoError(t, err)
	assert.Equal(t, types.CODE_EXPIRED, got.Status)

	// an expired code is dead at the barrier
	decision, err := eng.CheckEntryAccess(ctx, true, &code.Code)
	assert.NoError(t, err)
	assert.False(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_INVALID_CODE, decision.Reason)
}
