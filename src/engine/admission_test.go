package engine

import (
	"aeropark/src/models"
	"aeropark/src/types"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryAccessDeniesWithoutPresence(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, "a1", "a2", "a3")

	code := "A7K"
	decision, err := eng.CheckEntryAccess(ctx, false, &code)
	assert.NoError(t, err)
	assert.False(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_NO_VEHICLE, decision.Reason)

	decision, err = eng.CheckEntryAccess(ctx, false, nil)
	assert.NoError(t, err)
	assert.False(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_NO_VEHICLE, decision.Reason)
}

func TestEntryAccessGrantsOnCapacity(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, "a1", "a2", "a3")

	decision, err := eng.CheckEntryAccess(ctx, true, nil)
	assert.NoError(t, err)
	assert.True(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_SPOTS_AVAILABLE, decision.Reason)
	assert.Equal(t, 3, decision.FreeSpots)
	assert.NotZero(t, decision.OpenSeconds)
}

func TestEntryAccessParkingFullRequiresCode(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, "a1")

	_, _, err := eng.Reserve(ctx, "u1", "u1@example.com", types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 60})
	assert.NoError(t, err)

	decision, err := eng.CheckEntryAccess(ctx, true, nil)
	assert.NoError(t, err)
	assert.False(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_PARKING_FULL, decision.Reason)
	assert.True(t, decision.CodeRequired)
}

func TestEntryAccessCodePath(t *testing.T) {
	ctx := context.Background()
	eng, stores, _ := newTestEngine(t, "a1")

	reservation, _, err := eng.Reserve(ctx, "u1", "u1@example.com", types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 60})
	assert.NoError(t, err)
	code, err := eng.GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
	assert.NoError(t, err)

	// the lot is full but a valid code still admits its holder
	decision, err := eng.CheckEntryAccess(ctx, true, &code.Code)
	assert.NoError(t, err)
	assert.True(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_CODE_VALID, decision.Reason)
	assert.Equal(t, "a1", *decision.SpotID)
	assert.Equal(t, "u1", *decision.IssuedTo)

	consumed, err := stores.Codes.Get(ctx, code.Code)
	assert.NoError(t, err)
	assert.Equal(t, types.CODE_USED, consumed.Status)
	assert.NotNil(t, consumed.UsedAt)

	// a code is consumed at most once
	decision, err = eng.CheckEntryAccess(ctx, true, &code.Code)
	assert.NoError(t, err)
	assert.False(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_INVALID_CODE, decision.Reason)
}

func TestEntryAccessRejectsExpiredAndWrongKindCodes(t *testing.T) {
	ctx := context.Background()
	eng, stores, _ := newTestEngine(t, "a1")
	now := time.Now()

	assert.NoError(t, stores.Codes.Create(ctx, &models.AccessCode{
		Code: "XYZ", SpotID: "a1", Kind: types.CODE_ENTRY,
		Status: types.CODE_EXPIRED, ExpiresAt: now.Add(-time.Minute),
	}))
	assert.NoError(t, stores.Codes.Create(ctx, &models.AccessCode{
		Code: "EX1", SpotID: "a1", Kind: types.CODE_EXIT,
		Status: types.CODE_ACTIVE, ExpiresAt: now.Add(10 * time.Minute),
	}))

	for _, code := range []string{"XYZ", "EX1", "NOP"} {
		c := code
		decision, err := eng.CheckEntryAccess(ctx, true, &c)
		assert.NoError(t, err)
		assert.False(t, decision.AccessGranted, "code %s must be rejected", code)
		assert.Equal(t, types.REASON_INVALID_CODE, decision.Reason)
	}
}

func TestValidateCodeKeypadLane(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, "a1")

	reservation, _, err := eng.Reserve(ctx, "u1", "u1@example.com", types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 60})
	assert.NoError(t, err)
	code, err := eng.GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
	assert.NoError(t, err)

	decision, err := eng.ValidateCode(ctx, false, code.Code, types.CODE_ENTRY)
	assert.NoError(t, err)
	assert.False(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_NO_VEHICLE, decision.Reason)

	decision, err = eng.ValidateCode(ctx, true, code.Code, types.CODE_ENTRY)
	assert.NoError(t, err)
	assert.True(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_CODE_VALID, decision.Reason)
}

func TestProcessExit(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, "a1", "a2")

	decision, err := eng.ProcessExit(ctx, false, "")
	assert.NoError(t, err)
	assert.False(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_NO_VEHICLE, decision.Reason)

	// unauthorized walk-in occupies a1, then exits
	_, err = eng.SensorUpdate(ctx, "a1", true)
	assert.NoError(t, err)

	decision, err = eng.ProcessExit(ctx, true, "a1")
	assert.NoError(t, err)
	assert.True(t, decision.AccessGranted)
	assert.Equal(t, types.REASON_VEHICLE_EXIT, decision.Reason)
	assert.Equal(t, "a1", *decision.SpotID)
	assert.Equal(t, 2, decision.FreeSpots)

	// exit with no known spot still grants on presence alone
	decision, err = eng.ProcessExit(ctx, true, "")
	assert.NoError(t, err)
	assert.True(t, decision.AccessGranted)
}
