package engine

import (
	"aeropark/src/config"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
)

// GenerateCode issues a fresh code for the reservation's spot. Any
// prior ACTIVE code of the same kind for that spot is superseded first
// so at most one stays live. Token generation retries on collision
// with a currently-active code.
func (e *Engine) GenerateCode(ctx context.Context, userID, reservationID string, kind types.CodeKind) (*models.AccessCode, error) {
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

	if prior, err := e.codes.ActiveBySpotAndKind(ctx, reservation.SpotID, kind); err == nil {
		if err := e.codes.UpdateStatus(ctx, prior.Code, types.CODE_ACTIVE, types.CODE_EXPIRED, nil); err != nil && !errors.Is(err, store.ErrCodeNotActive) {
			return nil, err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := e.now()
	for attempt := 0; attempt < config.CODE_MAX_ATTEMPTS; attempt++ {
		code := &models.AccessCode{
			Code:          randomToken(config.CODE_LENGTH),
			SpotID:        reservation.SpotID,
			ReservationID: reservationID,
			Kind:          kind,
			IssuedTo:      userID,
			IssuedToEmail: reservation.UserEmail,
			Status:        types.CODE_ACTIVE,
			ExpiresAt:     now.Add(config.CODE_TTL),
		}
		err := e.codes.Create(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, store.ErrDuplicateCode) {
			return nil, err
		}
	}
	return nil, ErrCodeGeneration
}

// InvalidateCode kills an ACTIVE code. Calling it on a code that is
// already used, expired or invalidated is a no-op so retries are safe.
func (e *Engine) InvalidateCode(ctx context.Context, code string) error {
	ac, err := e.codes.Get(ctx, code)
	if err != nil {
		return err
	}
	if ac.Status != types.CODE_ACTIVE {
		return nil
	}
	if err := e.codes.UpdateStatus(ctx, code, types.CODE_ACTIVE, types.CODE_INVALIDATED, nil); err != nil {
		if errors.Is(err, store.ErrCodeNotActive) {
			return nil
		}
		return err
	}
	return nil
}

func randomToken(length int) string {
	alphabet := config.CODE_ALPHABET
	token := make([]byte, length)
	for i := range token {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			log.Panicf("token generation failed: %s", err)
		}
		token[i] = alphabet[n.Int64()]
	}
	return string(token)
}
