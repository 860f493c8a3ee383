package engine

import "errors"

var (
	ErrSpotUnavailable         = errors.New("spot is not available for reservation")
	ErrForbidden               = errors.New("principal does not own this reservation")
	ErrActiveReservationExists = errors.New("user already holds an active reservation")
	ErrReservationNotActive    = errors.New("reservation is not active")
	ErrCodeGeneration          = errors.New("could not generate a unique access code")
)
