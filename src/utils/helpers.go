package utils

import (
	"aeropark/src/lib"
	"aeropark/src/store"
	"aeropark/src/types"
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

func GenerateJWT(uid, email, role string) (string, error) {
	claims := &types.Claims{
		Email: email,
		Role:  role,
		UID:   uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// ParkingStatus assembles the lot snapshot from the registry. Reads go
// through the redis cache; every successful transition invalidates it.
func ParkingStatus(ctx context.Context, spots store.SpotRegistry) (*types.ParkingStatusResponse, error) {
	rd := lib.GetRedisClient()
	if rd != nil {
		if val := rd.JSONGet(ctx, lib.ParkingStatusKey).Val(); val != "" {
			var cached types.ParkingStatusResponse
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	all, err := spots.List(ctx)
	if err != nil {
		return nil, err
	}
	status := &types.ParkingStatusResponse{
		TotalSpots: len(all),
		Spots:      all,
		Timestamp:  time.Now(),
	}
	for _, spot := range all {
		switch spot.Status {
		case types.SPOT_FREE:
			status.Free++
		case types.SPOT_RESERVED:
			status.Reserved++
		case types.SPOT_OCCUPIED:
			status.Occupied++
		}
	}
	if rd != nil {
		if err := rd.JSONSet(ctx, lib.ParkingStatusKey, "$", status).Err(); err != nil {
			log.Printf("Failed to cache parking status: %s\n", err.Error())
		}
	}
	return status, nil
}
