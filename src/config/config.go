package config

import (
	"fmt"
	"os"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// Engine constants. Durations are clamped, codes expire on a fixed
// lifetime, and the sweep is the backstop for both.
const (
	MIN_RESERVATION_MINUTES  = 15
	MAX_RESERVATION_MINUTES  = 480
	RESERVATION_STEP_MINUTES = 15

	CODE_LENGTH       = 3
	CODE_ALPHABET     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CODE_TTL          = 15 * time.Minute
	CODE_MAX_ATTEMPTS = 100

	SWEEP_INTERVAL       = time.Minute
	BARRIER_OPEN_SECONDS = 10
	REMINDER_LEAD        = 5 * time.Minute
	HEARTBEAT_INTERVAL_S = 30
	HOURLY_RATE          = 2.50
)
