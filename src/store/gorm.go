package store

import (
	"aeropark/src/models"
	"aeropark/src/types"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type GormSpotRegistry struct {
	db *gorm.DB
}

func NewGormSpotRegistry(db *gorm.DB) *GormSpotRegistry {
	return &GormSpotRegistry{db: db}
}

func (r *GormSpotRegistry) Get(ctx context.Context, id string) (*models.Spot, error) {
	var spot models.Spot
	err := r.db.WithContext(ctx).Where(&models.Spot{ID: id}).First(&spot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &spot, nil
}

func (r *GormSpotRegistry) List(ctx context.Context) ([]models.Spot, error) {
	var spots []models.Spot
	err := r.db.WithContext(ctx).Order("id asc").Find(&spots).Error
	if err != nil {
		return nil, err
	}
	return spots, nil
}

func (r *GormSpotRegistry) CountByStatus(ctx context.Context) (map[types.SpotStatus]int, error) {
	var rows []struct {
		Status types.SpotStatus
		Count  int
	}
	err := r.db.WithContext(ctx).
		Model(&models.Spot{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := map[types.SpotStatus]int{}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *GormSpotRegistry) Create(ctx context.Context, spot *models.Spot) error {
	return r.db.WithContext(ctx).Create(spot).Error
}

func (r *GormSpotRegistry) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where(&models.Spot{ID: id}).Delete(&models.Spot{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Apply reads the current row, runs fn, and writes the result guarded
// by the version column. A concurrent writer bumps the version first
// and the UPDATE matches zero rows.
func (r *GormSpotRegistry) Apply(ctx context.Context, id string, fn func(spot *models.Spot) error) (*models.Spot, error) {
	var spot models.Spot
	db := r.db.WithContext(ctx)
	if err := db.Where(&models.Spot{ID: id}).First(&spot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := fn(&spot); err != nil {
		return nil, err
	}
	prevVersion := spot.Version
	spot.Version++
	res := db.Model(&models.Spot{}).
		Where("id = ? AND version = ?", id, prevVersion).
		Select("*").
		Omit("created_at").
		Updates(&spot)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrentModification
	}
	return &spot, nil
}

type GormAccessCodeStore struct {
	db *gorm.DB
}

func NewGormAccessCodeStore(db *gorm.DB) *GormAccessCodeStore {
	return &GormAccessCodeStore{db: db}
}

func (s *GormAccessCodeStore) Get(ctx context.Context, code string) (*models.AccessCode, error) {
	var ac models.AccessCode
	err := s.db.WithContext(ctx).Where(&models.AccessCode{Code: code}).First(&ac).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ac, nil
}

func (s *GormAccessCodeStore) ActiveBySpotAndKind(ctx context.Context, spotID string, kind types.CodeKind) (*models.AccessCode, error) {
	var ac models.AccessCode
	err := s.db.WithContext(ctx).
		Where(&models.AccessCode{SpotID: spotID, Kind: kind, Status: types.CODE_ACTIVE}).
		First(&ac).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ac, nil
}

func (s *GormAccessCodeStore) List(ctx context.Context, status *types.CodeStatus) ([]models.AccessCode, error) {
	var codes []models.AccessCode
	q := s.db.WithContext(ctx).Order("created_at desc")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *GormAccessCodeStore) ListExpiredActive(ctx context.Context, now time.Time) ([]models.AccessCode, error) {
	var codes []models.AccessCode
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", types.CODE_ACTIVE, now).
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *GormAccessCodeStore) Create(ctx context.Context, code *models.AccessCode) error {
	var count int64
	db := s.db.WithContext(ctx)
	err := db.Model(&models.AccessCode{}).
		Where("code = ? AND status = ?", code.Code, types.CODE_ACTIVE).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateCode
	}
	return db.Create(code).Error
}

func (s *GormAccessCodeStore) UpdateStatus(ctx context.Context, code string, from, to types.CodeStatus, usedAt *time.Time) error {
	updates := map[string]any{"status": to}
	if usedAt != nil {
		updates["used_at"] = *usedAt
	}
	res := s.db.WithContext(ctx).
		Model(&models.AccessCode{}).
		Where("code = ? AND status = ?", code, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCodeNotActive
	}
	return nil
}

type GormReservationLedger struct {
	db *gorm.DB
}

func NewGormReservationLedger(db *gorm.DB) *GormReservationLedger {
	return &GormReservationLedger{db: db}
}

func (l *GormReservationLedger) Get(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := l.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// List returns ledger rows whose spot still exists. Orphans left by a
// deleted spot stay in the table but are filtered out of listings.
func (l *GormReservationLedger) List(ctx context.Context) ([]models.Reservation, error) {
	var rs []models.Reservation
	err := l.db.WithContext(ctx).
		Where("spot_id IN (?)", l.db.Model(&models.Spot{}).Select("id")).
		Order("created_at desc").
		Find(&rs).Error
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (l *GormReservationLedger) ActiveByUser(ctx context.Context, userID string) (*models.Reservation, error) {
	var r models.Reservation
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.RESERVATION_ACTIVE).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (l *GormReservationLedger) ActiveBySpot(ctx context.Context, spotID string) (*models.Reservation, error) {
	var r models.Reservation
	err := l.db.WithContext(ctx).
		Where("spot_id = ? AND status = ?", spotID, types.RESERVATION_ACTIVE).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (l *GormReservationLedger) Create(ctx context.Context, r *models.Reservation) error {
	return l.db.WithContext(ctx).Create(r).Error
}

func (l *GormReservationLedger) UpdateStatus(ctx context.Context, id string, status types.ReservationStatus) error {
	res := l.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *GormReservationLedger) UpdateEnd(ctx context.Context, id string, end time.Time, durationMinutes int) error {
	res := l.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Updates(map[string]any{"end": end, "duration_minutes": durationMinutes})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NewGormStores wires the three stores over one gorm handle.
func NewGormStores(db *gorm.DB) Stores {
	return Stores{
		Spots:        NewGormSpotRegistry(db),
		Codes:        NewGormAccessCodeStore(db),
		Reservations: NewGormReservationLedger(db),
	}
}
