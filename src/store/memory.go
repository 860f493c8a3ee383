package store

import (
	"aeropark/src/models"
	"aeropark/src/types"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySpotRegistry keeps spots in a map with one mutex per spot, so
// concurrent Apply calls on the same spot serialize and calls on
// different spots do not contend. It honors the same Apply contract as
// the gorm registry and backs the engine tests.
type MemorySpotRegistry struct {
	mu    sync.RWMutex
	spots map[string]models.Spot
	locks map[string]*sync.Mutex
}

func NewMemorySpotRegistry() *MemorySpotRegistry {
	return &MemorySpotRegistry{
		spots: map[string]models.Spot{},
		locks: map[string]*sync.Mutex{},
	}
}

func (r *MemorySpotRegistry) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

func (r *MemorySpotRegistry) Get(ctx context.Context, id string) (*models.Spot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spot, ok := r.spots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &spot, nil
}

func (r *MemorySpotRegistry) List(ctx context.Context) ([]models.Spot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spots := make([]models.Spot, 0, len(r.spots))
	for _, spot := range r.spots {
		spots = append(spots, spot)
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
	return spots, nil
}

func (r *MemorySpotRegistry) CountByStatus(ctx context.Context) (map[types.SpotStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[types.SpotStatus]int{}
	for _, spot := range r.spots {
		counts[spot.Status]++
	}
	return counts, nil
}

func (r *MemorySpotRegistry) Create(ctx context.Context, spot *models.Spot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spots[spot.ID] = *spot
	return nil
}

func (r *MemorySpotRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spots[id]; !ok {
		return ErrNotFound
	}
	delete(r.spots, id)
	return nil
}

func (r *MemorySpotRegistry) Apply(ctx context.Context, id string, fn func(spot *models.Spot) error) (*models.Spot, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	spot, ok := r.spots[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(&spot); err != nil {
		return nil, err
	}
	spot.Version++
	r.mu.Lock()
	r.spots[id] = spot
	r.mu.Unlock()
	return &spot, nil
}

type MemoryAccessCodeStore struct {
	mu    sync.Mutex
	codes map[string]models.AccessCode
}

func NewMemoryAccessCodeStore() *MemoryAccessCodeStore {
	return &MemoryAccessCodeStore{codes: map[string]models.AccessCode{}}
}

func (s *MemoryAccessCodeStore) Get(ctx context.Context, code string) (*models.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ac, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &ac, nil
}

func (s *MemoryAccessCodeStore) ActiveBySpotAndKind(ctx context.Context, spotID string, kind types.CodeKind) (*models.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ac := range s.codes {
		if ac.SpotID == spotID && ac.Kind == kind && ac.Status == types.CODE_ACTIVE {
			found := ac
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryAccessCodeStore) List(ctx context.Context, status *types.CodeStatus) ([]models.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AccessCode
	for _, ac := range s.codes {
		if status == nil || ac.Status == *status {
			out = append(out, ac)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryAccessCodeStore) ListExpiredActive(ctx context.Context, now time.Time) ([]models.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AccessCode
	for _, ac := range s.codes {
		if ac.Status == types.CODE_ACTIVE && !ac.ExpiresAt.After(now) {
			out = append(out, ac)
		}
	}
	return out, nil
}

func (s *MemoryAccessCodeStore) Create(ctx context.Context, code *models.AccessCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.codes[code.Code]; ok && existing.Status == types.CODE_ACTIVE {
		return ErrDuplicateCode
	}
	s.codes[code.Code] = *code
	return nil
}

func (s *MemoryAccessCodeStore) UpdateStatus(ctx context.Context, code string, from, to types.CodeStatus, usedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ac, ok := s.codes[code]
	if !ok || ac.Status != from {
		return ErrCodeNotActive
	}
	ac.Status = to
	if usedAt != nil {
		ac.UsedAt = usedAt
	}
	s.codes[code] = ac
	return nil
}

type MemoryReservationLedger struct {
	mu           sync.Mutex
	reservations map[string]models.Reservation
	spots        *MemorySpotRegistry
}

// NewMemoryReservationLedger takes the spot registry so List can
// filter out rows orphaned by a deleted spot, mirroring the gorm
// implementation's subquery.
func NewMemoryReservationLedger(spots *MemorySpotRegistry) *MemoryReservationLedger {
	return &MemoryReservationLedger{
		reservations: map[string]models.Reservation{},
		spots:        spots,
	}
}

func (l *MemoryReservationLedger) Get(ctx context.Context, id string) (*models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (l *MemoryReservationLedger) List(ctx context.Context) ([]models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Reservation
	for _, r := range l.reservations {
		if l.spots != nil {
			if _, err := l.spots.Get(ctx, r.SpotID); err != nil {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *MemoryReservationLedger) ActiveByUser(ctx context.Context, userID string) (*models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.reservations {
		if r.UserID == userID && r.Status == types.RESERVATION_ACTIVE {
			found := r
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (l *MemoryReservationLedger) ActiveBySpot(ctx context.Context, spotID string) (*models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.reservations {
		if r.SpotID == spotID && r.Status == types.RESERVATION_ACTIVE {
			found := r
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (l *MemoryReservationLedger) Create(ctx context.Context, r *models.Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	// the database assigns ids via column default; here we do it inline
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	l.reservations[r.ID.String()] = *r
	return nil
}

func (l *MemoryReservationLedger) UpdateStatus(ctx context.Context, id string, status types.ReservationStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	l.reservations[id] = r
	return nil
}

func (l *MemoryReservationLedger) UpdateEnd(ctx context.Context, id string, end time.Time, durationMinutes int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[id]
	if !ok {
		return ErrNotFound
	}
	r.End = end
	r.DurationMinutes = durationMinutes
	l.reservations[id] = r
	return nil
}

// NewMemoryStores wires in-memory stores for tests and local runs.
func NewMemoryStores() Stores {
	spots := NewMemorySpotRegistry()
	return Stores{
		Spots:        spots,
		Codes:        NewMemoryAccessCodeStore(),
		Reservations: NewMemoryReservationLedger(spots),
	}
}
