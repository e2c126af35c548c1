package memory

import (
	"LINKR-Backend/internal/domain"
	"LINKR-Backend/internal/repository"
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStorage is an in-memory Storage implementation used in tests and
// local development.
type MemStorage struct {
	mu          sync.RWMutex
	linksByCode map[string]*domain.ShortLink
	linksByID   map[int64]*domain.ShortLink
	clickRows   map[string]*domain.DailyClickRollup
	refRows     map[string]*domain.DailyReferrerRollup
	geoRows     map[string]*domain.DailyGeoRollup
	linkCounter int64
	rowCounter  int64
}

func New() *MemStorage {
	return &MemStorage{
		linksByCode: make(map[string]*domain.ShortLink),
		linksByID:   make(map[int64]*domain.ShortLink),
		clickRows:   make(map[string]*domain.DailyClickRollup),
		refRows:     make(map[string]*domain.DailyReferrerRollup),
		geoRows:     make(map[string]*domain.DailyGeoRollup),
	}
}

// --- Link Methods ---

func (s *MemStorage) SaveLink(_ context.Context, link *domain.ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.linksByCode[link.ShortCode]; exists {
		return repository.ErrCodeExists
	}
	s.linkCounter++
	link.ID = s.linkCounter
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	cp := *link
	s.linksByCode[link.ShortCode] = &cp
	s.linksByID[link.ID] = &cp
	return nil
}

func (s *MemStorage) GetLinkByCode(_ context.Context, shortCode string) (*domain.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.linksByCode[shortCode]
	if !ok {
		return nil, repository.ErrCodeNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *MemStorage) UpdateLink(_ context.Context, link *domain.ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.linksByID[link.ID]
	if !ok {
		return repository.ErrCodeNotFound
	}
	cp := *link
	cp.ShortCode = existing.ShortCode // rename goes through RenameLink only
	cp.Visits = existing.Visits
	cp.UpdatedAt = time.Now().UTC()
	s.linksByCode[cp.ShortCode] = &cp
	s.linksByID[cp.ID] = &cp
	return nil
}

func (s *MemStorage) RenameLink(_ context.Context, oldCode, newCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.linksByCode[newCode]; exists {
		return repository.ErrCodeExists
	}
	link, ok := s.linksByCode[oldCode]
	if !ok {
		return repository.ErrCodeNotFound
	}
	link.ShortCode = newCode
	link.UpdatedAt = time.Now().UTC()
	delete(s.linksByCode, oldCode)
	s.linksByCode[newCode] = link
	return nil
}

func (s *MemStorage) DeleteLink(_ context.Context, shortCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.linksByCode[shortCode]
	if !ok {
		return repository.ErrCodeNotFound
	}
	delete(s.linksByCode, shortCode)
	delete(s.linksByID, link.ID)
	for key, row := range s.clickRows {
		if row.LinkID == link.ID {
			delete(s.clickRows, key)
		}
	}
	for key, row := range s.refRows {
		if row.LinkID == link.ID {
			delete(s.refRows, key)
		}
	}
	for key, row := range s.geoRows {
		if row.LinkID == link.ID {
			delete(s.geoRows, key)
		}
	}
	return nil
}

func (s *MemStorage) CodeExists(_ context.Context, shortCode string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.linksByCode[shortCode]
	return ok, nil
}

// --- Aggregation Methods ---

func (s *MemStorage) IncrementVisits(_ context.Context, linkID int64, by int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.linksByID[linkID]
	if !ok {
		return repository.ErrCodeNotFound
	}
	link.Visits += by
	return nil
}

func (s *MemStorage) UpsertDailyClicks(_ context.Context, linkID int64, day time.Time, by int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d|%s", linkID, day.Format("2006-01-02"))
	if row, ok := s.clickRows[key]; ok {
		row.Clicks += by
		return nil
	}
	s.rowCounter++
	s.clickRows[key] = &domain.DailyClickRollup{ID: s.rowCounter, LinkID: linkID, Date: day, Clicks: by}
	return nil
}

func (s *MemStorage) UpsertDailyReferrer(_ context.Context, linkID int64, day time.Time, referrer string, by int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d|%s|%s", linkID, day.Format("2006-01-02"), referrer)
	if row, ok := s.refRows[key]; ok {
		row.Clicks += by
		return nil
	}
	s.rowCounter++
	s.refRows[key] = &domain.DailyReferrerRollup{ID: s.rowCounter, LinkID: linkID, Date: day, Referrer: referrer, Clicks: by}
	return nil
}

func (s *MemStorage) UpsertDailyGeo(_ context.Context, linkID int64, day time.Time, country string, by int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d|%s|%s", linkID, day.Format("2006-01-02"), country)
	if row, ok := s.geoRows[key]; ok {
		row.Clicks += by
		return nil
	}
	s.rowCounter++
	s.geoRows[key] = &domain.DailyGeoRollup{ID: s.rowCounter, LinkID: linkID, Date: day, Country: country, Clicks: by}
	return nil
}

// --- Rollup Readback ---

func (s *MemStorage) ListDailyClicks(_ context.Context, linkID int64, from, to time.Time) ([]domain.DailyClickRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []domain.DailyClickRollup
	for _, row := range s.clickRows {
		if row.LinkID == linkID && !row.Date.Before(from) && !row.Date.After(to) {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *MemStorage) ListDailyReferrers(_ context.Context, linkID int64, from, to time.Time) ([]domain.DailyReferrerRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []domain.DailyReferrerRollup
	for _, row := range s.refRows {
		if row.LinkID == linkID && !row.Date.Before(from) && !row.Date.After(to) {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *MemStorage) ListDailyGeo(_ context.Context, linkID int64, from, to time.Time) ([]domain.DailyGeoRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []domain.DailyGeoRollup
	for _, row := range s.geoRows {
		if row.LinkID == linkID && !row.Date.Before(from) && !row.Date.After(to) {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}
