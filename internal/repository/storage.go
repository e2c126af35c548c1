package repository

import (
	"LINKR-Backend/internal/domain"
	"context"
	"errors"
	"time"
)

var (
	ErrCodeNotFound = errors.New("short code not found")
	ErrCodeExists   = errors.New("short code already exists")
)

// Storage is the durable system of record for short links and their
// per-day aggregated analytics rows.
type Storage interface {
	// Link methods
	SaveLink(ctx context.Context, link *domain.ShortLink) error
	GetLinkByCode(ctx context.Context, shortCode string) (*domain.ShortLink, error)
	UpdateLink(ctx context.Context, link *domain.ShortLink) error
	RenameLink(ctx context.Context, oldCode, newCode string) error
	DeleteLink(ctx context.Context, shortCode string) error
	CodeExists(ctx context.Context, shortCode string) (bool, error)

	// Aggregation methods. Counter updates use atomic increment-or-create
	// semantics at the store level so that concurrent aggregator runs
	// never lose updates.
	IncrementVisits(ctx context.Context, linkID int64, by int64) error
	UpsertDailyClicks(ctx context.Context, linkID int64, day time.Time, by int64) error
	UpsertDailyReferrer(ctx context.Context, linkID int64, day time.Time, referrer string, by int64) error
	UpsertDailyGeo(ctx context.Context, linkID int64, day time.Time, country string, by int64) error

	// Rollup readback for the stats surface
	ListDailyClicks(ctx context.Context, linkID int64, from, to time.Time) ([]domain.DailyClickRollup, error)
	ListDailyReferrers(ctx context.Context, linkID int64, from, to time.Time) ([]domain.DailyReferrerRollup, error)
	ListDailyGeo(ctx context.Context, linkID int64, from, to time.Time) ([]domain.DailyGeoRollup, error)
}
