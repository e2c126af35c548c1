package service

import (
	"LINKR-Backend/internal/auth"
	"LINKR-Backend/internal/cache"
	"LINKR-Backend/internal/config"
	"LINKR-Backend/internal/domain"
	"LINKR-Backend/internal/repository"
	"LINKR-Backend/internal/repository/memory"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingStore is an in-memory cache.Store that remembers every
// deleted key, so tests can assert on invalidation.
type recordingStore struct {
	mu      sync.Mutex
	items   map[string][]byte
	deleted []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{items: make(map[string][]byte)}
}

func (s *recordingStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.items[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return data, nil
}

func (s *recordingStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *recordingStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type fixture struct {
	service *LinkService
	storage *memory.MemStorage
	store   *recordingStore
	tokens  *auth.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	storage := memory.New()
	store := newRecordingStore()
	log := zap.NewNop()
	linkCache := cache.New(store, storage, 5*time.Minute, log)
	tokens := auth.NewTokenService(&auth.TokenConfig{
		SecretKey: []byte("test-secret"),
		TokenTTL:  15 * time.Minute,
		Issuer:    "test",
	})
	cfg := &config.Links{CodeLength: 6}
	// Minimum bcrypt cost keeps the suite fast.
	passwords := auth.NewPasswordServiceWithCost(4)
	return &fixture{
		service: NewLinkService(storage, linkCache, passwords, tokens, cfg, log),
		storage: storage,
		store:   store,
		tokens:  tokens,
	}
}

func TestCreate_GeneratesUniqueCode(t *testing.T) {
	f := newFixture(t)

	link, err := f.service.Create(context.Background(), CreateParams{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	assert.Len(t, link.ShortCode, 6)
	assert.True(t, link.IsEnabled)
	assert.Equal(t, domain.SecurityUnknown, link.SecurityStatus)
	assert.Equal(t, domain.RedirectFound, link.RedirectType)

	// Cache is warmed: the first read must not touch a cold path.
	assert.NotEmpty(t, f.store.items)

	got, err := f.storage.GetLinkByCode(context.Background(), link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.OriginalURL)
}

func TestCreate_CustomCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "my-link"})
	require.NoError(t, err)
	assert.Equal(t, "my-link", link.ShortCode)

	_, err = f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "my-link"})
	assert.ErrorIs(t, err, repository.ErrCodeExists)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateParams{OriginalURL: "ftp://example.com"})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = f.service.Create(ctx, CreateParams{OriginalURL: ""})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", RedirectType: 200})
	assert.ErrorIs(t, err, ErrInvalidRedirect)

	_, err = f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", IsPublic: true, Password: "hunter2"})
	assert.ErrorIs(t, err, ErrPublicWithGate)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "abc123"})
	require.NoError(t, err)

	disabled := false
	_, err = f.service.Update(ctx, link.ShortCode, UpdateParams{IsEnabled: &disabled})
	require.NoError(t, err)

	assert.Contains(t, f.store.deleted, "link:abc123")

	got, err := f.storage.GetLinkByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)
}

func TestUpdate_URLChangeResetsSecurityStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "abc123"})
	require.NoError(t, err)

	secure := domain.SecuritySecure
	_, err = f.service.Update(ctx, link.ShortCode, UpdateParams{SecurityStatus: &secure})
	require.NoError(t, err)

	newURL := "https://other.example.com"
	updated, err := f.service.Update(ctx, link.ShortCode, UpdateParams{OriginalURL: &newURL})
	require.NoError(t, err)
	assert.Equal(t, domain.SecurityUnknown, updated.SecurityStatus)
}

func TestUpdate_ClearFlags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expires := time.Now().UTC().Add(time.Hour)
	link, err := f.service.Create(ctx, CreateParams{
		OriginalURL: "https://example.com",
		CustomCode:  "abc123",
		Password:    "hunter2",
		ExpiresAt:   &expires,
	})
	require.NoError(t, err)
	require.True(t, link.IsPasswordProtected())
	require.NotNil(t, link.ExpiresAt)

	updated, err := f.service.Update(ctx, link.ShortCode, UpdateParams{ClearExpiry: true, ClearPassword: true})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)
	assert.False(t, updated.IsPasswordProtected())
}

func TestRename_InvalidatesBothCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "old-code"})
	require.NoError(t, err)

	require.NoError(t, f.service.Rename(ctx, "old-code", "new-code"))

	assert.Contains(t, f.store.deleted, "link:old-code")
	assert.Contains(t, f.store.deleted, "link:new-code")

	_, err = f.storage.GetLinkByCode(ctx, "old-code")
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)
	got, err := f.storage.GetLinkByCode(ctx, "new-code")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.OriginalURL)
}

func TestRename_TargetTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "first"})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "second"})
	require.NoError(t, err)

	err = f.service.Rename(ctx, "first", "second")
	assert.ErrorIs(t, err, repository.ErrCodeExists)
}

func TestDelete_PurgesCacheEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "abc123"})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, "abc123"))
	assert.Contains(t, f.store.deleted, "link:abc123")

	_, err = f.storage.GetLinkByCode(ctx, "abc123")
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)
}

func TestVerifyPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateParams{
		OriginalURL: "https://example.com",
		CustomCode:  "abc123",
		Password:    "hunter2",
	})
	require.NoError(t, err)

	_, err = f.service.VerifyPassword(ctx, "abc123", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	token, err := f.service.VerifyPassword(ctx, "abc123", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// The issued token is scoped to this link.
	assert.NoError(t, f.tokens.Verify(token, "abc123"))
	assert.Error(t, f.tokens.Verify(token, "other"))
}

func TestVerifyPassword_UnprotectedLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "abc123"})
	require.NoError(t, err)

	_, err = f.service.VerifyPassword(ctx, "abc123", "anything")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.service.Create(ctx, CreateParams{OriginalURL: "https://example.com", CustomCode: "abc123"})
	require.NoError(t, err)

	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.storage.UpsertDailyClicks(ctx, link.ID, day, 5))
	require.NoError(t, f.storage.UpsertDailyReferrer(ctx, link.ID, day, domain.ReferrerDirect, 5))
	require.NoError(t, f.storage.UpsertDailyGeo(ctx, link.ID, day, "US", 5))

	stats, err := f.service.GetStats(ctx, "abc123", day, day)
	require.NoError(t, err)
	require.Len(t, stats.Clicks, 1)
	assert.Equal(t, int64(5), stats.Clicks[0].Clicks)
	require.Len(t, stats.Referrers, 1)
	require.Len(t, stats.Geo, 1)
}
