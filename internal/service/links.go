// Package service implements the CRUD write layer over the link store.
// Every mutation of cached fields invalidates the link cache after the
// store write commits, keeping the redirect hot path coherent.
package service

import (
	"LINKR-Backend/internal/auth"
	"LINKR-Backend/internal/cache"
	"LINKR-Backend/internal/config"
	"LINKR-Backend/internal/domain"
	"LINKR-Backend/internal/repository"
	"LINKR-Backend/pkg/random"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const maxRetries = 5

var (
	ErrInvalidURL      = errors.New("invalid destination URL")
	ErrPublicWithGate  = errors.New("public links cannot be password protected")
	ErrInvalidRedirect = errors.New("invalid redirect type")
)

// LinkService owns link lifecycle: create, edit, rename, delete and the
// password-verification credential flow.
type LinkService struct {
	storage   repository.Storage
	cache     *cache.LinkCache
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	cfg       *config.Links
	log       *zap.Logger
}

// NewLinkService конструктор сервиса ссылок
func NewLinkService(
	storage repository.Storage,
	linkCache *cache.LinkCache,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	cfg *config.Links,
	log *zap.Logger,
) *LinkService {
	return &LinkService{
		storage:   storage,
		cache:     linkCache,
		passwords: passwords,
		tokens:    tokens,
		cfg:       cfg,
		log:       log,
	}
}

// CreateParams describes a new link.
type CreateParams struct {
	OriginalURL  string
	EncryptedURL string
	EncryptionIV string
	IsEncrypted  bool
	CustomCode   string
	Password     string
	ExpiresAt    *time.Time
	IsPublic     bool
	RedirectType int
}

// Create validates the destination, picks or generates a unique short
// code, hashes the optional password and warms the cache so the first
// redirect is not a guaranteed miss.
func (s *LinkService) Create(ctx context.Context, params CreateParams) (*domain.ShortLink, error) {
	if !params.IsEncrypted {
		if err := validateURL(params.OriginalURL); err != nil {
			return nil, err
		}
	}
	if params.IsPublic && params.Password != "" {
		return nil, ErrPublicWithGate
	}
	if params.RedirectType == 0 {
		params.RedirectType = domain.RedirectFound
	}
	if !validRedirectType(params.RedirectType) {
		return nil, ErrInvalidRedirect
	}

	link := &domain.ShortLink{
		OriginalURL:    params.OriginalURL,
		EncryptedURL:   params.EncryptedURL,
		EncryptionIV:   params.EncryptionIV,
		IsEncrypted:    params.IsEncrypted,
		IsEnabled:      true,
		ExpiresAt:      params.ExpiresAt,
		IsPublic:       params.IsPublic,
		SecurityStatus: domain.SecurityUnknown,
		RedirectType:   params.RedirectType,
	}

	if params.Password != "" {
		if err := auth.IsValidPassword(params.Password); err != nil {
			return nil, err
		}
		hash, err := s.passwords.HashPassword(params.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		link.PasswordHash = &hash
	}

	if params.CustomCode != "" {
		exists, err := s.storage.CodeExists(ctx, params.CustomCode)
		if err != nil {
			return nil, fmt.Errorf("failed to check custom code existence: %w", err)
		}
		if exists {
			return nil, repository.ErrCodeExists
		}
		link.ShortCode = params.CustomCode
	} else {
		code, err := s.generateCode(ctx)
		if err != nil {
			return nil, err
		}
		link.ShortCode = code
	}

	if err := s.storage.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to save link: %w", err)
	}

	s.cache.Warm(ctx, link)

	return link, nil
}

// UpdateParams carries a partial edit; nil fields are left untouched.
type UpdateParams struct {
	OriginalURL    *string
	IsEnabled      *bool
	ExpiresAt      *time.Time
	ClearExpiry    bool
	Password       *string
	ClearPassword  bool
	IsPublic       *bool
	SecurityStatus *domain.SecurityStatus
	RedirectType   *int
}

// Update applies a partial edit and invalidates the cache entry.
func (s *LinkService) Update(ctx context.Context, shortCode string, params UpdateParams) (*domain.ShortLink, error) {
	link, err := s.storage.GetLinkByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	if params.OriginalURL != nil {
		if err := validateURL(*params.OriginalURL); err != nil {
			return nil, err
		}
		link.OriginalURL = *params.OriginalURL
		link.IsEncrypted = false
		// Destination changed: any prior verdict no longer applies.
		link.SecurityStatus = domain.SecurityUnknown
	}
	if params.IsEnabled != nil {
		link.IsEnabled = *params.IsEnabled
	}
	if params.ClearExpiry {
		link.ExpiresAt = nil
	} else if params.ExpiresAt != nil {
		link.ExpiresAt = params.ExpiresAt
	}
	if params.ClearPassword {
		link.PasswordHash = nil
	} else if params.Password != nil {
		if err := auth.IsValidPassword(*params.Password); err != nil {
			return nil, err
		}
		hash, err := s.passwords.HashPassword(*params.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		link.PasswordHash = &hash
	}
	if params.IsPublic != nil {
		link.IsPublic = *params.IsPublic
	}
	if link.IsPublic && link.IsPasswordProtected() {
		return nil, ErrPublicWithGate
	}
	if params.SecurityStatus != nil {
		link.SecurityStatus = *params.SecurityStatus
	}
	if params.RedirectType != nil {
		if !validRedirectType(*params.RedirectType) {
			return nil, ErrInvalidRedirect
		}
		link.RedirectType = *params.RedirectType
	}

	if err := s.storage.UpdateLink(ctx, link); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, shortCode)

	s.log.Info("updated link", zap.String("short_code", shortCode), zap.Int64("link_id", link.ID))
	return link, nil
}

// Rename changes the short code with a transactional uniqueness
// re-check and invalidates both the old and the new cache entries.
func (s *LinkService) Rename(ctx context.Context, oldCode, newCode string) error {
	if oldCode == newCode {
		return nil
	}

	if err := s.storage.RenameLink(ctx, oldCode, newCode); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, oldCode)
	s.cache.Invalidate(ctx, newCode)

	s.log.Info("renamed link", zap.String("old_code", oldCode), zap.String("new_code", newCode))
	return nil
}

// Delete removes the link and its dependent rollup rows, then purges
// the cache entry.
func (s *LinkService) Delete(ctx context.Context, shortCode string) error {
	if err := s.storage.DeleteLink(ctx, shortCode); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, shortCode)
	return nil
}

// VerifyPassword compares the presented password against the link's
// hash and, on success, issues a short-lived access token scoped to
// that code. The resolver only ever checks the token.
func (s *LinkService) VerifyPassword(ctx context.Context, shortCode, password string) (string, error) {
	link, err := s.storage.GetLinkByCode(ctx, shortCode)
	if err != nil {
		return "", err
	}
	if !link.IsPasswordProtected() {
		return "", auth.ErrInvalidPassword
	}

	if err := s.passwords.VerifyPassword(*link.PasswordHash, password); err != nil {
		s.log.Debug("password verification failed", zap.String("short_code", shortCode))
		return "", err
	}

	token, err := s.tokens.Issue(shortCode)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}

	return token, nil
}

// Stats is the rollup readback for one link over a date range.
type Stats struct {
	Link      *domain.ShortLink            `json:"link"`
	Clicks    []domain.DailyClickRollup    `json:"clicks"`
	Referrers []domain.DailyReferrerRollup `json:"referrers"`
	Geo       []domain.DailyGeoRollup      `json:"geo"`
}

// GetStats reads the daily rollups for a link between from and to.
func (s *LinkService) GetStats(ctx context.Context, shortCode string, from, to time.Time) (*Stats, error) {
	link, err := s.storage.GetLinkByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	clicks, err := s.storage.ListDailyClicks(ctx, link.ID, from, to)
	if err != nil {
		return nil, err
	}
	referrers, err := s.storage.ListDailyReferrers(ctx, link.ID, from, to)
	if err != nil {
		return nil, err
	}
	geo, err := s.storage.ListDailyGeo(ctx, link.ID, from, to)
	if err != nil {
		return nil, err
	}

	return &Stats{Link: link, Clicks: clicks, Referrers: referrers, Geo: geo}, nil
}

// generateCode draws random codes until one is free, bounded by
// maxRetries.
func (s *LinkService) generateCode(ctx context.Context) (string, error) {
	length := s.cfg.CodeLength
	if length <= 0 {
		length = 6
	}

	for i := 0; i < maxRetries; i++ {
		code, err := random.NewRandomString(length)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		exists, err := s.storage.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxRetries)
}

// validateURL ограничивает назначения схемами http и https
func validateURL(raw string) error {
	if raw == "" {
		return ErrInvalidURL
	}
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func validRedirectType(t int) bool {
	switch t {
	case domain.RedirectMovedPermanently, domain.RedirectFound,
		domain.RedirectTemporaryRedirect, domain.RedirectPermanentRedirect:
		return true
	}
	return false
}
