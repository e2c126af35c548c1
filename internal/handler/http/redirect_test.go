package http

import (
	"LINKR-Backend/internal/auth"
	"LINKR-Backend/internal/cache"
	"LINKR-Backend/internal/config"
	"LINKR-Backend/internal/domain"
	"LINKR-Backend/internal/queue"
	"LINKR-Backend/internal/ratelimit"
	"LINKR-Backend/internal/repository/memory"
	"LINKR-Backend/internal/resolver"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// passthroughStore never hits, so every resolve reads straight from
// the memory storage.
type passthroughStore struct{}

func (passthroughStore) Get(context.Context, string) ([]byte, error) { return nil, cache.ErrMiss }
func (passthroughStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (passthroughStore) Del(context.Context, string) error { return nil }

func testPages() config.Pages {
	return config.Pages{
		NotFound:      "/link/not-found",
		Disabled:      "/link/disabled",
		Expired:       "/link/expired",
		Password:      "/link/password",
		SafetyWarning: "/link/warning",
	}
}

type redirectFixture struct {
	handler *RedirectHandler
	storage *memory.MemStorage
	queue   *queue.MemQueue
	tokens  *auth.TokenService
}

func newRedirectFixture(t *testing.T, policy resolver.Policy) *redirectFixture {
	t.Helper()
	log := zap.NewNop()
	storage := memory.New()
	linkCache := cache.New(passthroughStore{}, storage, time.Minute, log)
	limiter := ratelimit.New(ratelimit.NewMemWindowStore(), log)
	q := queue.NewMemQueue()
	tokens := auth.NewTokenService(&auth.TokenConfig{
		SecretKey: []byte("test-secret"),
		TokenTTL:  15 * time.Minute,
		Issuer:    "test",
	})
	res := resolver.New(linkCache, limiter, q, tokens, policy, log)
	return &redirectFixture{
		handler: NewRedirectHandler(res, testPages(), log),
		storage: storage,
		queue:   q,
		tokens:  tokens,
	}
}

func (f *redirectFixture) saveLink(t *testing.T, link *domain.ShortLink) *domain.ShortLink {
	t.Helper()
	require.NoError(t, f.storage.SaveLink(context.Background(), link))
	return link
}

func get(f *redirectFixture, target string, edit func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.7:52000"
	if edit != nil {
		edit(req)
	}
	rec := httptest.NewRecorder()
	f.handler.HandleRedirect(rec, req)
	return rec
}

func defaultPolicy() resolver.Policy {
	return resolver.Policy{Limit: 100, Window: time.Minute}
}

func TestHandleRedirect_Success(t *testing.T) {
	f := newRedirectFixture(t, defaultPolicy())
	f.saveLink(t, &domain.ShortLink{
		ShortCode:      "abc123",
		OriginalURL:    "https://example.com/page",
		IsEnabled:      true,
		SecurityStatus: domain.SecuritySecure,
		RedirectType:   domain.RedirectTemporaryRedirect,
	})

	rec := get(f, "/abc123", func(r *http.Request) {
		r.Header.Set("Referer", "https://google.com/search")
		r.Header.Set("CF-IPCountry", "US")
	})

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://example.com/page", rec.Header().Get("Location"))

	events, err := f.queue.Dequeue(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "google.com", events[0].ReferrerHost)
	assert.Equal(t, "US", events[0].CountryCode)
}

func TestHandleRedirect_TerminalPages(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	hash := "$2a$12$notarealhashbutpresent"

	cases := []struct {
		name string
		link *domain.ShortLink
		want string
	}{
		{
			name: "disabled",
			link: &domain.ShortLink{ShortCode: "c1", OriginalURL: "https://example.com", IsEnabled: false},
			want: "/link/disabled?code=c1",
		},
		{
			name: "expired",
			link: &domain.ShortLink{ShortCode: "c2", OriginalURL: "https://example.com", IsEnabled: true, ExpiresAt: &past},
			want: "/link/expired?code=c2",
		},
		{
			name: "password required",
			link: &domain.ShortLink{ShortCode: "c3", OriginalURL: "https://example.com", IsEnabled: true, PasswordHash: &hash},
			want: "/link/password?code=c3",
		},
		{
			name: "safety warning",
			link: &domain.ShortLink{ShortCode: "c4", OriginalURL: "https://example.com", IsEnabled: true, SecurityStatus: domain.SecurityUnsafe},
			want: "/link/warning?code=c4",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRedirectFixture(t, defaultPolicy())
			f.saveLink(t, tc.link)

			rec := get(f, "/"+tc.link.ShortCode, nil)

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tc.want, rec.Header().Get("Location"))
			assert.Equal(t, int64(0), mustQueueLen(t, f.queue))
		})
	}
}

func TestHandleRedirect_NotFound(t *testing.T) {
	f := newRedirectFixture(t, defaultPolicy())

	rec := get(f, "/missing", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/link/not-found?code=missing", rec.Header().Get("Location"))
}

func TestHandleRedirect_RateLimitHeaders(t *testing.T) {
	f := newRedirectFixture(t, resolver.Policy{Limit: 1, Window: time.Minute})
	f.saveLink(t, &domain.ShortLink{
		ShortCode:      "abc123",
		OriginalURL:    "https://example.com",
		IsEnabled:      true,
		SecurityStatus: domain.SecuritySecure,
		RedirectType:   domain.RedirectFound,
	})

	first := get(f, "/abc123", nil)
	assert.Equal(t, http.StatusFound, first.Code)

	second := get(f, "/abc123", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, second.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestHandleRedirect_PasswordCookie(t *testing.T) {
	f := newRedirectFixture(t, defaultPolicy())
	hash := "$2a$12$notarealhashbutpresent"
	f.saveLink(t, &domain.ShortLink{
		ShortCode:      "abc123",
		OriginalURL:    "https://example.com",
		IsEnabled:      true,
		SecurityStatus: domain.SecuritySecure,
		RedirectType:   domain.RedirectFound,
		PasswordHash:   &hash,
	})

	token, err := f.tokens.Issue("abc123")
	require.NoError(t, err)

	rec := get(f, "/abc123", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "link_access_abc123", Value: token})
	})

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))
}

func TestHandleRedirect_BypassWarning(t *testing.T) {
	f := newRedirectFixture(t, defaultPolicy())
	f.saveLink(t, &domain.ShortLink{
		ShortCode:      "abc123",
		OriginalURL:    "https://example.com",
		IsEnabled:      true,
		SecurityStatus: domain.SecurityUnsafe,
		RedirectType:   domain.RedirectFound,
	})

	rec := get(f, "/abc123?bypass_warning=1", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))
}

func TestHandleRedirect_SystemPathsAreNotCodes(t *testing.T) {
	f := newRedirectFixture(t, defaultPolicy())

	for _, path := range []string{"/", "/api/links", "/health", "/ready", "/link/expired"} {
		rec := get(f, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s must not resolve as a short code", path)
	}
}

func TestExtractIPAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	req.RemoteAddr = "203.0.113.7:52000"
	assert.Equal(t, "203.0.113.7", extractIPAddress(req))

	req.Header.Set("X-Real-IP", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", extractIPAddress(req))

	req.Header.Set("X-Forwarded-For", "192.0.2.1, 198.51.100.9")
	assert.Equal(t, "192.0.2.1", extractIPAddress(req))
}

func mustQueueLen(t *testing.T, q *queue.MemQueue) int64 {
	t.Helper()
	n, err := q.Length(context.Background())
	require.NoError(t, err)
	return n
}
