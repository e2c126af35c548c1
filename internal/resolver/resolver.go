// Package resolver implements the redirect hot path: given a short code
// and request context it decides, in strict gate order, whether and
// where to send the visitor, and records the visit without blocking the
// response.
package resolver

import (
	"LINKR-Backend/internal/domain"
	"LINKR-Backend/internal/queue"
	"LINKR-Backend/internal/ratelimit"
	"LINKR-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// PageKind identifies a user-facing terminal page. Terminal states are
// routine outcomes, surfaced as redirects to dedicated pages rather
// than API errors.
type PageKind string

const (
	PageNotFound         PageKind = "not-found"
	PageDisabled         PageKind = "disabled"
	PageExpired          PageKind = "expired"
	PagePasswordRequired PageKind = "password-required"
	PageSafetyWarning    PageKind = "safety-warning"
)

// OutcomeKind discriminates the three ways a resolution can end.
type OutcomeKind int

const (
	OutcomeRedirect OutcomeKind = iota
	OutcomeTerminalPage
	OutcomeRateLimited
)

// RequestContext carries everything the resolver needs from the
// inbound transport.
type RequestContext struct {
	IP           string
	Referer      string
	CountryCode  string
	AccessToken  string
	BypassSafety bool
}

// Outcome is the resolver's decision for one request.
type Outcome struct {
	Kind       OutcomeKind
	TargetURL  string
	StatusCode int
	Page       PageKind
	Limit      ratelimit.Decision
}

// linkGetter is satisfied by cache.LinkCache.
type linkGetter interface {
	GetLink(ctx context.Context, shortCode string) (*domain.ShortLink, error)
}

// tokenVerifier is satisfied by auth.TokenService.
type tokenVerifier interface {
	Verify(tokenString, shortCode string) error
}

// Policy is the redirect-class rate limit applied before any cache or
// store access.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Resolver composes the cache, the rate limiter, the token check and
// the analytics queue into the ordered state machine.
type Resolver struct {
	links   linkGetter
	limiter *ratelimit.Limiter
	queue   queue.Queue
	tokens  tokenVerifier
	policy  Policy
	log     *zap.Logger
	now     func() time.Time
}

// New creates a Resolver. All dependencies are injected; nothing is
// ambient, so each can be faked in isolation.
func New(links linkGetter, limiter *ratelimit.Limiter, q queue.Queue, tokens tokenVerifier, policy Policy, log *zap.Logger) *Resolver {
	return &Resolver{
		links:   links,
		limiter: limiter,
		queue:   q,
		tokens:  tokens,
		policy:  policy,
		log:     log,
		now:     time.Now,
	}
}

// Resolve runs the state machine for one request. The gates run in
// exactly this order: rate limit, lookup, enabled, expiry, password,
// safety, analytics enqueue, redirect. Rate limiting precedes any
// cache or store access; enabled and expiry precede the password and
// safety gates so a disabled or expired link never leaks its
// protection status. A non-nil error means the durable store itself
// failed, the only case surfaced as a server error.
func (r *Resolver) Resolve(ctx context.Context, shortCode string, reqCtx RequestContext) (Outcome, error) {
	// 1. Rate limit
	decision := r.limiter.Check(ctx, ratelimit.Key("redirect", reqCtx.IP), r.policy.Limit, r.policy.Window)
	if !decision.Allowed {
		r.log.Debug("redirect rate limited", zap.String("short_code", shortCode), zap.String("ip", reqCtx.IP))
		return Outcome{Kind: OutcomeRateLimited, Limit: decision}, nil
	}

	// 2. Lookup
	link, err := r.links.GetLink(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			r.log.Debug("short code not found", zap.String("short_code", shortCode))
			return Outcome{Kind: OutcomeTerminalPage, Page: PageNotFound, Limit: decision}, nil
		}
		return Outcome{}, fmt.Errorf("failed to look up link: %w", err)
	}

	// 3. Enabled
	if !link.IsEnabled {
		return Outcome{Kind: OutcomeTerminalPage, Page: PageDisabled, Limit: decision}, nil
	}

	// 4. Expiry
	if link.IsExpired(r.now()) {
		return Outcome{Kind: OutcomeTerminalPage, Page: PageExpired, Limit: decision}, nil
	}

	// 5. Password gate
	if link.IsPasswordProtected() {
		if err := r.tokens.Verify(reqCtx.AccessToken, shortCode); err != nil {
			return Outcome{Kind: OutcomeTerminalPage, Page: PagePasswordRequired, Limit: decision}, nil
		}
	}

	// 6. Safety gate
	if link.SecurityStatus == domain.SecurityUnsafe && !reqCtx.BypassSafety {
		return Outcome{Kind: OutcomeTerminalPage, Page: PageSafetyWarning, Limit: decision}, nil
	}

	// 7. Analytics enqueue, fire-and-forget: the queue absorbs its own
	// failures and the response never waits on the aggregator.
	r.queue.Enqueue(ctx, domain.AnalyticsEvent{
		LinkID:           link.ID,
		ReferrerHost:     ReferrerHost(reqCtx.Referer),
		CountryCode:      countryOrUnknown(reqCtx.CountryCode),
		OccurredAtMillis: r.now().UnixMilli(),
	})

	// 8. Redirect
	r.log.Info("successful redirect",
		zap.String("short_code", shortCode),
		zap.Int("status", link.RedirectType),
		zap.String("ip", reqCtx.IP))

	return Outcome{
		Kind:       OutcomeRedirect,
		TargetURL:  link.Destination(),
		StatusCode: redirectStatus(link.RedirectType),
		Limit:      decision,
	}, nil
}

// ReferrerHost reduces a raw Referer header to the rollup bucket:
// "Direct" when absent, "Other" when present but unparsable, otherwise
// the bare host.
func ReferrerHost(referer string) string {
	if referer == "" {
		return domain.ReferrerDirect
	}
	u, err := url.Parse(referer)
	if err != nil || u.Hostname() == "" {
		return domain.ReferrerOther
	}
	return u.Hostname()
}

func countryOrUnknown(code string) string {
	if code == "" {
		return domain.CountryUnknown
	}
	return code
}

// redirectStatus guards against bad rows: anything outside the allowed
// set falls back to 302.
func redirectStatus(configured int) int {
	switch configured {
	case domain.RedirectMovedPermanently, domain.RedirectFound,
		domain.RedirectTemporaryRedirect, domain.RedirectPermanentRedirect:
		return configured
	default:
		return domain.RedirectFound
	}
}
