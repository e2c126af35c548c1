package http

import (
	"LINKR-Backend/internal/config"
	"LINKR-Backend/internal/ratelimit"
	"LINKR-Backend/internal/resolver"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RedirectHandler обработчик редиректов
type RedirectHandler struct {
	resolver *resolver.Resolver
	pages    config.Pages
	log      *zap.Logger
}

// NewRedirectHandler создает новый обработчик редиректов
func NewRedirectHandler(res *resolver.Resolver, pages config.Pages, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		resolver: res,
		pages:    pages,
		log:      log,
	}
}

// HandleRedirect обрабатывает редирект по короткому коду
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	// Извлекаем код из URL path
	shortCode := strings.TrimPrefix(r.URL.Path, "/")

	// Проверяем, что это не системные endpoints
	if shortCode == "" || strings.HasPrefix(shortCode, "api/") ||
		strings.HasPrefix(shortCode, "health") || strings.HasPrefix(shortCode, "ready") ||
		strings.HasPrefix(shortCode, "link/") {
		http.NotFound(w, r)
		return
	}

	reqCtx := resolver.RequestContext{
		IP:           extractIPAddress(r),
		Referer:      r.Referer(),
		CountryCode:  extractCountryCode(r),
		AccessToken:  extractAccessToken(r, shortCode),
		BypassSafety: r.URL.Query().Get("bypass_warning") == "1",
	}

	outcome, err := h.resolver.Resolve(r.Context(), shortCode, reqCtx)
	if err != nil {
		// Только недоступность основного хранилища фатальна для запроса
		h.log.Error("failed to resolve redirect", zap.String("short_code", shortCode), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	switch outcome.Kind {
	case resolver.OutcomeRateLimited:
		writeRateLimitHeaders(w, outcome.Limit)
		w.Header().Set("Retry-After", strconv.Itoa(int(outcome.Limit.RetryAfter(time.Now()).Seconds())))
		http.Error(w, "Rate limit exceeded. Try again later.", http.StatusTooManyRequests)

	case resolver.OutcomeTerminalPage:
		http.Redirect(w, r, h.pageURL(outcome.Page, shortCode), http.StatusFound)

	case resolver.OutcomeRedirect:
		http.Redirect(w, r, outcome.TargetURL, outcome.StatusCode)
	}
}

// pageURL строит адрес терминальной страницы с кодом ссылки
func (h *RedirectHandler) pageURL(page resolver.PageKind, shortCode string) string {
	var base string
	switch page {
	case resolver.PageNotFound:
		base = h.pages.NotFound
	case resolver.PageDisabled:
		base = h.pages.Disabled
	case resolver.PageExpired:
		base = h.pages.Expired
	case resolver.PagePasswordRequired:
		base = h.pages.Password
	case resolver.PageSafetyWarning:
		base = h.pages.SafetyWarning
	default:
		base = h.pages.NotFound
	}
	return base + "?code=" + shortCode
}

func writeRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// extractIPAddress извлекает IP адрес из запроса с учетом прокси
func extractIPAddress(r *http.Request) string {
	// Проверяем заголовки прокси в порядке приоритета
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For может содержать список IP через запятую
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	// Fallback к RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// extractCountryCode читает код страны из доверенного заголовка edge-прокси
func extractCountryCode(r *http.Request) string {
	if code := r.Header.Get("CF-IPCountry"); code != "" && code != "XX" {
		return code
	}
	if code := r.Header.Get("X-Country-Code"); code != "" {
		return code
	}
	return ""
}

// extractAccessToken достает токен доступа к защищенной ссылке из cookie
func extractAccessToken(r *http.Request, shortCode string) string {
	cookie, err := r.Cookie(accessCookieName(shortCode))
	if err != nil {
		return ""
	}
	return cookie.Value
}

func accessCookieName(shortCode string) string {
	return "link_access_" + shortCode
}
