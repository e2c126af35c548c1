package http

import (
	"LINKR-Backend/internal/auth"
	"LINKR-Backend/internal/config"
	"LINKR-Backend/internal/domain"
	"LINKR-Backend/internal/ratelimit"
	"LINKR-Backend/internal/repository"
	"LINKR-Backend/internal/service"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// LinksHandler обработчик для работы со ссылками
type LinksHandler struct {
	links    *service.LinkService
	limiter  *ratelimit.Limiter
	policies config.RateLimit
	baseURL  string
	tokenTTL time.Duration
	log      *zap.Logger
}

// NewLinksHandler создает новый обработчик ссылок
func NewLinksHandler(
	links *service.LinkService,
	limiter *ratelimit.Limiter,
	policies config.RateLimit,
	baseURL string,
	tokenTTL time.Duration,
	log *zap.Logger,
) *LinksHandler {
	return &LinksHandler{
		links:    links,
		limiter:  limiter,
		policies: policies,
		baseURL:  baseURL,
		tokenTTL: tokenTTL,
		log:      log,
	}
}

// CreateLinkRequest структура запроса создания ссылки
type CreateLinkRequest struct {
	URL          string     `json:"url"`
	EncryptedURL string     `json:"encrypted_url,omitempty"`
	EncryptionIV string     `json:"encryption_iv,omitempty"`
	IsEncrypted  bool       `json:"is_encrypted,omitempty"`
	CustomCode   string     `json:"custom_code,omitempty"`
	Password     string     `json:"password,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IsPublic     bool       `json:"is_public,omitempty"`
	RedirectType int        `json:"redirect_type,omitempty"`
}

// UpdateLinkRequest структура запроса частичного изменения ссылки
type UpdateLinkRequest struct {
	NewShortCode   *string    `json:"new_short_code,omitempty"`
	URL            *string    `json:"url,omitempty"`
	IsEnabled      *bool      `json:"is_enabled,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClearExpiry    bool       `json:"clear_expiry,omitempty"`
	Password       *string    `json:"password,omitempty"`
	ClearPassword  bool       `json:"clear_password,omitempty"`
	IsPublic       *bool      `json:"is_public,omitempty"`
	SecurityStatus *string    `json:"security_status,omitempty"`
	RedirectType   *int       `json:"redirect_type,omitempty"`
}

// VerifyPasswordRequest структура запроса проверки пароля
type VerifyPasswordRequest struct {
	Password string `json:"password"`
}

// LinkResponse информация о ссылке
type LinkResponse struct {
	ShortCode      string     `json:"short_code"`
	ShortURL       string     `json:"short_url"`
	OriginalURL    string     `json:"original_url,omitempty"`
	IsEncrypted    bool       `json:"is_encrypted"`
	IsEnabled      bool       `json:"is_enabled"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsProtected    bool       `json:"is_protected"`
	IsPublic       bool       `json:"is_public"`
	SecurityStatus string     `json:"security_status"`
	RedirectType   int        `json:"redirect_type"`
	Visits         int64      `json:"visits"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (h *LinksHandler) toResponse(link *domain.ShortLink) LinkResponse {
	return LinkResponse{
		ShortCode:      link.ShortCode,
		ShortURL:       fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode),
		OriginalURL:    link.OriginalURL,
		IsEncrypted:    link.IsEncrypted,
		IsEnabled:      link.IsEnabled,
		ExpiresAt:      link.ExpiresAt,
		IsProtected:    link.IsPasswordProtected(),
		IsPublic:       link.IsPublic,
		SecurityStatus: string(link.SecurityStatus),
		RedirectType:   link.RedirectType,
		Visits:         link.Visits,
		CreatedAt:      link.CreatedAt,
	}
}

// CreateLink создает новую короткую ссылку
func (h *LinksHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	decision := h.limiter.Check(r.Context(), ratelimit.Key("shorten", extractIPAddress(r)),
		h.policies.Shorten.Limit, h.policies.Shorten.Window)
	if !decision.Allowed {
		h.writeRateLimited(w, decision)
		return
	}

	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid create link request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	link, err := h.links.Create(r.Context(), service.CreateParams{
		OriginalURL:  req.URL,
		EncryptedURL: req.EncryptedURL,
		EncryptionIV: req.EncryptionIV,
		IsEncrypted:  req.IsEncrypted,
		CustomCode:   req.CustomCode,
		Password:     req.Password,
		ExpiresAt:    req.ExpiresAt,
		IsPublic:     req.IsPublic,
		RedirectType: req.RedirectType,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, h.toResponse(link), http.StatusCreated)
}

// UpdateLink применяет частичное изменение ссылки (включая переименование)
func (h *LinksHandler) UpdateLink(w http.ResponseWriter, r *http.Request, shortCode string) {
	var req UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	params := service.UpdateParams{
		OriginalURL:   req.URL,
		IsEnabled:     req.IsEnabled,
		ExpiresAt:     req.ExpiresAt,
		ClearExpiry:   req.ClearExpiry,
		Password:      req.Password,
		ClearPassword: req.ClearPassword,
		IsPublic:      req.IsPublic,
		RedirectType:  req.RedirectType,
	}
	if req.SecurityStatus != nil {
		status := domain.SecurityStatus(*req.SecurityStatus)
		switch status {
		case domain.SecuritySecure, domain.SecurityUnsafe, domain.SecurityUnknown:
			params.SecurityStatus = &status
		default:
			h.writeError(w, "Invalid security status", http.StatusBadRequest)
			return
		}
	}

	link, err := h.links.Update(r.Context(), shortCode, params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// Переименование выполняется после остальных изменений и
	// инвалидирует обе записи кэша
	if req.NewShortCode != nil && *req.NewShortCode != shortCode {
		if err := h.links.Rename(r.Context(), shortCode, *req.NewShortCode); err != nil {
			h.writeServiceError(w, err)
			return
		}
		link.ShortCode = *req.NewShortCode
	}

	h.writeJSON(w, h.toResponse(link), http.StatusOK)
}

// DeleteLink удаляет ссылку вместе со статистикой
func (h *LinksHandler) DeleteLink(w http.ResponseWriter, r *http.Request, shortCode string) {
	if err := h.links.Delete(r.Context(), shortCode); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.log.Info("deleted link", zap.String("short_code", shortCode))
	w.WriteHeader(http.StatusNoContent)
}

// VerifyPassword проверяет пароль ссылки и выдает токен доступа
func (h *LinksHandler) VerifyPassword(w http.ResponseWriter, r *http.Request, shortCode string) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Лимит привязан к паре (IP, код), чтобы перебор пароля одной
	// ссылки не наказывал остальной трафик с того же адреса
	decision := h.limiter.Check(r.Context(),
		ratelimit.Key("verify-password", extractIPAddress(r), shortCode),
		h.policies.VerifyPassword.Limit, h.policies.VerifyPassword.Window)
	if !decision.Allowed {
		h.writeRateLimited(w, decision)
		return
	}

	var req VerifyPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	token, err := h.links.VerifyPassword(r.Context(), shortCode, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			h.writeError(w, "Invalid password", http.StatusUnauthorized)
			return
		}
		h.writeServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName(shortCode),
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.writeJSON(w, map[string]string{"access_token": token}, http.StatusOK)
}

// GetStats возвращает дневную статистику ссылки за период
func (h *LinksHandler) GetStats(w http.ResponseWriter, r *http.Request, shortCode string) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if raw := r.URL.Query().Get("days"); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil && days > 0 && days <= 365 {
			from = to.AddDate(0, 0, -days)
		}
	}

	stats, err := h.links.GetStats(r.Context(), shortCode, from, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, stats, http.StatusOK)
}

// Helper methods

func (h *LinksHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *LinksHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (h *LinksHandler) writeRateLimited(w http.ResponseWriter, decision ratelimit.Decision) {
	writeRateLimitHeaders(w, decision)
	w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter(time.Now()).Seconds())))
	h.writeError(w, "Rate limit exceeded. Try again later.", http.StatusTooManyRequests)
}

func (h *LinksHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrCodeNotFound):
		h.writeError(w, "Link not found", http.StatusNotFound)
	case errors.Is(err, repository.ErrCodeExists):
		h.writeError(w, "Short code already exists", http.StatusConflict)
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrPublicWithGate),
		errors.Is(err, service.ErrInvalidRedirect):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error("link operation failed", zap.Error(err))
		h.writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}
