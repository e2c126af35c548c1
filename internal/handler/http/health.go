package http

import (
	"LINKR-Backend/internal/database"
	"LINKR-Backend/internal/queue"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthHandler обработчик health checks
type HealthHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	events queue.Queue
	log    *zap.Logger
}

// NewHealthHandler создает новый health handler
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, events queue.Queue, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redisClient,
		events: events,
		log:    log,
	}
}

// HealthResponse структура ответа health check
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	DatabaseStatus string    `json:"database_status"`
	RedisStatus    string    `json:"redis_status"`
	QueueLength    int64     `json:"queue_length"`
	Uptime         string    `json:"uptime,omitempty"`
}

var startTime = time.Now()

// Health основной health check endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.HealthCheck(h.db); err != nil {
		dbStatus = "unhealthy"
		h.log.Error("database health check failed", zap.Error(err))
	}

	// Redis деградирует, но не валит сервис: кэш и лимитер работают
	// в fail-open режиме
	redisStatus := "healthy"
	if err := h.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "degraded"
		h.log.Warn("redis health check failed", zap.Error(err))
	}

	queueLength, err := h.events.Length(ctx)
	if err != nil {
		queueLength = -1
	}

	status := "healthy"
	statusCode := http.StatusOK
	if dbStatus == "unhealthy" {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:         status,
		Timestamp:      time.Now(),
		DatabaseStatus: dbStatus,
		RedisStatus:    redisStatus,
		QueueLength:    queueLength,
		Uptime:         time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("failed to encode health response", zap.Error(err))
	}
}

// Ready readiness probe endpoint
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("failed to encode ready response", zap.Error(err))
	}
}
