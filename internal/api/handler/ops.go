// Package handler provides HTTP handlers for the ecosensor HTTP surface.
package handler

import (
	"net/http"
	"time"

	"github.com/saveecobot/ecosensor/internal/api/models"
	"github.com/saveecobot/ecosensor/internal/api/response"
	"github.com/saveecobot/ecosensor/internal/provider/resilience"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

// CacheReporter reports the station cache state.
type CacheReporter interface {
	Status() saveecobot.CacheStatus
}

// PollReporter reports sensor poller statistics.
type PollReporter interface {
	MetricsSnapshot() map[string]interface{}
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	cache     CacheReporter
	providers *resilience.Registry
	poller    PollReporter
}

// OpsHandlerConfig holds the dependencies of an OpsHandler. Providers and Poller may be nil.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Cache     CacheReporter
	Providers *resilience.Registry
	Poller    PollReporter
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		cache:     cfg.Cache,
		providers: cfg.Providers,
		poller:    cfg.Poller,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails until the first successful refresh.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	cache := h.cache.Status()
	if !cache.HasData {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status:  models.HealthStatusFail,
			Time:    models.Timestamp(time.Now()),
			Details: map[string]interface{}{"reason": "no station data yet"},
		})
		return
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"stations": cache.StationCount,
		},
	})
}

// SystemStatus handles GET /v1/ops/status - cache, provider and poller status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	cache := models.NewCacheStatus(h.cache.Status())
	providers := h.providerStatuses()

	overall := models.HealthStatusOK
	for _, p := range providers {
		if p.Status != models.HealthStatusOK {
			overall = models.HealthStatusDegraded
		}
	}
	if !cache.HasData {
		overall = models.HealthStatusFail
	}

	status := models.SystemStatus{
		Status:    overall,
		Time:      models.Timestamp(time.Now()),
		Cache:     cache,
		Providers: providers,
	}
	if h.poller != nil {
		status.Poller = h.poller.MetricsSnapshot()
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	statuses := make([]models.ProviderStatus, 0)
	if h.providers == nil {
		return statuses
	}

	// GetAllHealth is sorted by name.
	for _, health := range h.providers.GetAllHealth() {
		statuses = append(statuses, models.NewProviderStatus(health))
	}

	return statuses
}
