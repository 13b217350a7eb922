package models

import (
	"github.com/saveecobot/ecosensor/internal/provider/resilience"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus reports the station cache, upstream providers and poller.
type SystemStatus struct {
	Status    HealthStatus           `json:"status"`
	Time      Timestamp              `json:"time"`
	Cache     CacheStatus            `json:"cache"`
	Providers []ProviderStatus       `json:"providers"`
	Poller    map[string]interface{} `json:"poller,omitempty"`
}

// CacheStatus describes the station snapshot.
type CacheStatus struct {
	HasData      bool       `json:"hasData"`
	Fresh        bool       `json:"fresh"`
	RefreshedAt  *Timestamp `json:"refreshedAt,omitempty"`
	StationCount int        `json:"stationCount"`
	Rejected     int        `json:"rejected"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	Successes           uint64       `json:"successes"`
	Failures            uint64       `json:"failures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}

// RefreshResult is returned by a forced refresh.
type RefreshResult struct {
	Refreshed bool        `json:"refreshed"`
	Cache     CacheStatus `json:"cache"`
}

// NewCacheStatus converts the service cache status.
func NewCacheStatus(s saveecobot.CacheStatus) CacheStatus {
	return CacheStatus{
		HasData:      s.HasData,
		Fresh:        s.IsFresh,
		RefreshedAt:  NewTimestamp(s.RefreshedAt),
		StationCount: s.StationCount,
		Rejected:     s.Rejected,
	}
}

// NewProviderStatus converts a provider health report.
func NewProviderStatus(h *resilience.ProviderHealth) ProviderStatus {
	ps := ProviderStatus{
		Provider:            h.Name,
		Status:              HealthStatusOK,
		CircuitState:        h.CircuitState.String(),
		ConsecutiveFailures: int(h.Counts.ConsecutiveFailures),
		Successes:           h.Successes,
		Failures:            h.Failures,
	}
	switch {
	case h.IsUnhealthy():
		ps.Status = HealthStatusFail
	case h.IsDegraded():
		ps.Status = HealthStatusDegraded
	}
	if h.LastSuccessAt != nil {
		ps.LastSuccessAt = NewTimestamp(*h.LastSuccessAt)
	}
	if h.LastFailureAt != nil {
		ps.LastFailureAt = NewTimestamp(*h.LastFailureAt)
	}
	if h.LastError != "" {
		msg := h.LastError
		ps.Message = &msg
	}
	return ps
}
