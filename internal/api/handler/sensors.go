package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saveecobot/ecosensor/internal/api/models"
	"github.com/saveecobot/ecosensor/internal/api/response"
	"github.com/saveecobot/ecosensor/internal/entity"
)

// SensorsHandler serves the registered sensor entities.
type SensorsHandler struct {
	registry *entity.Registry
}

// NewSensorsHandler creates a new SensorsHandler.
func NewSensorsHandler(registry *entity.Registry) *SensorsHandler {
	return &SensorsHandler{registry: registry}
}

func sensorModel(s *entity.Sensor) models.Sensor {
	return models.Sensor{
		UniqueID:    s.UniqueID(),
		Name:        s.Name(),
		StationID:   s.StationID(),
		Kind:        s.Kind().Name(),
		Available:   s.Available(),
		State:       s.NativeValue(),
		Unit:        s.Unit(),
		DeviceClass: s.DeviceClass(),
		StateClass:  s.StateClass(),
		Attributes:  s.ExtraAttributes(),
	}
}

// ListSensors handles GET /v1/sensors.
func (h *SensorsHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	sensors := h.registry.All()
	items := make([]models.Sensor, 0, len(sensors))
	for _, s := range sensors {
		items = append(items, sensorModel(s))
	}
	response.JSON(w, r, http.StatusOK, models.SensorList{
		Items: items,
		Meta:  models.ListMeta{Count: len(items)},
	})
}

// GetSensor handles GET /v1/sensors/{uniqueId}.
func (h *SensorsHandler) GetSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uniqueId")
	s, ok := h.registry.Get(id)
	if !ok {
		response.NotFound(w, r, "sensor "+id+" is not registered")
		return
	}
	response.JSON(w, r, http.StatusOK, sensorModel(s))
}
