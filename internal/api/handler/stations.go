package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/saveecobot/ecosensor/internal/api/models"
	"github.com/saveecobot/ecosensor/internal/api/response"
	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

// StationCatalog is the station service as used by the HTTP surface.
type StationCatalog interface {
	entity.Catalog
	CacheReporter
	Stations() []saveecobot.Station
}

// StationsHandler serves cities, stations and forced refreshes.
type StationsHandler struct {
	catalog StationCatalog
	logger  zerolog.Logger
}

// NewStationsHandler creates a new StationsHandler.
func NewStationsHandler(catalog StationCatalog, logger zerolog.Logger) *StationsHandler {
	return &StationsHandler{catalog: catalog, logger: logger}
}

func wantsText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text"
}

// ListCities handles GET /v1/cities. With ?format=text it returns the show_cities message.
func (h *StationsHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	if wantsText(r) {
		response.Text(w, r, http.StatusOK, entity.ShowCities(h.catalog).Message)
		return
	}

	cities := h.catalog.Cities()
	response.JSON(w, r, http.StatusOK, models.CityList{
		Items: cities,
		Meta:  models.ListMeta{Count: len(cities)},
	})
}

// ListCityStations handles GET /v1/cities/{city}/stations.
// With ?format=text it returns the show_city_stations message.
func (h *StationsHandler) ListCityStations(w http.ResponseWriter, r *http.Request) {
	city, err := url.PathUnescape(chi.URLParam(r, "city"))
	if err != nil {
		response.BadRequest(w, r, "city is not a valid path segment", []models.FieldError{
			{Field: "city", Message: err.Error(), Code: "INVALID"},
		})
		return
	}

	if wantsText(r) {
		response.Text(w, r, http.StatusOK, entity.ShowCityStations(h.catalog, city).Message)
		return
	}

	refs := h.catalog.CityStations(city)
	response.JSON(w, r, http.StatusOK, models.CityStations{
		City:  city,
		Items: refs,
		Meta:  models.ListMeta{Count: len(refs)},
	})
}

// ListStations handles GET /v1/stations?id=&city=&name=.
// Each parameter may repeat; all given parameters must match. No parameters lists everything.
func (h *StationsHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := saveecobot.Filter{
		StationIDs:   q["id"],
		CityNames:    q["city"],
		StationNames: q["name"],
	}

	var stations []saveecobot.Station
	if f.IsEmpty() {
		stations = h.catalog.Stations()
	} else {
		stations = h.catalog.FilterStations(f)
	}
	response.JSON(w, r, http.StatusOK, models.NewStationList(stations))
}

// Refresh handles POST /v1/refresh - force a fetch from SaveEcoBot.
func (h *StationsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshed, err := h.catalog.Refresh(r.Context(), true)
	if err != nil {
		if errors.Is(err, saveecobot.ErrNotReady) {
			response.ServiceUnavailable(w, r, err.Error(), 30)
			return
		}
		h.logger.Error().Err(err).Msg("forced refresh failed")
		response.InternalError(w, r, "refresh failed")
		return
	}
	if !refreshed {
		response.BadGateway(w, r, "saveecobot returned an unusable response, keeping cached stations")
		return
	}

	response.JSON(w, r, http.StatusOK, models.RefreshResult{
		Refreshed: true,
		Cache:     models.NewCacheStatus(h.catalog.Status()),
	})
}
