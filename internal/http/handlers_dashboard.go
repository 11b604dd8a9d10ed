package http

import (
	"net/http"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/log"
)

// summaryResponse adds total_offers, the name older clients read for the
// delivery count.
type summaryResponse struct {
	aggregate.Summary
	TotalOffers int `json:"total_offers"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Dashboard.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, summaryResponse{Summary: sum, TotalOffers: sum.TotalDeliveries})
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.deps.Dashboard.Weekly(r.Context())
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, weeks)
}

func (s *Server) handleRestaurants(w http.ResponseWriter, r *http.Request) {
	order, err := ParseMerchantSort(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	merchants, err := s.deps.Dashboard.ByMerchant(r.Context(), order)
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, merchants)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	key, err := ParseLocationKey(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	counts, err := s.deps.Dashboard.Locations(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, counts)
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	cols, err := s.deps.Dashboard.TimeSeries(r.Context())
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, cols)
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Dashboard.Debug(r.Context())
	if err != nil {
		writeServiceError(w, r, log.OpReload, err)
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleDebugSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Dashboard.DebugSummary(r.Context())
	if err != nil {
		writeServiceError(w, r, log.OpReload, err)
		return
	}
	writeJSON(w, rows)
}
