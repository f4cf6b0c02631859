package http

import (
	"fmt"
	"net/http"
)

func summaryKey(owner int64, year int, month *int) string {
	if month == nil {
		return fmt.Sprintf("owner:%d:summary:%d", owner, year)
	}
	return fmt.Sprintf("owner:%d:summary:%d-%02d", owner, year, *month)
}

func trendKey(owner int64, year int) string {
	return fmt.Sprintf("owner:%d:trend:%d", owner, year)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	year := parseYear(r)
	month, err := parseMonth(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := summaryKey(owner, year, month)
	if cached, ok := s.summaryCache.Get(key); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	summary, err := s.reconciler.Summarize(r.Context(), owner, year, month)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "computing summary")
		return
	}

	s.summaryCache.Set(key, summary)
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	year := parseYear(r)

	key := trendKey(owner, year)
	if cached, ok := s.trendCache.Get(key); ok {
		respondJSON(w, http.StatusOK, map[string]any{"year": year, "months": cached})
		return
	}

	trend, err := s.store.MonthlyTrend(r.Context(), owner, year)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "computing trend")
		return
	}

	s.trendCache.Set(key, trend)
	respondJSON(w, http.StatusOK, map[string]any{"year": year, "months": trend})
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	years, err := s.store.Years(r.Context(), owner)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing years")
		return
	}
	if years == nil {
		years = []int{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"years": years})
}
