package http

import (
	"errors"
	"net/http"
	"strings"

	"lucid/internal/budget"
	"lucid/internal/core"
	"lucid/internal/storage"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	year := parseYear(r)

	entries, err := s.reconciler.EntriesForYear(r.Context(), owner, year)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing budgets")
		return
	}
	if entries == nil {
		entries = []core.BudgetEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"year": year, "entries": entries})
}

type upsertBudgetRequest struct {
	Type     string     `json:"type"`
	Category string     `json:"category"`
	SubType  string     `json:"sub_type"`
	Year     int        `json:"year"`
	Month    *int       `json:"month"`
	Amount   core.Money `json:"amount"`
}

// handleUpsertBudget sets a yearly or monthly figure through the
// reconciler, which keeps the dual representation in sync.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	var req upsertBudgetRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := budget.Key{
		OwnerID:  owner,
		Type:     core.TransactionType(req.Type),
		Category: strings.TrimSpace(req.Category),
		Year:     req.Year,
	}
	subType := core.SubType(req.SubType)

	var err error
	if req.Month == nil {
		err = s.reconciler.SetYearly(r.Context(), key, subType, req.Amount)
	} else {
		err = s.reconciler.SetMonthly(r.Context(), key, *req.Month, subType, req.Amount)
	}
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.reconciler.EntriesForYear(r.Context(), owner, req.Year)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "reading budgets")
		return
	}

	s.invalidateViews(owner)

	updated := make([]core.BudgetEntry, 0, 13)
	for _, e := range entries {
		if e.Type == key.Type && e.Category == key.Category {
			updated = append(updated, e)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": updated})
}

func (s *Server) handleDeleteBudgetEntry(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id, err := pathID(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid budget entry id")
		return
	}

	err = s.reconciler.DeleteEntry(r.Context(), owner, id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "budget entry not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "deleting budget entry")
		return
	}

	s.invalidateViews(owner)
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteBudgetCategory removes a category's yearly and monthly rows
// in one shot. Keyed by query parameters: type, category, year.
func (s *Server) handleDeleteBudgetCategory(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	q := r.URL.Query()

	key := budget.Key{
		OwnerID:  owner,
		Type:     core.TransactionType(q.Get("type")),
		Category: strings.TrimSpace(q.Get("category")),
		Year:     parseYear(r),
	}
	if !core.ValidCategory(key.Type, key.Category) {
		httpError(w, http.StatusBadRequest, "invalid type/category combination")
		return
	}

	if err := s.reconciler.DeleteCategory(r.Context(), key); err != nil {
		httpError(w, http.StatusInternalServerError, "deleting budget category")
		return
	}

	s.invalidateViews(owner)
	w.WriteHeader(http.StatusNoContent)
}
