package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"lucid/internal/core"
	"lucid/internal/storage"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	q := r.URL.Query()

	filter := storage.TransactionFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   sanitizeInput(q.Get("search")),
	}
	if v := q.Get("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			filter.Year = y
		}
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			httpError(w, http.StatusBadRequest, "invalid month")
			return
		}
		filter.Month = m
	}
	if v := q.Get("type"); v != "" {
		t := core.TransactionType(v)
		if !core.ValidType(t) {
			httpError(w, http.StatusBadRequest, "invalid type")
			return
		}
		filter.Type = t
	}
	if v := q.Get("source"); v != "" {
		filter.Source = core.Source(v)
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	txns, err := s.store.ListTransactions(r.Context(), owner, filter)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing transactions")
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

type patchTransactionRequest struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	SubType  string `json:"sub_type"`
}

// handlePatchTransaction recategorizes one transaction by hand. Manual
// labels go through the same taxonomy checks as everything else.
func (s *Server) handlePatchTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id, err := pathID(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req patchTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := s.store.GetTransaction(r.Context(), owner, id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "reading transaction")
		return
	}

	typ := current.Type
	if req.Type != "" {
		typ = core.TransactionType(req.Type)
	}
	category := current.Category
	if req.Category != "" {
		category = req.Category
	}
	if !core.ValidCategory(typ, category) {
		httpError(w, http.StatusBadRequest, "invalid type/category combination")
		return
	}

	subType := current.SubType
	if req.SubType != "" {
		subType = core.SubType(req.SubType)
		if !core.ValidSubType(subType) {
			httpError(w, http.StatusBadRequest, "invalid sub_type")
			return
		}
	}
	subType = core.AutoSubType(category, subType)

	if err := s.store.Recategorize(r.Context(), owner, id, typ, category, subType); err != nil {
		httpError(w, http.StatusInternalServerError, "updating transaction")
		return
	}

	updated, err := s.store.GetTransaction(r.Context(), owner, id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "reading transaction")
		return
	}

	s.invalidateViews(owner)
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id, err := pathID(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	err = s.store.DeleteTransaction(r.Context(), owner, id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "deleting transaction")
		return
	}

	s.invalidateViews(owner)
	w.WriteHeader(http.StatusNoContent)
}
