package http

import (
	"errors"
	"log/slog"
	"net/http"

	"lucid/internal/classify"
	"lucid/internal/core"
	"lucid/internal/storage"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	rules, err := s.store.ListRules(r.Context(), owner)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing rules")
		return
	}
	if rules == nil {
		rules = []core.Rule{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

type ruleRequest struct {
	Pattern       string     `json:"pattern"`
	IsRegex       bool       `json:"is_regex"`
	CaseSensitive bool       `json:"case_sensitive"`
	AmountOp      string     `json:"amount_op"`
	Amount        core.Money `json:"amount"`
	Type          string     `json:"type"`
	Category      string     `json:"category"`
	Priority      int        `json:"priority"`
	Active        *bool      `json:"active"`
}

func (req *ruleRequest) toRule(owner int64) core.Rule {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.Rule{
		OwnerID:       &owner,
		Pattern:       sanitizeInput(req.Pattern),
		IsRegex:       req.IsRegex,
		CaseSensitive: req.CaseSensitive,
		AmountOp:      core.AmountOp(req.AmountOp),
		AmountCents:   req.Amount.Cents,
		Type:          core.TransactionType(req.Type),
		Category:      req.Category,
		Priority:      req.Priority,
		Active:        active,
	}
}

// checkRule runs the domain validation plus a compile check, so a broken
// regex is rejected at authoring time instead of at classification time.
func checkRule(rule core.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.IsRegex {
		probe := rule
		probe.Active = true
		if _, err := classify.NewRuleSet([]core.Rule{probe}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule := req.toRule(owner)
	if err := checkRule(rule); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateRule(r.Context(), rule)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "creating rule")
		return
	}

	slog.InfoContext(r.Context(), "Rule created",
		"owner_id", owner,
		"rule_id", created.ID,
		"pattern", created.Pattern,
		"category", created.Category,
		"priority", created.Priority)
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id, err := pathID(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule := req.toRule(owner)
	rule.ID = id
	if err := checkRule(rule); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.store.UpdateRule(r.Context(), owner, rule)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "updating rule")
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id, err := pathID(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	err = s.store.DeleteRule(r.Context(), owner, id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "deleting rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplyRules re-runs the active rules over existing transactions.
// With a queue configured the job runs in the worker; without one it runs
// inline before responding.
func (s *Server) handleApplyRules(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	if s.publisher != nil {
		msg, err := s.publisher.PublishReapplyRules(r.Context(), owner)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to enqueue reapply-rules job",
				"owner_id", owner, "error", err)
			httpError(w, http.StatusServiceUnavailable, "enqueueing job")
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]any{
			"status": "queued",
			"job_id": msg.JobID,
		})
		return
	}

	result, err := s.ingester.ApplyRules(r.Context(), owner)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "applying rules")
		return
	}

	s.invalidateViews(owner)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "completed",
		"scanned": result.Scanned,
		"updated": result.Updated,
	})
}
