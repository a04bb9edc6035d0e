package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"soldi/internal/core"
	"soldi/internal/identity"
	"soldi/internal/tracker"
)

type (
	loginRequest struct {
		Token string `json:"token"`
	}

	// transactionRequest serves both add and patch payloads; the add path
	// treats absent fields as zero values and lets input validation name the
	// first violated field.
	transactionRequest struct {
		Type        *string          `json:"type"`
		Amount      *decimal.Decimal `json:"amount"`
		Description *string          `json:"description"`
		Category    *string          `json:"category"`
		Date        *string          `json:"date"`
	}

	stateResponse struct {
		State           tracker.State `json:"state"`
		Loading         bool          `json:"loading"`
		SignedIn        bool          `json:"signedIn"`
		OwnerID         string        `json:"ownerId,omitempty"`
		MaxTransactions int           `json:"maxTransactions"`
	}

	errorResponse struct {
		Error string `json:"error"`
		Field string `json:"field,omitempty"`
	}
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ownerID, err := s.identity.SignIn(req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ownerId": ownerID})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.identity.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	ownerID, signedIn := s.identity.Current()
	writeJSON(w, http.StatusOK, stateResponse{
		State:           s.tracker.State(),
		Loading:         s.tracker.Loading(),
		SignedIn:        signedIn,
		OwnerID:         ownerID,
		MaxTransactions: s.tracker.MaxTransactions(),
	})
}

func (s *Server) handleStartDemo(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.StartDemo(); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopDemo(w http.ResponseWriter, _ *http.Request) {
	s.tracker.StopDemo()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	vocabulary, err := s.vocab.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vocabulary)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	opts := tracker.FetchOptions{
		ForceRefresh:      queryBool(r, "force"),
		RevalidateIfFresh: queryBool(r, "revalidate"),
	}
	txs, err := s.tracker.FetchAllTransactions(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	in := core.TransactionInput{}
	if req.Type != nil {
		in.Type = core.Type(*req.Type)
	}
	if req.Amount != nil {
		in.Amount = *req.Amount
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Category != nil {
		in.Category = *req.Category
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid date", Field: "date"})
			return
		}
		in.Date = date
	}

	tx, err := s.tracker.AddTransaction(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	patch := core.TransactionPatch{
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Type != nil {
		t := core.Type(*req.Type)
		if !t.IsValid() {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid type", Field: "type"})
			return
		}
		patch.Type = &t
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid date", Field: "date"})
			return
		}
		patch.Date = &date
	}

	tx, err := s.tracker.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.tracker.GetTotalTransactionCount(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	canAdd, err := s.tracker.CanAddMoreTransactions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":           count,
		"canAdd":          canAdd,
		"maxTransactions": s.tracker.MaxTransactions(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	periodKey := strings.TrimSpace(r.URL.Query().Get("period"))
	if periodKey == "" {
		periodKey = string(core.PeriodMonth)
	}
	period, err := core.ParsePeriod(periodKey)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid period", Field: "period"})
		return
	}

	var custom *core.DateRange
	if from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to"); from != "" && to != "" {
		fromDate, fromErr := parseDate(from)
		toDate, toErr := parseDate(to)
		if fromErr == nil && toErr == nil {
			custom = &core.DateRange{From: fromDate, To: toDate}
		}
	}

	window := core.PeriodRange(period, custom, time.Now())
	stats, err := s.tracker.GetStats(r.Context(), window.From, window.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":  window.From,
		"to":    window.To,
		"stats": stats,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "transaction not found"})
	case errors.Is(err, core.ErrDemoLimitReached):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, tracker.ErrInactive), errors.Is(err, tracker.ErrDemoUnavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, identity.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryBool(r *http.Request, key string) bool {
	return r.URL.Query().Get(key) == "true"
}

// parseDate accepts date-only and RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
