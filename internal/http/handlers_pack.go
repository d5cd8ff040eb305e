package http

import (
	"errors"
	"log/slog"
	"net/http"

	"hogar/internal/core"
)

type packView struct {
	ID              int64    `json:"id"`
	ServiceName     string   `json:"service_name"`
	TotalSessions   int      `json:"total_sessions"`
	UsedSessions    int      `json:"used_sessions"`
	Remaining       int      `json:"remaining"`
	Exhausted       bool     `json:"exhausted"`
	ProgressPercent float64  `json:"progress_percent"`
	AmountPaid      float64  `json:"amount_paid"`
	LastPaymentDate string   `json:"last_payment_date"`
	SessionDates    []string `json:"session_dates"`
}

func toPackView(p core.ServicePack) packView {
	dates := make([]string, len(p.SessionDates))
	for i, d := range p.SessionDates {
		dates[i] = d.String()
	}
	return packView{
		ID:              p.ID,
		ServiceName:     p.ServiceName,
		TotalSessions:   p.TotalSessions,
		UsedSessions:    p.UsedSessions,
		Remaining:       p.Remaining(),
		Exhausted:       p.Exhausted(),
		ProgressPercent: p.ProgressPercent(),
		AmountPaid:      p.AmountPaid.Euros(),
		LastPaymentDate: p.LastPaymentDate.String(),
		SessionDates:    dates,
	}
}

type createPackRequest struct {
	ServiceName     string `json:"service_name" validate:"required,min=1,max=100"`
	TotalSessions   int    `json:"total_sessions" validate:"required,min=1,max=1000"`
	AmountPaid      string `json:"amount_paid" validate:"omitempty,max=16"`
	LastPaymentDate string `json:"last_payment_date" validate:"omitempty,datetime=2006-01-02"`
}

type packActionRequest struct {
	ID   int64  `json:"id" validate:"required,min=1"`
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// handlePacks serves the pack list on GET and creates a pack on POST.
func (s *Server) handlePacks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handlePackList(w, r)
	case http.MethodPost:
		s.handlePackCreate(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePackList(w http.ResponseWriter, r *http.Request) {
	packs, err := s.listPacksCached(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Pack list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not list packs")
		return
	}

	views := make([]packView, len(packs))
	for i, p := range packs {
		views[i] = toPackView(p)
	}
	respondJSON(w, http.StatusOK, map[string]any{"packs": views})
}

func (s *Server) listPacksCached(r *http.Request) ([]core.ServicePack, error) {
	if cached, found := s.packsCache.Get(packsView); found {
		return cached, nil
	}
	packs, err := s.packs.ListPacks(r.Context())
	if err != nil {
		return nil, err
	}
	s.packsCache.Set(packsView, packs)
	return packs, nil
}

func (s *Server) handlePackCreate(w http.ResponseWriter, r *http.Request) {
	var req createPackRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	pack := core.ServicePack{
		ServiceName:   sanitizeInput(req.ServiceName),
		TotalSessions: req.TotalSessions,
	}
	if req.AmountPaid != "" {
		cents, err := core.ParseNonNegativeCents(req.AmountPaid)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "invalid amount_paid")
			return
		}
		pack.AmountPaid = core.Money{Cents: cents}
	}
	if req.LastPaymentDate != "" {
		d, err := core.ParseDate(req.LastPaymentDate)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "invalid last_payment_date")
			return
		}
		pack.LastPaymentDate = d
	}

	created, err := s.packs.CreatePack(r.Context(), pack)
	if err != nil {
		if isValidationError(err) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Pack creation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not create pack")
		return
	}

	s.invalidatePacks()
	respondJSON(w, http.StatusCreated, toPackView(created))
}

func (s *Server) handlePackConsume(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req packActionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	date, ok := s.parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	pack, err := s.packs.ConsumeSession(r.Context(), req.ID, date)
	if err != nil {
		s.respondPackError(w, r, "consume", err)
		return
	}

	s.invalidatePacks()
	respondJSON(w, http.StatusOK, toPackView(pack))
}

func (s *Server) handlePackRenew(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req packActionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	date, ok := s.parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	pack, err := s.packs.RenewPack(r.Context(), req.ID, date)
	if err != nil {
		s.respondPackError(w, r, "renew", err)
		return
	}

	s.invalidatePacks()
	respondJSON(w, http.StatusOK, toPackView(pack))
}

func (s *Server) handlePackDelete(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req packActionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.packs.DeletePack(r.Context(), req.ID); err != nil {
		s.respondPackError(w, r, "delete", err)
		return
	}

	s.invalidatePacks()
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) parseOptionalDate(w http.ResponseWriter, raw string) (core.Date, bool) {
	if raw == "" {
		return core.Date{}, true
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid date")
		return core.Date{}, false
	}
	return d, true
}

func (s *Server) respondPackError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, core.ErrNotFound) {
		respondError(w, http.StatusNotFound, "pack not found")
		return
	}
	slog.ErrorContext(r.Context(), "Pack operation failed", "op", op, "error", err)
	respondError(w, http.StatusInternalServerError, "pack operation failed")
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyServiceName) ||
		errors.Is(err, core.ErrInvalidSessionCount) ||
		errors.Is(err, core.ErrInvalidAmount)
}
