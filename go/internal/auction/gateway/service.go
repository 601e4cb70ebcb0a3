// Package gateway is the client-facing surface of the auction room: a JSON
// command API, a per-viewer state snapshot endpoint, and WebSocket fan-out
// of the committed event stream.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mattiabrun/fantalega/go/internal/auction"
	"github.com/mattiabrun/fantalega/go/internal/models"
)

// SessionDefaults are the configured league-level auction defaults applied
// when a create-session request leaves them out.
type SessionDefaults struct {
	TimerSeconds int
	RoleSequence []models.Role
}

// Service exposes the auction engine's operations over JSON HTTP. Commands
// mutate through the engine; reads go through the snapshot endpoint; live
// updates arrive over the WebSocket.
type Service struct {
	app      *auction.App
	defaults SessionDefaults
}

func NewService(app *auction.App, defaults SessionDefaults) *Service {
	return &Service{app: app, defaults: defaults}
}

// RegisterRoutes registers command and state routes on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("POST /api/sessions/advance-phase", s.handleAdvancePhase)
	mux.HandleFunc("POST /api/sessions/unfreeze", s.handleUnfreeze)
	mux.HandleFunc("GET /api/sessions/state", s.handleState)

	mux.HandleFunc("POST /api/auction/nominate", s.handleNominate)
	mux.HandleFunc("POST /api/auction/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/auction/cancel", s.handleCancel)
	mux.HandleFunc("POST /api/auction/ready", s.handleReady)
	mux.HandleFunc("POST /api/auction/force-ready", s.handleForceReady)
	mux.HandleFunc("POST /api/auction/bid", s.handleBid)
	mux.HandleFunc("POST /api/auction/close", s.handleClose)
	mux.HandleFunc("POST /api/auction/ack", s.handleAcknowledge)
	mux.HandleFunc("POST /api/auction/force-ack", s.handleForceAcknowledge)
	mux.HandleFunc("POST /api/auction/pass", s.handlePass)
}

// sessionActorRequest is the shared body of member- and admin-scoped
// commands on a session.
type sessionActorRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	MemberID  uuid.UUID `json:"member_id"`
}

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req auction.CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TimerSeconds <= 0 {
		req.TimerSeconds = s.defaults.TimerSeconds
	}
	if len(req.RoleSequence) == 0 {
		req.RoleSequence = s.defaults.RoleSequence
	}
	session, err := s.app.CreateSession(r.Context(), req)
	s.respond(w, session, err)
}

func (s *Service) handleAdvancePhase(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.AdvancePhase(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.UnfreezeSession(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, "valid session_id is required", http.StatusBadRequest)
		return
	}
	viewerID, err := uuid.Parse(r.URL.Query().Get("member_id"))
	if err != nil {
		http.Error(w, "valid member_id is required", http.StatusBadRequest)
		return
	}

	snapshot, err := s.app.Snapshot(r.Context(), sessionID, viewerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Service) handleNominate(w http.ResponseWriter, r *http.Request) {
	var req auction.NominateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.Nominate(r.Context(), req)
	s.respond(w, session, err)
}

func (s *Service) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.ConfirmNomination(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.CancelNomination(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.MarkReady(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handleForceReady(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.ForceAllReady(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handleBid(w http.ResponseWriter, r *http.Request) {
	var req auction.BidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.PlaceBid(r.Context(), req)
	s.respond(w, session, err)
}

func (s *Service) handleClose(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.CloseAuction(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.Acknowledge(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handleForceAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.ForceAcknowledgeAll(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) handlePass(w http.ResponseWriter, r *http.Request) {
	var req sessionActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.app.PassTurn(r.Context(), req.SessionID, req.MemberID)
	s.respond(w, session, err)
}

func (s *Service) respond(w http.ResponseWriter, session *models.MarketSession, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps engine sentinels onto HTTP statuses. The error string is
// the client-facing reason; internals stay in the server log.
func (s *Service) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auction.ErrSessionNotFound),
		errors.Is(err, auction.ErrMemberNotFound),
		errors.Is(err, auction.ErrPlayerUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, auction.ErrForbidden),
		errors.Is(err, auction.ErrNotYourTurn):
		status = http.StatusForbidden
	case errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrInsufficientBudget),
		errors.Is(err, auction.ErrRoleSlotFull):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, auction.ErrInvalidState),
		errors.Is(err, auction.ErrTimerExpired),
		errors.Is(err, auction.ErrSessionFrozen):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("command failed")
		http.Error(w, "internal error", status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
