package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartgarage/garage-core/internal/accesslog"
	"github.com/smartgarage/garage-core/internal/garage"
	"github.com/smartgarage/garage-core/internal/relay"
)

// garageView is a registration merged with live session state.
type garageView struct {
	garage.Registration
	Connected bool           `json:"connected"`
	Status    *garage.Status `json:"status,omitempty"`
}

// commandRequest is the request body for POST /garages/{id}/command.
type commandRequest struct {
	Action string `json:"action"`
}

// renameRequest is the request body for PATCH /garages/{id}.
type renameRequest struct {
	Name string `json:"name"`
}

// handleListGarages returns all registrations merged with live
// connection state and the last reported status.
func (s *Server) handleListGarages(w http.ResponseWriter, r *http.Request) {
	regs, err := s.garages.List(r.Context())
	if err != nil {
		s.logger.Error("list garages failed", "error", err)
		writeInternalError(w, "failed to list garages")
		return
	}

	views := make([]garageView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, s.buildView(reg))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"garages": views,
		"count":   len(views),
	})
}

// handleGetGarage returns a single registration with live state.
func (s *Server) handleGetGarage(w http.ResponseWriter, r *http.Request) {
	reg, err := s.garages.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, garage.ErrNotFound) {
			writeNotFound(w, "garage not found")
			return
		}
		s.logger.Error("get garage failed", "error", err)
		writeInternalError(w, "failed to get garage")
		return
	}

	writeJSON(w, http.StatusOK, s.buildView(*reg))
}

// handleGetGarageState returns the last reported status for a garage.
// An unknown garage and a garage that has never reported are distinct
// 404 cases so clients can tell them apart.
func (s *Server) handleGetGarageState(w http.ResponseWriter, r *http.Request) {
	reg, err := s.garages.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, garage.ErrNotFound) {
			writeNotFound(w, "garage not found")
			return
		}
		s.logger.Error("get garage failed", "error", err)
		writeInternalError(w, "failed to get garage")
		return
	}

	status, ok := s.registry.Status(reg.DeviceID)
	if !ok {
		writeNotFound(w, "no status reported yet")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleGarageCommand relays a single command to a garage's controller.
//
// Delivery is at-most-once and unconfirmed: a 202 means the frame was
// written to the device session, not that the door moved. Every attempt
// is recorded to the access log with its outcome.
func (s *Server) handleGarageCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	action, err := garage.ParseAction(req.Action)
	if err != nil {
		writeBadRequest(w, "action must be open, close, or stop")
		return
	}

	reg, err := s.garages.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, garage.ErrNotFound) {
			writeNotFound(w, "garage not found")
			return
		}
		s.logger.Error("get garage failed", "error", err)
		writeInternalError(w, "failed to get garage")
		return
	}

	actor := claimsFromContext(r.Context()).Subject

	if !reg.Approved {
		s.recordCommand(r, actor, reg.ID, action, accesslog.OutcomeDenied)
		writeForbidden(w, "garage is not approved for commands")
		return
	}

	switch err := s.relay.Send(r.Context(), reg.DeviceID, action); {
	case err == nil:
		s.recordCommand(r, actor, reg.ID, action, accesslog.OutcomeOK)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"garage_id": reg.ID,
			"action":    action,
			"delivered": true,
		})
	case errors.Is(err, relay.ErrNotConnected):
		s.recordCommand(r, actor, reg.ID, action, accesslog.OutcomeOffline)
		writeConflict(w, "device offline")
	default:
		s.logger.Error("command relay failed", "garage_id", reg.ID, "action", action, "error", err)
		s.recordCommand(r, actor, reg.ID, action, accesslog.OutcomeFailed)
		writeInternalError(w, "command delivery failed")
	}
}

// handleApproveGarage marks a registration as approved for commands.
func (s *Server) handleApproveGarage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.garages.SetApproved(r.Context(), id, true); err != nil {
		if errors.Is(err, garage.ErrNotFound) {
			writeNotFound(w, "garage not found")
			return
		}
		s.logger.Error("approve garage failed", "garage_id", id, "error", err)
		writeInternalError(w, "failed to approve garage")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("garage approved", "garage_id", id, "approved_by", claims.Subject)

	writeJSON(w, http.StatusOK, map[string]any{
		"garage_id": id,
		"approved":  true,
	})
}

// handleRenameGarage updates a registration's display name.
func (s *Server) handleRenameGarage(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.garages.Rename(r.Context(), id, req.Name); err != nil {
		if errors.Is(err, garage.ErrNotFound) {
			writeNotFound(w, "garage not found")
			return
		}
		s.logger.Error("rename garage failed", "garage_id", id, "error", err)
		writeInternalError(w, "failed to rename garage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"garage_id": id,
		"name":      req.Name,
	})
}

// buildView merges a registration with the registry's live view.
func (s *Server) buildView(reg garage.Registration) garageView {
	view := garageView{Registration: reg}
	if _, ok := s.registry.Connection(reg.DeviceID); ok {
		view.Connected = true
	}
	if status, ok := s.registry.Status(reg.DeviceID); ok {
		view.Status = &status
	}
	return view
}

// recordCommand writes a command attempt to the access log, best-effort.
func (s *Server) recordCommand(r *http.Request, actor, garageID string, action garage.Action, outcome string) {
	if s.accessLog == nil {
		return
	}
	entry := &accesslog.Entry{
		Actor:    actor,
		GarageID: garageID,
		Action:   string(action),
		Outcome:  outcome,
	}
	if err := s.accessLog.Create(r.Context(), entry); err != nil {
		s.logger.Warn("access log write failed", "actor", actor, "garage_id", garageID, "error", err)
	}
}
