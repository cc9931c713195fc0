package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

const maxCommandBodyBytes = 1 << 20

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleSlots handles GET /api/v1/slots
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, QueryResponse{
		Data:        s.client.Snapshots(),
		LastFetched: s.client.GetCacheLastUpdate(),
	})
}

// handleSlot handles GET /api/v1/slots/{slot}
func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	slot := mux.Vars(r)["slot"]

	snap, ok := s.client.Snapshot(slot)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no snapshot for slot %s", slot))
		return
	}

	s.writeJSON(w, http.StatusOK, QueryResponse{
		Data:        snap,
		LastFetched: snap.FetchedAt,
	})
}

// handleEvents handles GET /api/v1/events/{type}?from_height=<h>
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventType := mux.Vars(r)["type"]

	view, ok := s.client.View(eventType)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("event type %s is not tracked", eventType))
		return
	}

	var fromHeight uint64
	if raw := r.URL.Query().Get("from_height"); raw != "" {
		h, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "from_height must be a non-negative integer")
			return
		}
		fromHeight = h
	}

	events := make([]ledger.LedgerEvent, 0, view.Len())
	for _, ev := range view.Events() {
		if ev.BlockHeight >= fromHeight {
			events = append(events, ev)
		}
	}

	s.writeJSON(w, http.StatusOK, EventsResponse{
		EventType: eventType,
		Count:     len(events),
		MaxHeight: view.MaxHeight(),
		Head:      s.client.Head(),
		Events:    events,
	})
}

// handleCommandCatalog handles GET /api/v1/commands
func (s *Server) handleCommandCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.client.Commands())
}

// handleSubmitCommand handles POST /api/v1/commands
func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req ledger.CommandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ref, outcome, err := s.client.SubmitCommand(r.Context(), req)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, CommandResponse{
			Ref:        ref,
			TargetSlot: req.TargetSlot,
			Outcome:    outcome,
		})
	case errors.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.IsSubmission(err):
		s.logger.Warn().Err(err).Str("ref", ref).Msg("command submission failed")
		s.writeJSON(w, http.StatusBadGateway, CommandResponse{
			Ref:        ref,
			TargetSlot: req.TargetSlot,
			Outcome:    ledger.Failed(err.Error()),
		})
	default:
		s.logger.Error().Err(err).Msg("unexpected command error")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleCommandStatus handles GET /api/v1/commands/{id}
func (s *Server) handleCommandStatus(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["id"]

	cmd, outcome, err := s.client.CommandStatus(ref)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cmd == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("command %s not found", ref))
		return
	}

	createdAt := cmd.CreatedAt
	s.writeJSON(w, http.StatusOK, CommandResponse{
		Ref:        cmd.Ref,
		TargetSlot: cmd.TargetSlot,
		Method:     cmd.Method,
		Outcome:    outcome,
		CreatedAt:  &createdAt,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
