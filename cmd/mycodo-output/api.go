package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mycodo-go/mycodo-go/pkg/output"
	"github.com/mycodo-go/mycodo-go/pkg/registry"
	"github.com/mycodo-go/mycodo-go/pkg/service"
	"github.com/mycodo-go/mycodo-go/pkg/state"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// CommandResponse is returned by a successful command.
type CommandResponse struct {
	UniqueID string `json:"unique_id"`

	// State is the poll token of the new state.
	State string `json:"state"`

	// Remaining is the seconds until an automatic off, if one is armed.
	Remaining float64 `json:"remaining,omitempty"`
}

// AddRequest is the body of POST /api/v1/outputs.
type AddRequest struct {
	Type     output.Type `json:"type"`
	Quantity int         `json:"quantity"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, output.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, output.ErrInvalidQualifier),
		errors.Is(err, output.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, output.ErrDriverFailure):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, state.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && s.config.Logger != nil {
		s.config.Logger.Warn("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", output.ErrInvalidOperation, err)
	}
	return nil
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version := s.config.Version
	if version == "" {
		version = "dev"
	}
	status := "ok"
	if s.svc.State() != service.StateRunning {
		status = strings.ToLower(s.svc.State().String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": version,
		"outputs": len(s.svc.List()),
	})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Capabilities())
}

// handleState serves the poll map. An unavailable source is 204 so the
// client can tell it apart from an empty map.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.svc.Tokens()
	if errors.Is(err, state.ErrSourceUnavailable) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	outputs := s.svc.List()
	if outputs == nil {
		outputs = []output.Output{}
	}
	writeJSON(w, http.StatusOK, outputs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.Get(mux.Vars(r)["unique_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	req := AddRequest{Quantity: 1}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	added, err := s.svc.Add(req.Type, req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var attrs output.Attributes
	if err := decodeBody(r, &attrs); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.svc.Update(mux.Vars(r)["unique_id"], attrs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(mux.Vars(r)["unique_id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dir, err := registry.ParseDirection(vars["direction"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Reorder(vars["unique_id"], dir); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderAll(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if err := decodeBody(r, &ids); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.ReorderAll(ids); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommand executes {unique_id}/{on|off}[/{kind}[/{amount}]].
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := strings.Join(nonEmpty(vars["unique_id"], vars["action"], vars["kind"], vars["amount"]), "/")

	ack, err := s.svc.ExecuteID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := CommandResponse{UniqueID: ack.OutputID, State: ack.Status.Token()}
	if remaining, ok := s.svc.TimerRemaining(ack.OutputID); ok {
		resp.Remaining = remaining.Seconds()
	}
	writeJSON(w, http.StatusOK, resp)
}

func nonEmpty(parts ...string) []string {
	result := parts[:0]
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
