package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/dispatcher"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
)

// registerRequest is the body of POST /register.
type registerRequest struct {
	AgentName    string   `json:"agent_name"`
	Capabilities []string `json:"capabilities"`
}

// heartbeatRequest is the body of POST /heartbeat.
type heartbeatRequest struct {
	AgentName string `json:"agent_name"`
	Status    string `json:"status,omitempty"`
}

// statusResponse is the body of GET /status.
type statusResponse struct {
	Tasks  map[string]int  `json:"tasks"`
	Agents []*domain.Agent `json:"agents"`
	Now    time.Time       `json:"now"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.deps != nil {
		if report := s.deps.LastReport(); report != nil {
			body["dependencies_ok"] = report.Ok()
			body["dependencies_checked_at"] = report.RanAt
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	agents, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	counts := make(map[string]int)
	for _, task := range tasks {
		counts[string(task.Status)]++
	}
	writeJSON(w, http.StatusOK, statusResponse{Tasks: counts, Agents: agents, Now: time.Now().UTC()})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	agent, err := s.registry.Register(r.Context(), req.AgentName, req.Capabilities)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if !s.decode(w, r, &req) {
		return
	}
	agent, err := s.registry.Heartbeat(r.Context(), req.AgentName, constants.AgentStatus(req.Status))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.dispatcher.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.dispatcher.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.registry.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// decode parses a JSON request body, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// writeError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, foremanerrors.ErrTaskNotFound), errors.Is(err, foremanerrors.ErrUnknownAgent):
		status = http.StatusNotFound
	case errors.Is(err, foremanerrors.ErrDuplicateTask):
		status = http.StatusConflict
	case errors.Is(err, foremanerrors.ErrEmptyValue), errors.Is(err, foremanerrors.ErrInvalidStatus):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
