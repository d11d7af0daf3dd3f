package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/voxhost/voxhost/internal/engine"
	"github.com/voxhost/voxhost/internal/manager"
)

// speakRequest is the transport-side synthesis request.
type speakRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// speakResponse always carries success so polling callers never have to
// branch on status codes.
type speakResponse struct {
	Success  bool   `json:"success"`
	AudioRef string `json:"audioRef,omitempty"`
	Error    string `json:"error,omitempty"`
}

type voicesResponse struct {
	Voices []string `json:"voices"`
	Error  string   `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Response encode failed", "error", err)
	}
}

func (s *Server) handleListEngines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.ListEngines())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := engine.ID(r.PathValue("id"))

	cfg, err := s.mgr.Start(r.Context(), id)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, manager.ErrNotInstalled):
			status = http.StatusNotFound
		case errors.Is(err, manager.ErrStartupTimeout):
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Stop(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.Status(r.Context()))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.mgr.ActiveConfig(r.Context())
	if !ok {
		// No engine anywhere: the body is an explicit null, not an error.
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.mgr.Voices(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, voicesResponse{Voices: []string{}, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, voicesResponse{Voices: voices})
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, speakResponse{Error: "invalid request body"})
		return
	}

	res := s.mgr.Speak(r.Context(), req.Text, req.Voice)
	if !res.Success {
		writeJSON(w, http.StatusOK, speakResponse{Error: res.Err})
		return
	}

	ref, err := s.store.Put(res.Audio)
	if err != nil {
		writeJSON(w, http.StatusOK, speakResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, speakResponse{Success: true, AudioRef: "/audio/" + ref})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	path, ok := s.store.Path(r.PathValue("ref"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}
