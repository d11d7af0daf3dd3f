package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// speechRequest is the OpenAI-compatible synthesis request body. Voice is
// omitted for the engine's default so the engine applies its own built-in
// default instead of being forced a value.
type speechRequest struct {
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
	Voice          string `json:"voice,omitempty"`
}

// SpeakResult is a structured outcome; Speak never returns a Go error
// because speak requests are routine and must not break a polling caller.
type SpeakResult struct {
	Success bool

	// Audio holds the raw synthesized bytes on success.
	Audio []byte

	// Err describes the failure; StatusCode carries the engine's HTTP
	// status when the failure was a non-2xx response.
	Err        string
	StatusCode int
}

// Speak synthesizes text through the current engine (managed or external).
// Empty text is a common caller mistake, rejected before any network work.
func (m *Manager) Speak(ctx context.Context, text, voice string) SpeakResult {
	if strings.TrimSpace(text) == "" {
		return SpeakResult{Err: "Empty text"}
	}

	act, ok := m.resolveActive(ctx)
	if !ok {
		return SpeakResult{Err: ErrNoEngine.Error()}
	}

	reqBody := speechRequest{
		Input:          text,
		ResponseFormat: "wav",
	}
	if voice != "" && voice != act.desc.DefaultVoice {
		reqBody.Voice = voice
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return SpeakResult{Err: fmt.Sprintf("unable to encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, act.baseURL+act.desc.SpeechPath, bytes.NewReader(payload))
	if err != nil {
		return SpeakResult{Err: fmt.Sprintf("unable to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		log.Warn("Speech request failed", "engine", act.desc.ID, "error", err)
		return SpeakResult{Err: fmt.Sprintf("speech request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Speech request rejected", "engine", act.desc.ID, "status", resp.StatusCode)
		return SpeakResult{
			Err:        fmt.Sprintf("engine returned HTTP %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return SpeakResult{Err: fmt.Sprintf("unable to read audio: %v", err)}
	}
	return SpeakResult{Success: true, Audio: audio}
}
