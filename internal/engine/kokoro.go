package engine

import (
	"encoding/json"
	"strconv"
)

// Kokoro exposes the same speech API but returns its voice list as a flat
// array of names and calls its model flag "model_ready".
var kokoroDescriptor = &Descriptor{
	ID:          Kokoro,
	DisplayName: "Kokoro TTS",
	Port:        8880,
	HealthPath:  "/health",
	VoicesPath:  "/v1/audio/voices",
	SpeechPath:  "/v1/audio/speech",

	BinaryName:   "kokoro-server",
	DefaultModel: "kokoro",
	DefaultVoice: "af_heart",

	LaunchArgs: func(modelsDir string, port int) []string {
		return []string{
			"--host", "127.0.0.1",
			"--port", strconv.Itoa(port),
			"--models-dir", modelsDir,
		}
	},

	ParseHealth: parseKokoroHealth,
	ParseVoices: parseKokoroVoices,
}

func parseKokoroHealth(body []byte) (Health, error) {
	var payload struct {
		Status     string `json:"status"`
		ModelReady bool   `json:"model_ready"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Health{}, err
	}
	return Health{Status: payload.Status, ModelLoaded: payload.ModelReady}, nil
}

func parseKokoroVoices(body []byte) ([]string, error) {
	var payload struct {
		Voices []string `json:"voices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload.Voices, nil
}
