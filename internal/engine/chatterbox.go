package engine

import (
	"encoding/json"
	"path/filepath"
	"strconv"
)

// Chatterbox serves the OpenAI speech API behind /v1 and reports readiness on
// /health with an explicit model_loaded flag. Its voice list nests voice
// objects under "voices".
var chatterboxDescriptor = &Descriptor{
	ID:          Chatterbox,
	DisplayName: "Chatterbox TTS",
	Port:        4123,
	HealthPath:  "/health",
	VoicesPath:  "/v1/audio/voices",
	SpeechPath:  "/v1/audio/speech",

	BinaryName:   "chatterbox-server",
	DefaultModel: "chatterbox",
	DefaultVoice: "default",

	LaunchArgs: func(modelsDir string, port int) []string {
		return []string{
			"--host", "127.0.0.1",
			"--port", strconv.Itoa(port),
			"--model-cache", modelsDir,
		}
	},

	ExtraEnv: func(binDir string) []string {
		// The reference voice sample ships beside the binary.
		return []string{
			"CHATTERBOX_VOICE_SAMPLE=" + filepath.Join(binDir, "voice_sample.wav"),
		}
	},

	ParseHealth: parseChatterboxHealth,
	ParseVoices: parseChatterboxVoices,
}

func parseChatterboxHealth(body []byte) (Health, error) {
	var payload struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Health{}, err
	}
	return Health{Status: payload.Status, ModelLoaded: payload.ModelLoaded}, nil
}

func parseChatterboxVoices(body []byte) ([]string, error) {
	var payload struct {
		Voices []struct {
			Name string `json:"name"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(payload.Voices))
	for _, v := range payload.Voices {
		if v.Name != "" {
			names = append(names, v.Name)
		}
	}
	return names, nil
}
