package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voxhost/voxhost/internal/config"
	"github.com/voxhost/voxhost/internal/engine"
	"github.com/voxhost/voxhost/internal/manager"
)

// fakeFacade is a canned-response manager.
type fakeFacade struct {
	engines  []manager.EngineInfo
	startCfg *manager.Config
	startErr error
	status   manager.Status
	cfg      *manager.Config
	voices   []string
	voiceErr error
	speak    manager.SpeakResult

	stopped bool
}

func (f *fakeFacade) ListEngines() []manager.EngineInfo { return f.engines }

func (f *fakeFacade) Start(_ context.Context, id engine.ID) (*manager.Config, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.startCfg, nil
}

func (f *fakeFacade) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeFacade) Status(context.Context) manager.Status { return f.status }

func (f *fakeFacade) ActiveConfig(context.Context) (*manager.Config, bool) {
	return f.cfg, f.cfg != nil
}

func (f *fakeFacade) Voices(context.Context) ([]string, error) {
	return f.voices, f.voiceErr
}

func (f *fakeFacade) Speak(context.Context, string, string) manager.SpeakResult {
	return f.speak
}

func newTestServer(t *testing.T, facade *fakeFacade) *httptest.Server {
	t.Helper()
	store, err := NewAudioStore(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	s := New(config.Config{}, facade, store, NewEventHub())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, dest any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, dest any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestListEnginesEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeFacade{
		engines: []manager.EngineInfo{
			{ID: engine.Chatterbox, Name: "Chatterbox TTS", Installed: false},
		},
	})

	var got []manager.EngineInfo
	if code := getJSON(t, srv.URL+"/api/engines", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(got) != 1 || got[0].ID != engine.Chatterbox || got[0].Installed {
		t.Errorf("engines = %+v", got)
	}
}

func TestStartEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		facade     *fakeFacade
		wantStatus int
	}{
		{
			name: "success",
			facade: &fakeFacade{startCfg: &manager.Config{
				Engine: engine.Chatterbox, BaseURL: "http://127.0.0.1:4123",
			}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not installed",
			facade:     &fakeFacade{startErr: fmt.Errorf("%w: chatterbox", manager.ErrNotInstalled)},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "readiness timeout",
			facade:     &fakeFacade{startErr: fmt.Errorf("%w: chatterbox", manager.ErrStartupTimeout)},
			wantStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.facade)
			var body map[string]any
			code := postJSON(t, srv.URL+"/api/engines/chatterbox/start", "", &body)
			if code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if body["engine"] != "chatterbox" {
					t.Errorf("body = %v", body)
				}
			} else if msg, _ := body["error"].(string); msg == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestStopEndpoint(t *testing.T) {
	facade := &fakeFacade{}
	srv := newTestServer(t, facade)

	var body map[string]bool
	if code := postJSON(t, srv.URL+"/api/stop", "", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !body["success"] || !facade.stopped {
		t.Errorf("stop result = %v, facade stopped = %v", body, facade.stopped)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeFacade{status: manager.Status{
		Running: true, Ready: true, Engine: engine.Kokoro,
	}})

	var got manager.Status
	getJSON(t, srv.URL+"/api/status", &got)
	if !got.Running || got.Engine != engine.Kokoro || got.PID != 0 {
		t.Errorf("status = %+v", got)
	}
}

func TestConfigEndpointNull(t *testing.T) {
	srv := newTestServer(t, &fakeFacade{})

	resp, err := http.Get(srv.URL + "/api/config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "null" {
		t.Errorf("body = %q, want null", body)
	}
}

func TestVoicesEndpointError(t *testing.T) {
	srv := newTestServer(t, &fakeFacade{voiceErr: manager.ErrNoEngine})

	var got voicesResponse
	if code := getJSON(t, srv.URL+"/api/voices", &got); code != http.StatusOK {
		t.Fatalf("status = %d, voices must stay poll-safe", code)
	}
	if got.Error == "" || len(got.Voices) != 0 {
		t.Errorf("response = %+v", got)
	}
}

func TestSpeakEndpointSuccessStoresAudio(t *testing.T) {
	srv := newTestServer(t, &fakeFacade{
		speak: manager.SpeakResult{Success: true, Audio: []byte("RIFFaudio")},
	})

	var got speakResponse
	code := postJSON(t, srv.URL+"/api/speak", `{"text":"Hello world","voice":"default"}`, &got)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !got.Success || !strings.HasPrefix(got.AudioRef, "/audio/") {
		t.Fatalf("response = %+v", got)
	}

	resp, err := http.Get(srv.URL + got.AudioRef)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	audio, _ := io.ReadAll(resp.Body)
	if string(audio) != "RIFFaudio" {
		t.Errorf("served audio = %q", audio)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("content type = %q", ct)
	}
}

func TestSpeakEndpointFailureIsStructured(t *testing.T) {
	srv := newTestServer(t, &fakeFacade{
		speak: manager.SpeakResult{Err: "Empty text"},
	})

	var got speakResponse
	code := postJSON(t, srv.URL+"/api/speak", `{"text":"","voice":""}`, &got)
	if code != http.StatusOK {
		t.Fatalf("status = %d, speak errors must not surface as HTTP errors", code)
	}
	if got.Success || got.Error != "Empty text" || got.AudioRef != "" {
		t.Errorf("response = %+v", got)
	}
}

func TestAudioEndpointUnknownRef(t *testing.T) {
	srv := newTestServer(t, &fakeFacade{})
	resp, err := http.Get(srv.URL + "/audio/doesnotexist.wav")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
