package engine

import (
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		id      ID
		wantErr bool
	}{
		{name: "chatterbox", id: Chatterbox, wantErr: false},
		{name: "kokoro", id: Kokoro, wantErr: false},
		{name: "unknown", id: ID("espeak"), wantErr: true},
		{name: "empty", id: ID(""), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Lookup(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Lookup(%q) expected error, got %+v", tt.id, d)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) unexpected error: %v", tt.id, err)
			}
			if d.ID != tt.id {
				t.Errorf("Lookup(%q).ID = %q", tt.id, d.ID)
			}
		})
	}
}

func TestAllStableOrder(t *testing.T) {
	descs := All()
	if len(descs) != 2 {
		t.Fatalf("All() returned %d descriptors, want 2", len(descs))
	}
	if descs[0].ID != Chatterbox || descs[1].ID != Kokoro {
		t.Errorf("All() order = [%s %s], want [chatterbox kokoro]", descs[0].ID, descs[1].ID)
	}
}

func TestDescriptorInvariants(t *testing.T) {
	for _, d := range All() {
		t.Run(string(d.ID), func(t *testing.T) {
			if d.Port <= 0 {
				t.Errorf("port = %d", d.Port)
			}
			if d.BinaryName == "" || d.DefaultVoice == "" || d.DefaultModel == "" {
				t.Errorf("incomplete descriptor: %+v", d)
			}
			for _, p := range []string{d.HealthPath, d.VoicesPath, d.SpeechPath} {
				if !strings.HasPrefix(p, "/") {
					t.Errorf("path %q is not absolute", p)
				}
			}
			if d.LaunchArgs == nil || d.ParseHealth == nil || d.ParseVoices == nil {
				t.Error("descriptor is missing a builder or parser")
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	d, _ := Lookup(Chatterbox)
	if got := d.BaseURL(); got != "http://127.0.0.1:4123" {
		t.Errorf("BaseURL() = %q", got)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name string
		h    Health
		want bool
	}{
		{name: "healthy and loaded", h: Health{Status: "healthy", ModelLoaded: true}, want: true},
		{name: "healthy but still loading", h: Health{Status: "healthy"}, want: false},
		{name: "initializing", h: Health{Status: "initializing", ModelLoaded: true}, want: false},
		{name: "zero value", h: Health{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.Ready(); got != tt.want {
				t.Errorf("Ready() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChatterboxLaunchArgs(t *testing.T) {
	d, _ := Lookup(Chatterbox)
	args := d.LaunchArgs("/data/models/chatterbox", 4123)
	want := []string{"--host", "127.0.0.1", "--port", "4123", "--model-cache", "/data/models/chatterbox"}
	if len(args) != len(want) {
		t.Fatalf("LaunchArgs = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestParseChatterboxVoices(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr bool
	}{
		{
			name: "nested voice objects",
			body: `{"voices":[{"name":"default"},{"name":"emma"},{"name":"liam"}]}`,
			want: []string{"default", "emma", "liam"},
		},
		{name: "empty list", body: `{"voices":[]}`, want: nil},
		{name: "missing key", body: `{}`, want: nil},
		{name: "nameless entries skipped", body: `{"voices":[{"id":"x"},{"name":"emma"}]}`, want: []string{"emma"}},
		{name: "malformed", body: `{"voices":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChatterboxVoices([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("voices = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("voices[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseKokoroVoices(t *testing.T) {
	got, err := parseKokoroVoices([]byte(`{"voices":["af_heart","am_adam"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "af_heart" || got[1] != "am_adam" {
		t.Errorf("voices = %v", got)
	}
}

func TestParseHealthShapes(t *testing.T) {
	tests := []struct {
		name   string
		parse  func([]byte) (Health, error)
		body   string
		ready  bool
	}{
		{
			name:  "chatterbox ready",
			parse: parseChatterboxHealth,
			body:  `{"status":"healthy","model_loaded":true}`,
			ready: true,
		},
		{
			name:  "chatterbox loading",
			parse: parseChatterboxHealth,
			body:  `{"status":"healthy","model_loaded":false}`,
			ready: false,
		},
		{
			name:  "kokoro ready",
			parse: parseKokoroHealth,
			body:  `{"status":"healthy","model_ready":true}`,
			ready: true,
		},
		{
			name:  "kokoro wrong field name ignored",
			parse: parseKokoroHealth,
			body:  `{"status":"healthy","model_loaded":true}`,
			ready: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := tt.parse([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h.Ready() != tt.ready {
				t.Errorf("Ready() = %v, want %v", h.Ready(), tt.ready)
			}
		})
	}
}
