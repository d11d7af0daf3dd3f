// Package engine describes the TTS server engines voxhost knows how to
// supervise. Each engine is an external HTTP server with a fixed port and an
// OpenAI-compatible speech endpoint; descriptors are immutable and defined at
// startup.
package engine

import (
	"fmt"
	"strconv"
)

// ID identifies a supported engine.
type ID string

// Supported engines.
const (
	Chatterbox ID = "chatterbox"
	Kokoro     ID = "kokoro"
)

// Health is the normalized readiness payload of an engine's health endpoint.
type Health struct {
	Status      string
	ModelLoaded bool
}

// Ready reports whether the engine has finished initialization and can serve
// speech requests. A reachable endpoint alone is not enough; some engines
// answer 200 while still loading their model.
func (h Health) Ready() bool {
	return h.Status == "healthy" && h.ModelLoaded
}

// Descriptor is the static description of one engine. Descriptors never
// mutate after startup.
type Descriptor struct {
	ID          ID
	DisplayName string

	// Port is the fixed TCP port the engine listens on.
	Port int

	// Endpoint paths, relative to the base URL.
	HealthPath string
	VoicesPath string
	SpeechPath string

	// BinaryName is the executable base name without platform suffix.
	BinaryName string

	DefaultModel string
	DefaultVoice string

	// LaunchArgs builds the command line for a spawn. Pure.
	LaunchArgs func(modelsDir string, port int) []string

	// ExtraEnv returns engine-specific environment entries ("KEY=value"),
	// given the directory containing the binary. May be nil.
	ExtraEnv func(binDir string) []string

	// ParseHealth and ParseVoices adapt this engine's JSON shapes to the
	// normalized contract.
	ParseHealth func(body []byte) (Health, error)
	ParseVoices func(body []byte) ([]string, error)
}

// BaseURL returns the local base URL of the engine, without a trailing slash.
func (d *Descriptor) BaseURL() string {
	return "http://127.0.0.1:" + strconv.Itoa(d.Port)
}

var descriptors = map[ID]*Descriptor{
	Chatterbox: chatterboxDescriptor,
	Kokoro:     kokoroDescriptor,
}

// order keeps All and detection deterministic.
var order = []ID{Chatterbox, Kokoro}

// Lookup returns the descriptor for id. An unknown id is a programming
// error on the caller's side, surfaced as an error rather than a panic since
// ids cross the transport boundary as strings.
func Lookup(id ID) (*Descriptor, error) {
	d, ok := descriptors[id]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q", id)
	}
	return d, nil
}

// All returns the descriptors of every supported engine in stable order.
func All() []*Descriptor {
	out := make([]*Descriptor, 0, len(order))
	for _, id := range order {
		out = append(out, descriptors[id])
	}
	return out
}
