package manager

import "errors"

// Errors returned by Start, the one facade operation that fails loudly.
// Query operations degrade to zero values instead so they stay safe to poll.
var (
	// ErrNotInstalled means the engine binary is absent at its resolved
	// path. Not retried automatically.
	ErrNotInstalled = errors.New("engine is not installed")

	// ErrSpawnFailed means the OS process could not be started.
	ErrSpawnFailed = errors.New("engine process failed to start")

	// ErrStartupTimeout means the engine never reported healthy within the
	// startup window. The partially-started process has already been
	// terminated by the time this is returned.
	ErrStartupTimeout = errors.New("engine did not become ready in time")

	// ErrNoEngine means neither a managed process nor an external instance
	// is available.
	ErrNoEngine = errors.New("no TTS engine is running")
)
