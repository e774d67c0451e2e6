package backend

import (
	"log/slog"
	"os"
	"time"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "A2UI_MODE"
	// ModeMock selects the built-in mock backend.
	ModeMock = "MOCK"
)

// New creates the backend chain. A2UI_MODE=MOCK selects the mock; otherwise
// baseURL selects the HTTP backend, and an empty baseURL leaves only the
// local structural actions.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}

	if os.Getenv(EnvMode) == ModeMock {
		logger.Info("A2UI_MODE=MOCK detected, using mock backend")
		return NewLocal(NewMock(), logger)
	}
	if baseURL == "" {
		logger.Warn("no backend url configured, only local actions are handled")
		return NewLocal(nil, logger)
	}
	return NewLocal(NewHTTPClient(baseURL, timeout), logger)
}
