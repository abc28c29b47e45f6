package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/logging"
)

// InitLogger installs the runtime logging profile and tags every event with app.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
