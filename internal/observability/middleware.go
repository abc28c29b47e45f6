package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// routeLabel prefers the registered route pattern so ids in paths do not
// explode label cardinality.
func routeLabel(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

// RequestLogger logs one line per request. Websocket upgrades hold the
// handler for the whole connection, so they are logged as sessions with
// their lifetime instead of a response status.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := c.IsWebsocket()
		c.Next()

		if upgrade {
			logger.Debug().
				Str("path", routeLabel(c)).
				Dur("lifetime", time.Since(start)).
				Str("client_ip", c.ClientIP()).
				Msg("websocket_session")
			return
		}

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", routeLabel(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http_request")
	}
}

// RequestMetricsMiddleware feeds the request histogram. Websocket upgrades
// go to the connection lifetime histogram instead.
func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := c.IsWebsocket()
		c.Next()

		if upgrade {
			RecordWebsocketSession(node, routeLabel(c), time.Since(start))
			return
		}
		RecordHTTPRequest(node, c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}
