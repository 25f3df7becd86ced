package api

import (
	"net/http"

	"radiohub/internal/app"
	"radiohub/internal/event"
	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/protocol"
)

type RoutesOptions struct {
	Router         *app.Router
	Bus            *event.Bus[protocol.Message]
	Metrics        *metrics.Registry
	Logger         *logging.Logger
	AllowedOrigins []string
	NetworkName    string
}

func RegisterRoutes(mux *http.ServeMux, options RoutesOptions) {
	logger := options.Logger
	if logger != nil {
		logger = logger.ForCategory("api")
	}
	rest := &RestHandler{
		Router:      options.Router,
		Metrics:     options.Metrics,
		Logger:      logger,
		NetworkName: options.NetworkName,
	}
	console := &ConsoleHandler{
		Router:         options.Router,
		Bus:            options.Bus,
		AllowedOrigins: options.AllowedOrigins,
		Logger:         logger,
	}

	logs := &LogsHandler{
		Logger:         logger,
		AllowedOrigins: options.AllowedOrigins,
	}

	mux.Handle("/ws", loggingMiddleware(logger, console))
	mux.Handle("/ws/logs", securityHeadersHandler(cacheControlNoStore, logs.ServeHTTP))
	mux.Handle("/api/affiliations", loggingMiddleware(logger, restHandler(rest.handleAffiliations)))
	mux.Handle("/api/sessions", loggingMiddleware(logger, restHandler(rest.handleSessions)))
	mux.Handle("/api/voice", loggingMiddleware(logger, restHandler(rest.handleVoice)))
	mux.Handle("/api/logs", restHandler(rest.handleLogs))
	mux.Handle("/healthz", restHandler(rest.handleHealth))
	mux.Handle("/metrics", restHandler(rest.handleMetrics))
}
