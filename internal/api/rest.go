package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"radiohub/internal/app"
	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/protocol"
	"radiohub/internal/version"
)

const snapshotTimeout = 5 * time.Second

// RestHandler serves read-only views of console state. Reads go through the
// serialized loop, so a stalled loop shows up as a timeout.
type RestHandler struct {
	Router      *app.Router
	Metrics     *metrics.Registry
	Logger      *logging.Logger
	NetworkName string
}

type sessionResponse struct {
	ID      string `json:"id"`
	RID     string `json:"rid"`
	Channel string `json:"channel"`
	Mute    bool   `json:"mute"`
	Online  bool   `json:"online"`
}

type voiceResponse struct {
	LockedChannels []string `json:"lockedChannels"`
}

type healthResponse struct {
	Status  string              `json:"status"`
	Network string              `json:"network,omitempty"`
	Version version.VersionInfo `json:"version"`
}

func (h *RestHandler) handleAffiliations(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Router == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "console unavailable"}
	}
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()
	snapshot, err := h.Router.Affiliations(ctx)
	if err != nil {
		return h.snapshotError(err)
	}
	if snapshot == nil {
		snapshot = []protocol.Affiliation{}
	}
	writeJSON(w, http.StatusOK, snapshot)
	return nil
}

func (h *RestHandler) handleSessions(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Router == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "console unavailable"}
	}
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()
	sessions, err := h.Router.Sessions(ctx)
	if err != nil {
		return h.snapshotError(err)
	}
	response := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		response = append(response, sessionResponse{
			ID:      session.ID,
			RID:     session.Identity.RID.String(),
			Channel: session.Identity.Channel.String(),
			Mute:    session.Identity.Mute,
			Online:  session.Identity.Online,
		})
	}
	writeJSON(w, http.StatusOK, response)
	return nil
}

func (h *RestHandler) handleVoice(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Router == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "console unavailable"}
	}
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()
	channels, err := h.Router.LockedChannels(ctx)
	if err != nil {
		return h.snapshotError(err)
	}
	if channels == nil {
		channels = []string{}
	}
	writeJSON(w, http.StatusOK, voiceResponse{LockedChannels: channels})
	return nil
}

// handleLogs returns buffered log entries, oldest first. ?level= sets the
// minimum level and ?limit= keeps only the newest entries.
func (h *RestHandler) handleLogs(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Logger == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "log buffer unavailable"}
	}
	query := r.URL.Query()
	minLevel := logging.LevelDebug
	if raw := query.Get("level"); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			return &apiError{Status: http.StatusBadRequest, Message: "unknown log level"}
		}
		minLevel = level
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return &apiError{Status: http.StatusBadRequest, Message: "limit must be a non-negative integer"}
		}
		limit = parsed
	}

	entries := make([]logging.LogEntry, 0)
	for _, entry := range h.Logger.Buffer().List() {
		if entry.Level.AtLeast(minLevel) {
			entries = append(entries, entry)
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	writeJSON(w, http.StatusOK, entries)
	return nil
}

func (h *RestHandler) handleHealth(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Network: h.NetworkName, Version: version.GetVersionInfo()})
	return nil
}

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	registry := h.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := registry.WritePrometheus(w); err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "metrics unavailable"}
	}
	return nil
}

func (h *RestHandler) snapshotError(err error) *apiError {
	if h.Logger != nil {
		h.Logger.Warn("snapshot read failed", map[string]string{"error": err.Error()})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &apiError{Status: http.StatusGatewayTimeout, Message: "console busy"}
	}
	return &apiError{Status: http.StatusServiceUnavailable, Message: "console unavailable"}
}
