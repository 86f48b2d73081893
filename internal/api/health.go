package api

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Provider      string            `json:"provider,omitempty"`
	Model         string            `json:"model,omitempty"`
	DenylistSize  int               `json:"denylist_size"`
}

// ConnectionChecker reports whether an optional upstream is connected.
type ConnectionChecker interface {
	IsConnected() bool
}

// ProviderInfo identifies the configured transcription backend.
type ProviderInfo interface {
	Name() string
	Model() string
}

type HealthHandler struct {
	locate    func() (string, error)
	provider  ProviderInfo
	denylist  interface{ Len() int }
	mqtt      ConnectionChecker
	version   string
	startTime time.Time
}

// HealthOptions configures a HealthHandler. Locate resolves the ffmpeg
// binary; MQTT is nil when event publishing is not configured.
type HealthOptions struct {
	Locate    func() (string, error)
	Provider  ProviderInfo
	Denylist  interface{ Len() int }
	MQTT      ConnectionChecker
	Version   string
	StartTime time.Time
}

func NewHealthHandler(opts HealthOptions) *HealthHandler {
	return &HealthHandler{
		locate:    opts.Locate,
		provider:  opts.Provider,
		denylist:  opts.Denylist,
		mqtt:      opts.MQTT,
		version:   opts.Version,
		startTime: opts.StartTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// ffmpeg is required for every /analyze request
	if h.locate != nil {
		if _, err := h.locate(); err != nil {
			checks["ffmpeg"] = "missing"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["ffmpeg"] = "ok"
		}
	}

	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}
	if h.provider != nil {
		resp.Provider = h.provider.Name()
		resp.Model = h.provider.Model()
		checks["transcription"] = "ok"
	} else {
		checks["transcription"] = "not_configured"
	}
	if h.denylist != nil {
		resp.DenylistSize = h.denylist.Len()
	}

	WriteJSON(w, httpStatus, resp)
}
