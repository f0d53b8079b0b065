package api

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// StoreChecker is satisfied by every document store backend.
type StoreChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnChecker reports connectivity of an optional dependency.
type ConnChecker interface {
	IsConnected() bool
}

type HealthHandler struct {
	store       StoreChecker
	backend     string
	mqtt        ConnChecker
	speechReady bool
	version     string
	startTime   time.Time
}

func NewHealthHandler(store StoreChecker, backend string, mqtt ConnChecker, speechReady bool, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		store:       store,
		backend:     backend,
		mqtt:        mqtt,
		speechReady: speechReady,
		version:     version,
		startTime:   startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Store check
	if err := h.store.HealthCheck(r.Context()); err != nil {
		checks["store"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	checks["store_backend"] = h.backend

	// MQTT check
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

	// Missing key is reported per request, so it only degrades.
	if h.speechReady {
		checks["speech"] = "ok"
	} else {
		checks["speech"] = "not_configured"
		if status == "healthy" {
			status = "degraded"
		}
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
