package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pulseras/pulseras-go/libs/logging"
)

// HealthCheckResponse - response structure for healthchecks
type HealthCheckResponse struct {
	BuildTime string `json:"buildTime"`
	Commit    string `json:"commit"`
	Version   string `json:"version"`
	// service status is an accumulated map of service health structures mapped on service name
	ServiceStatus map[string]interface{} `json:"serviceStatus,omitempty"`
}

// RenderJSON - helper to render a HealthCheckResponse as Json to an http.ResponseWriter
func (hcr HealthCheckResponse) RenderJSON(ctx context.Context, w http.ResponseWriter) error {
	logger := logging.Logger(ctx, "handlers.HealthCheckResponse.RenderJSON")
	body, err := json.Marshal(hcr)
	if err != nil {
		return fmt.Errorf("failed to marshal response in render json: %w", err)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Error().Err(err).Msg("failed to write response to writer")
	}
	return nil
}

// StatusFunc reports the health of a dependency
type StatusFunc func(ctx context.Context) map[string]interface{}

// HealthCheckHandler - function which generates a health check http.HandlerFunc
func HealthCheckHandler(version, buildTime, commit string, status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.Logger(ctx, "handlers.HealthCheckHandler")

		hcr := HealthCheckResponse{
			Commit:    commit,
			BuildTime: buildTime,
			Version:   version,
		}
		if status != nil {
			hcr.ServiceStatus = status(ctx)
		}

		w.Header().Set("content-type", "application/json")
		if err := hcr.RenderJSON(ctx, w); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			if _, err := w.Write([]byte("unhealthy")); err != nil {
				logger.Error().Err(err).Msg("failed to write response to writer")
			}
		}
	}
}
