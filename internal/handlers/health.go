// Package handlers provides the HTTP and Lambda handlers for the rental
// application engine.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"

	appConfig "rental-application-engine/internal/config"
	"rental-application-engine/internal/services/database"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db      HealthChecker
	closeDB func()
}

// NewHealthHandler creates a health handler with its own database pool.
// A missing or unreachable database leaves the handler without one.
func NewHealthHandler() (*HealthHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return &HealthHandler{}, nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return &HealthHandler{}, nil
	}

	return &HealthHandler{db: db, closeDB: db.Close}, nil
}

// NewHealthHandlerWith creates a health handler over an existing checker, which may be nil.
func NewHealthHandlerWith(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Stage     string `json:"stage"`
	Database  string `json:"database,omitempty"`
}

func (h *HealthHandler) check(ctx context.Context) (HealthResponse, int) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "rental-application-engine",
		Version:   getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Stage:     getEnvOrDefault("STAGE", "unknown"),
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			response.Database = "disconnected"
			response.Status = "degraded"
		} else {
			response.Database = "connected"
		}
	} else {
		response.Database = "not configured"
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	return response, statusCode
}

// Handle processes API Gateway health check requests.
func (h *HealthHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Content-Type":                "application/json",
	}

	response, statusCode := h.check(ctx)
	body, _ := json.Marshal(response)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// ServeHTTP serves the same health payload over net/http.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response, statusCode := h.check(r.Context())
	writeJSON(w, statusCode, response)
}

// Close cleans up resources.
func (h *HealthHandler) Close() {
	if h.closeDB != nil {
		h.closeDB()
	}
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
