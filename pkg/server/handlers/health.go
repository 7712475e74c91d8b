package handlers

import (
	"net/http"
	"os"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/go-tabgraph/pkg/server/dto"
)

const serviceName = "go-tabgraph"

// HealthHandler handles health check requests
type HealthHandler struct {
	dirs map[string]string
}

// NewHealthHandler creates a health handler whose readiness check requires
// each named directory to exist or be creatable.
func NewHealthHandler(dirs map[string]string) *HealthHandler {
	return &HealthHandler{dirs: dirs}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "healthy",
		Service: serviceName,
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	names := make([]string, 0, len(h.dirs))
	for name := range h.dirs {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := os.MkdirAll(h.dirs[name], 0o755); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	resp := dto.HealthResponse{Status: "ready", Service: serviceName, Checks: checks}
	if status != http.StatusOK {
		resp.Status = "not_ready"
	}
	c.JSON(status, resp)
}
