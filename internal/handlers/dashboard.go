package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"quicktask/backend/internal/services"
)

type DashboardHandler struct {
	dashboardService services.DashboardService
	logger           zerolog.Logger
}

func NewDashboardHandler(dashboardService services.DashboardService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetDashboard always answers 200 once the summary is available; the
// productivity block is null when analytics could not be reached.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	dashboard, err := h.dashboardService.Dashboard(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *DashboardHandler) GetSummary(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	summary, err := h.dashboardService.Summary(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
