package handlers

import (
	"errors"
	"net/http"

	"ato_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      Update pipeline status
// @Tags         updates
// @Produce      json
// @Success      200  {object}  models.UpdateStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/updates [get]
// @Security     BearerAuth
func (h *Handler) getUpdates(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Updates.Status())
}

// @Summary      Check the release manifest now
// @Tags         updates
// @Produce      json
// @Success      200  {object}  models.Availability
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/updates/check [post]
// @Security     BearerAuth
func (h *Handler) checkUpdates(c *gin.Context) {
	a, err := h.services.Updates.Check(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "manifest check failed: "+err.Error(), "update_check_failed", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary      Install the pending update
// @Description  Firmware is installed before content. The task runs in the background; poll /api/v1/updates or watch /ws.
// @Tags         updates
// @Produce      json
// @Success      202  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/updates/apply [post]
// @Security     BearerAuth
func (h *Handler) applyUpdate(c *gin.Context) {
	kind, err := h.services.Updates.Apply(c.Request.Context())
	switch {
	case errors.Is(err, service.ErrUpdateInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrNoUpdateAvailable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to start update", "update_apply_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "kind": string(kind)})
}
