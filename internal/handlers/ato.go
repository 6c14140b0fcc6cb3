package handlers

import (
	"errors"
	"net/http"

	"ato_controller/internal/models"
	"ato_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK          = "ok"
	statusApplied     = "applied"
	statusMaintenance = "maintenance_set"
	statusReset       = "error_reset"
	statusRangeSet    = "temperature_range_set"
	statusNameSet     = "device_name_set"

	errGetState        = "failed to load state"
	errCommand         = "failed to apply command"
	errSaveSettings    = "failed to save settings"
	errHistory         = "failed to load temperature history"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// MaintenanceRequest toggles maintenance mode.
type MaintenanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required" example:"true"`
}

// TemperatureRangeRequest sets the alarm band in degrees Celsius.
type TemperatureRangeRequest struct {
	MinTemp *float64 `json:"min_temp" binding:"required" example:"24"`
	MaxTemp *float64 `json:"max_temp" binding:"required" example:"28"`
}

// DeviceNameRequest renames the device. "-ato" is appended when missing.
type DeviceNameRequest struct {
	DeviceName string `json:"device_name" binding:"required" example:"reef"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get controller status
// @Tags         ato
// @Produce      json
// @Success      200  {object}  models.Status
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "status_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Send a command
// @Description  Same payload as websocket and MQTT commands: {"maintenance":bool} and/or {"reset_error":true}
// @Tags         ato
// @Accept       json
// @Produce      json
// @Param        body  body   models.Command  true  "Command"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/control [post]
// @Security     BearerAuth
func (h *Handler) control(c *gin.Context) {
	var cmd models.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if cmd.Maintenance == nil && !cmd.ResetError {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + "empty command"})
		return
	}
	if err := h.services.Control.Execute(c.Request.Context(), cmd); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errCommand, "command_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusApplied, gin.H{})
}

// @Summary      Enter or leave maintenance mode
// @Tags         ato
// @Accept       json
// @Produce      json
// @Param        body  body   MaintenanceRequest  true  "Maintenance payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/maintenance [post]
// @Security     BearerAuth
func (h *Handler) setMaintenance(c *gin.Context) {
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Control.SetMaintenance(c.Request.Context(), *req.Enabled); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errCommand, "maintenance_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusMaintenance, gin.H{"maintenance": *req.Enabled})
}

// @Summary      Clear a latched pump timeout
// @Tags         ato
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/reset_error [post]
// @Security     BearerAuth
func (h *Handler) resetError(c *gin.Context) {
	if err := h.services.Control.ResetError(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errCommand, "reset_error_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusReset, gin.H{})
}

// @Summary      Set the temperature alarm band
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body   TemperatureRangeRequest  true  "Band payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/temperature_range [post]
// @Security     BearerAuth
func (h *Handler) setTemperatureRange(c *gin.Context) {
	var req TemperatureRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	err := h.services.Settings.SetTempRange(c.Request.Context(), *req.MinTemp, *req.MaxTemp)
	switch {
	case errors.Is(err, service.ErrInvalidTempRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errSaveSettings, "temperature_range_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusRangeSet, gin.H{})
}

// @Summary      Rename the device
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body   DeviceNameRequest  true  "Name payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/device_name [post]
// @Security     BearerAuth
func (h *Handler) setDeviceName(c *gin.Context) {
	var req DeviceNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	err := h.services.Settings.SetDeviceName(c.Request.Context(), req.DeviceName)
	switch {
	case errors.Is(err, service.ErrInvalidDeviceName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errSaveSettings, "device_name_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusNameSet, gin.H{"device_name": h.services.Settings.Device().DeviceName})
}

// @Summary      Temperature history
// @Description  Readings of the last 24 hours, oldest first
// @Tags         ato
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, readings"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/temperature_history [get]
// @Security     BearerAuth
func (h *Handler) temperatureHistory(c *gin.Context) {
	readings, err := h.services.Monitoring.TemperatureHistory(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errHistory, "temperature_history_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(readings),
		"readings": readings,
	})
}
