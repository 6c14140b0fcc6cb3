package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ato_controller/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid  = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid    = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errSinceInvalid = "invalid 'since'; use a positive duration such as 90m or 24h"
	errSinceAndFrom = "'since' and 'from' are mutually exclusive"
	errLimitInvalid = "invalid 'limit'; use 1..1000"
	errRangeOrder   = "'from' must be <= 'to'"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"

	maxLogLimit = 1000
)

// logQueryError carries the message returned to the client with a 400.
type logQueryError string

func (e logQueryError) Error() string { return string(e) }

// @Summary      List logs
// @Description  Operator log of pump runs, faults, maintenance, configuration and update events.
// @Description  'from'/'to' accept RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD' (a date-only 'to' covers the whole day).
// @Description  'since' is a relative lower bound; 'limit' keeps the newest N events.
// @Tags         logs
// @Produce      json
// @Param        from   query   string  false  "Start of range"  example(2025-08-01)
// @Param        to     query   string  false  "End of range, date-only means end of day"  example(2025-08-31)
// @Param        since  query   string  false  "Relative start, e.g. 24h"  example(24h)
// @Param        limit  query   int     false  "Newest N events (1..1000)"
// @Param        type   query   string  false  "Event type"  Enums(PUMP_START,PUMP_STOP,ERROR,ERROR_CLEARED,MAINTENANCE,TEMP_ALERT,CONFIG,UPDATE_CHECK,UPDATE_START,UPDATE_DONE,UPDATE_FAILED)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	filter, err := parseLogQuery(c, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	switch {
	case errors.Is(err, service.ErrUnknownEventType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		if h.log != nil {
			h.log.Errorw("logs_list_failed", "err", err, "from", filter.From, "to", filter.To, "type", filter.Type)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func parseLogQuery(c *gin.Context, now time.Time) (service.LogFilter, error) {
	f := service.LogFilter{Type: strings.ToUpper(strings.TrimSpace(c.Query("type")))}

	since, from := c.Query("since"), c.Query("from")
	switch {
	case since != "" && from != "":
		return f, logQueryError(errSinceAndFrom)
	case since != "":
		d, err := time.ParseDuration(since)
		if err != nil || d <= 0 {
			return f, logQueryError(errSinceInvalid)
		}
		f.From = now.Add(-d).UTC()
	case from != "":
		t, err := parseQueryTime(from)
		if err != nil {
			return f, logQueryError(errFromInvalid)
		}
		f.From = t
	}

	if qs := c.Query("to"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, logQueryError(errToInvalid)
		}
		if !strings.ContainsAny(qs, "T ") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, logQueryError(errRangeOrder)
	}

	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n < 1 || n > maxLogLimit {
			return f, logQueryError(errLimitInvalid)
		}
		f.Limit = n
	}
	return f, nil
}

// parseQueryTime accepts RFC3339, a space-separated datetime or a bare
// date, and returns UTC.
func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
