package handlers

import (
	"net/http"

	"ato_controller/internal/broadcast"
	"ato_controller/internal/logger"
	"ato_controller/internal/metrics"
	"ato_controller/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger

	hub       *broadcast.Hub
	collector *metrics.Collector
	metrics   http.Handler
	content   http.Handler
}

// Option configures optional surfaces of the router.
type Option func(*Handler)

// WithHub streams status frames from hub on /ws instead of polling.
func WithHub(hub *broadcast.Hub) Option { return func(h *Handler) { h.hub = hub } }

// WithMetrics mounts m on /metrics and reports websocket clients to c.
func WithMetrics(c *metrics.Collector, m http.Handler) Option {
	return func(h *Handler) {
		h.collector = c
		h.metrics = m
	}
}

// WithContent serves the web UI under /ui/.
func WithContent(c http.Handler) Option { return func(h *Handler) { h.content = c } }

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, o := range opts {
		o(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Status stream and websocket commands, same port
	router.GET("/ws", h.wsConnect)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}
	if h.content != nil {
		ui := http.StripPrefix("/ui", h.content)
		router.GET("/ui/*filepath", gin.WrapH(ui))
		router.HEAD("/ui/*filepath", gin.WrapH(ui))
		router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/ui/") })
	}

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.GET("/setup", h.authSetup)
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		api.POST("/password", h.changePassword)
		h.registerControlRoutes(api)
		h.registerUpdateRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerControlRoutes(api *gin.RouterGroup) {
	api.GET("/status", h.getStatus)
	// Body example: {"maintenance":true} or {"reset_error":true}
	api.POST("/control", h.control)
	api.POST("/maintenance", h.setMaintenance)
	api.POST("/reset_error", h.resetError)
	api.POST("/temperature_range", h.setTemperatureRange)
	api.POST("/device_name", h.setDeviceName)
	api.GET("/temperature_history", h.temperatureHistory)
}

func (h *Handler) registerUpdateRoutes(api *gin.RouterGroup) {
	updates := api.Group("/updates")
	{
		updates.GET("", h.getUpdates)
		updates.POST("/check", h.checkUpdates)
		updates.POST("/apply", h.applyUpdate)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
