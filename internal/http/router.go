// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"parkman/internal/clock"
	"parkman/internal/http/handlers"
	"parkman/internal/http/middleware"
	"parkman/internal/modules/event"
	"parkman/internal/modules/garage"
)

func NewRouter(
	eventService *event.Service,
	garageService *garage.Service,
	clk clock.Clock,
	logger *slog.Logger,
) http.Handler {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(logger), middleware.Recovery(logger))

	webhookHandler := handlers.NewWebhookHandler(eventService, logger)
	r.POST("/webhook", webhookHandler.Handle)

	garageHandler := handlers.NewGarageHandler(garageService)
	statusHandler := handlers.NewStatusHandler(eventService, clk)
	v1 := r.Group("/api/v1")
	v1.POST("/garage", garageHandler.Create)
	v1.POST("/plate-status", statusHandler.PlateStatus)
	v1.POST("/spot-status", statusHandler.SpotStatus)
	v1.GET("/revenue", statusHandler.Revenue)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
