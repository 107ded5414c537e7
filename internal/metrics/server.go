package metrics

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// NewApp builds the scrape app: /metrics for gatherer and /healthz.
func NewApp(gatherer prometheus.Gatherer) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})
	app.Use(recover.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	return app
}

// StartServer serves NewApp on port and returns its shutdown function.
func StartServer(port int, gatherer prometheus.Gatherer) (shutdown func(context.Context) error) {
	app := NewApp(gatherer)
	addr := fmt.Sprintf(":%d", port)

	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return app.ShutdownWithContext
}
