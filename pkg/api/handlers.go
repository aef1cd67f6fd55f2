package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/robobag/pkg/log"
	"github.com/open-teleop/robobag/pkg/mqtt"
)

// StatsProvider exposes the subscriber counters to the API layer.
// *mqtt.Subscriber satisfies it.
type StatsProvider interface {
	Stats() mqtt.Stats
}

// SetupRoutes wires the status API and the websocket feed onto app.
func SetupRoutes(app *fiber.App, stats StatsProvider, feed *Feed, logger customlog.Logger) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "robobag twin listener",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	api := app.Group("/api")
	api.Get("/stats", StatsHandler(stats))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/feed", websocket.New(func(conn *websocket.Conn) {
		FeedWebSocketHandler(conn, feed, logger)
	}))
}

// StatsHandler returns the subscriber counters as JSON.
func StatsHandler(stats StatsProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(stats.Stats())
	}
}
