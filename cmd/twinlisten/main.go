package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-teleop/robobag/pkg/api"
	"github.com/open-teleop/robobag/pkg/config"
	customlog "github.com/open-teleop/robobag/pkg/log"
	"github.com/open-teleop/robobag/pkg/mqtt"
	"github.com/open-teleop/robobag/pkg/zeromq"
)

// configDir is where listener_config.yaml is looked up. The file is
// optional: without it the listener is a plain subscriber on
// localhost:1883.
const configDir = "config"

func main() {
	cfg, err := config.LoadListenerConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "twinlisten: %v\n", err)
		os.Exit(1)
	}

	// Positional arguments override the configured broker: [host [port]]
	host := cfg.MQTT.BrokerHost
	port := cfg.MQTT.BrokerPort
	args := os.Args[1:]
	if len(args) > 0 {
		host = args[0]
	}
	if len(args) > 1 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "twinlisten: invalid port '%s': %v\n", args[1], err)
			os.Exit(1)
		}
		port = p
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "twinlisten: %v\n", err)
		os.Exit(1)
	}

	brokerURL := fmt.Sprintf("tcp://%s:%d", host, port)
	client := mqtt.NewPahoClient(brokerURL, logger)
	subscriber := mqtt.NewSubscriber(client, cfg.MQTT.Topic, logger, os.Stdout)

	var forwarder *zeromq.Forwarder
	if cfg.Forward.Enabled {
		forwarder, err = zeromq.NewForwarder(cfg.Forward.PublishBindAddress, logger)
		if err != nil {
			logger.Fatalf("Failed to start forwarder: %v", err)
		}
		subscriber.AddHandler(func(topic string, payload []byte) {
			if err := forwarder.Forward(topic, payload); err != nil {
				logger.Warnf("Failed to forward message: %v", err)
			}
		})
	}

	var app *fiber.App
	if cfg.HTTP.Enabled {
		feed := api.NewFeed(logger)
		subscriber.AddHandler(feed.Publish)

		app = fiber.New(fiber.Config{
			AppName:      "Robobag Twin Listener",
			ErrorHandler: customErrorHandler,
		})
		app.Use(fiberlogger.New())
		app.Use(recover.New())
		api.SetupRoutes(app, subscriber, feed, logger)

		go func() {
			logger.Infof("Status API listening on port %d", cfg.HTTP.Port)
			if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
				logger.Fatalf("Failed to start status API: %v", err)
			}
		}()
	}

	logger.Infof("Connecting to broker %s", brokerURL)
	if err := subscriber.Start(); err != nil {
		logger.Fatalf("Failed to connect: %v", err)
	}

	// Block forever dispatching messages until a signal arrives.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Shutting down...")

	subscriber.Stop()
	if forwarder != nil {
		forwarder.Close()
	}
	if app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			logger.Errorf("Status API forced to shutdown: %v", err)
		}
	}

	logger.Infof("Listener exited properly")
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
