package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/teamchat/internal/chat"
	"github.com/Tyrowin/teamchat/internal/logging"
	"github.com/Tyrowin/teamchat/internal/server"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	port := pflag.String("port", "", "listen address, e.g. :8080")
	logLevel := pflag.String("log-level", "", "debug, info, warn or error")
	logFormat := pflag.String("log-format", "", "text or json")
	seed := pflag.Bool("seed", true, "seed the fixture channels on startup")
	pflag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not load .env")
	}

	// Create configuration: defaults, then file, then environment, then flags.
	config := server.NewConfig()
	if *configPath != "" {
		if err := server.LoadConfigFile(*configPath, config); err != nil {
			logrus.WithError(err).Fatal("could not load config")
		}
	}
	server.ApplyEnv(config)
	if *port != "" {
		config.Port = *port
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	if *logFormat != "" {
		config.LogFormat = *logFormat
	}
	if pflag.CommandLine.Changed("seed") {
		config.SeedFixtures = *seed
	}

	logger, err := logging.New(config.LogLevel, config.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("could not configure logging")
	}

	metrics := server.NewMetrics()
	core := chat.New(chat.DispatcherConfig{
		Buffer:   config.DeliveryBuffer,
		Logger:   logger.WithField("component", "dispatcher"),
		Observer: metrics,
	})
	if config.SeedFixtures {
		n := chat.SeedDefaults(core.Store(), time.Now())
		logger.WithField("messages", n).Info("seeded fixture channels")
	}

	srv := server.New(*config, core, logger, metrics)
	cfg := srv.Config()
	go srv.Hub().Run()

	httpServer := server.CreateServer(cfg.Port, srv.Handler())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("signal caught. shutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer done()
		if err := server.ShutdownServer(shutdownCtx, httpServer, srv.Hub(), cfg.ShutdownTimeout); err != nil {
			logger.WithError(err).Error("shutdown incomplete")
		}
	}()

	logger.WithFields(logrus.Fields{
		"origins":          cfg.AllowedOrigins,
		"max_message_size": humanize.Bytes(uint64(cfg.MaxMessageSize)),
		"rate_limit":       cfg.RateLimit.Burst,
		"refill_interval":  cfg.RateLimit.RefillInterval,
		"delivery_buffer":  cfg.DeliveryBuffer,
	}).Info("starting TeamChat server")

	if err := server.StartServer(httpServer, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
	<-shutdownDone
	logger.Info("server stopped")
}
