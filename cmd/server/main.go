package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rinikerlab/cnncluster/internal/runner"
	"github.com/rinikerlab/cnncluster/pkg/api/rest"
	"github.com/rinikerlab/cnncluster/pkg/api/rest/middleware"
	"github.com/rinikerlab/cnncluster/pkg/config"
	"github.com/rinikerlab/cnncluster/pkg/events"
	"github.com/rinikerlab/cnncluster/pkg/ledger"
	"github.com/rinikerlab/cnncluster/pkg/observability"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		configFile  = flag.String("config", "", "path to configuration file (optional)")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("cnncluster server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg := loadConfig(*configFile)
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := observability.NewDefaultLogger()
	r := runner.New(cfg, logger)

	if ledgerPath := os.Getenv("CNNCLUSTER_LEDGER_PATH"); ledgerPath != "" {
		l, err := ledger.Open(ledgerPath)
		if err != nil {
			log.Fatalf("failed to open run ledger: %v", err)
		}
		defer l.Close()
		r.Ledger = l
		log.Printf("run ledger enabled at %s", ledgerPath)
	}

	if broker := os.Getenv("CNNCLUSTER_MQTT_BROKER"); broker != "" {
		pub, err := events.NewPublisher(events.Config{
			Broker:   broker,
			ClientID: "cnncluster-server",
			Username: os.Getenv("CNNCLUSTER_MQTT_USER"),
			Password: os.Getenv("CNNCLUSTER_MQTT_PASSWORD"),
			Topic:    envOr("CNNCLUSTER_MQTT_TOPIC", "cnncluster/runs"),
		}, logger)
		if err != nil {
			log.Fatalf("failed to connect to MQTT broker: %v", err)
		}
		defer pub.Close()
		r.Events = pub
		log.Printf("run event publishing enabled on %s", broker)
	}

	restConfig := rest.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSEnabled: os.Getenv("CNNCLUSTER_CORS_ENABLED") == "true",
		CORSOrigins: []string{"*"},
		Auth: middleware.AuthConfig{
			Enabled:   os.Getenv("CNNCLUSTER_AUTH_ENABLED") == "true",
			JWTSecret: os.Getenv("CNNCLUSTER_JWT_SECRET"),
			PublicPaths: []string{
				"/v1/health",
			},
		},
		RateLimit: middleware.RateLimitConfig{
			Enabled:        os.Getenv("CNNCLUSTER_RATE_LIMIT_ENABLED") == "true",
			RequestsPerSec: 50,
			Burst:          100,
			PerIP:          true,
		},
	}

	server := rest.NewServer(restConfig, r)

	printStartupInfo(cfg, restConfig)

	errChan := make(chan error, 1)
	go func() {
		log.Println("starting REST API server...")
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Println("server ready, press Ctrl+C to stop")
	select {
	case sig := <-sigChan:
		log.Printf("received signal: %v", sig)
	case err := <-errChan:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("error stopping server: %v", err)
	}

	log.Println("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadConfig(configFile string) *config.Config {
	if configFile != "" {
		cfg, err := config.LoadFromFile(configFile)
		if err != nil {
			log.Fatalf("failed to load config file: %v", err)
		}
		return config.LoadFromEnv(cfg)
	}
	return config.LoadFromEnv(nil)
}

func printStartupInfo(cfg *config.Config, restCfg rest.Config) {
	fmt.Println()
	fmt.Println("cnncluster server")
	fmt.Printf("  address:      %s\n", cfg.Server.Address())
	fmt.Printf("  auth:         %v\n", restCfg.Auth.Enabled)
	fmt.Printf("  cors:         %v\n", restCfg.CORSEnabled)
	fmt.Printf("  rate limit:   %v\n", restCfg.RateLimit.Enabled)
	fmt.Printf("  run cache:    capacity=%d ttl=%s\n", cfg.Cache.Capacity, cfg.Cache.TTL)
	fmt.Println()
}
