package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env"
)

type Config struct {
	Address            string        `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseConnection string        `env:"DATABASE_URI"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"dontexposethis"`
	JWTTTL             time.Duration `env:"JWT_TTL" envDefault:"24h"`
	ProcessorAddress   string        `env:"PAYMENT_API_ADDRESS" envDefault:"http://localhost:8090"`
	ProcessorAPIKey    string        `env:"PAYMENT_API_KEY"`
	ProcessorTimeout   time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"10s"`
	WebhookSecret      string        `env:"PAYMENT_WEBHOOK_SECRET"`
	Currency           string        `env:"PAYMENT_CURRENCY" envDefault:"usd"`
	NotifyAddress      string        `env:"NOTIFY_ADDRESS" envDefault:"http://localhost:8095"`
	NotifyWorkers      int           `env:"NOTIFY_WORKERS" envDefault:"4"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	address := flag.String("a", cfg.Address, "{Host:port} for server")
	loglevel := flag.String("l", cfg.LogLevel, "Log level for server")
	databaseConnection := flag.String("d", cfg.DatabaseConnection, "Database connection string")
	processorAddress := flag.String("p", cfg.ProcessorAddress, "Payment processor base URL")
	processorTimeout := flag.Duration("pt", cfg.ProcessorTimeout, "Payment processor call timeout")
	jwtTTL := flag.Duration("t", cfg.JWTTTL, "TTL for JWT token (e.g. 24h; 30m)")
	notifyWorkers := flag.Int("w", cfg.NotifyWorkers, "Size of notification worker pool")

	flag.Parse()

	cfg.Address = *address
	cfg.LogLevel = *loglevel
	cfg.DatabaseConnection = *databaseConnection
	cfg.ProcessorAddress = *processorAddress
	cfg.ProcessorTimeout = *processorTimeout
	cfg.JWTTTL = *jwtTTL
	cfg.NotifyWorkers = *notifyWorkers

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("ENV JWT_SECRET must be set")
	}
	if cfg.ProcessorAPIKey == "" {
		return nil, fmt.Errorf("ENV PAYMENT_API_KEY must be set")
	}

	return cfg, nil
}
