package config

import (
	"log"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	Port          string `env:"PORT" envDefault:"8080"`
	CORSOrigin    string `env:"CORS_ORIGIN"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	// ReconcileSpec is the cron expression for the daily streak sweep. The
	// engine itself is clock-free; this only drives the in-process trigger.
	ReconcileSpec string `env:"RECONCILE_CRON" envDefault:"1 0 * * *"`
}

func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
