// Command token mints a dashboard token for the collector's results API
// and watch endpoint.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/saturnino-fabrica-de-software/proctor/internal/auth"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	subject := flag.String("subject", "", "Who the token is for (email or service name)")
	sessions := flag.String("sessions", "", "Comma-separated session keys, or * for all")
	flag.Parse()

	cfg, err := config.LoadDashboardAuth()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DashboardJWTSecret == "" {
		return fmt.Errorf("DASHBOARD_JWT_SECRET is required")
	}
	if *subject == "" {
		return fmt.Errorf("subject flag is required")
	}

	var keys []string
	for _, key := range strings.Split(*sessions, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}

	service := auth.NewJWTService(cfg.DashboardJWTSecret, cfg.DashboardJWTIssuer, cfg.DashboardTokenTTL)
	token, err := service.GenerateToken(*subject, keys)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
