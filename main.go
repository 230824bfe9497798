package main

import (
	"log"

	"github.com/joho/godotenv"

	"idscan/cmd"
	"idscan/internal/config"
	"idscan/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Commands load and validate their own configuration; here it only
	// decides how to log.
	cfg, err := config.Load()
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute()
}
