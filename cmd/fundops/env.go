package main

import (
	"fmt"

	"github.com/joho/godotenv"
)

// loadEnvFile overrides the environment with path. Values already loaded from .env are replaced.
func loadEnvFile(path string) error {
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
