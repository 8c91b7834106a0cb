package config

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Endpoints holds the network endpoints loaded from environment variables.
type Endpoints struct {
	// RPCURL is the JSON-RPC endpoint of the EVM node.
	RPCURL string
	// ExplorerURL overrides the network's built-in block explorer base.
	ExplorerURL string
}

// Database holds the Postgres connection settings. An empty Host disables the journal.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether a database host was configured.
func (d Database) Enabled() bool {
	return d.Host != ""
}

// DSN builds the lib/pq connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() (Endpoints, error) {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	rpcURL, err := getEnv("RPC_URL")
	if err != nil {
		return Endpoints{}, err
	}

	endpoints := Endpoints{
		RPCURL:      rpcURL,
		ExplorerURL: getEnvOr("EXPLORER_URL", ""),
	}

	log.Debug().
		Str("RPCURL", endpoints.RPCURL).
		Str("ExplorerURL", endpoints.ExplorerURL).
		Msg("Endpoint configuration loaded successfully.")

	return endpoints, nil
}

// LoadDatabaseConfig reads the DB_* variables. It never fails, the journal is optional.
func LoadDatabaseConfig() Database {
	return loadDatabaseConfig()
}

func loadDatabaseConfig() Database {
	return Database{
		Host:     getEnvOr("DB_HOST", ""),
		Port:     getEnvOr("DB_PORT", "5432"),
		User:     getEnvOr("DB_USER", "postgres"),
		Password: getEnvOr("DB_PASSWORD", ""),
		Name:     getEnvOr("DB_NAME", "fundops"),
		SSLMode:  getEnvOr("DB_SSLMODE", "disable"),
	}
}
