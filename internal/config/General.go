package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Signer modes accepted by SIGNER_MODE.
const (
	SignerModeKey      = "key"
	SignerModeExternal = "external"
)

// AppConfig holds all application configuration loaded from environment variables.
type AppConfig struct {
	// Network is the registry key of the target network (e.g. "mainnet").
	Network string
	// ChainID is the EIP-155 chain ID of the target network.
	ChainID uint64

	// VaultAddress is the vault proxy investors subscribe to and redeem from.
	VaultAddress common.Address
	// ComptrollerAddress is the vault's comptroller. Zero means "resolve via getAccessor".
	ComptrollerAddress common.Address
	// DepositAsset is the registry symbol of the asset used for subscriptions.
	DepositAsset string

	// SignerMode selects between a local private key and an external (clef) signer.
	SignerMode string
	// SignerPrivateKey is the hex private key used in "key" mode.
	SignerPrivateKey string
	// SignerEndpoint is the external signer endpoint used in "external" mode.
	SignerEndpoint string

	// RegistryFile is an optional YAML overlay for the built-in registry.
	RegistryFile string

	// PollInterval is the cadence of the chain state poller.
	PollInterval time.Duration

	EntranceFeePercent decimal.Decimal
	ExitFeePercent     decimal.Decimal
	SlippagePercent    decimal.Decimal

	// DefaultGasLimit is the fallback gas limit if estimation fails.
	DefaultGasLimit uint64
	// GasAdjustment is the multiplier for estimated gas to ensure sufficient headroom.
	GasAdjustment float64

	WebPort string

	Endpoints Endpoints
	Database  Database
	Logging   Logging
}

// Logging mirrors the LOG_* variables.
type Logging struct {
	Level string
	JSON  bool
	File  string
}

// LoadConfig loads configuration from environment variables.
// RPC_URL, CHAIN_ID, NETWORK and VAULT_ADDRESS are required, everything else has a default.
func LoadConfig() (*AppConfig, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	cfg := &AppConfig{}
	var err error

	cfg.Network, err = getEnv("NETWORK")
	if err != nil {
		return nil, err
	}
	cfg.Network = strings.ToLower(strings.TrimSpace(cfg.Network))

	cfg.ChainID, err = getEnvAsUint64("CHAIN_ID")
	if err != nil {
		return nil, err
	}

	cfg.VaultAddress, err = getEnvAsAddress("VAULT_ADDRESS")
	if err != nil {
		return nil, err
	}

	if raw := getEnvOr("COMPTROLLER_ADDRESS", ""); raw != "" {
		if !common.IsHexAddress(raw) {
			return nil, errors.New("environment variable COMPTROLLER_ADDRESS must be a hex address, got: " + raw)
		}
		cfg.ComptrollerAddress = common.HexToAddress(raw)
	}

	cfg.DepositAsset = strings.ToUpper(getEnvOr("DEPOSIT_ASSET", Defaults.DepositAsset))

	cfg.SignerMode = strings.ToLower(getEnvOr("SIGNER_MODE", SignerModeKey))
	cfg.SignerPrivateKey = getEnvOr("SIGNER_PRIVATE_KEY", "")
	cfg.SignerEndpoint = getEnvOr("SIGNER_ENDPOINT", "")
	if err := validateSignerConfig(cfg); err != nil {
		return nil, err
	}

	cfg.RegistryFile = expandHome(getEnvOr("REGISTRY_FILE", ""))

	if cfg.PollInterval, err = getEnvAsDurationOr("POLL_INTERVAL", Defaults.PollInterval); err != nil {
		return nil, err
	}
	if cfg.EntranceFeePercent, err = getEnvAsPercentOr("ENTRANCE_FEE_PERCENT", Defaults.EntranceFeePercent); err != nil {
		return nil, err
	}
	if cfg.ExitFeePercent, err = getEnvAsPercentOr("EXIT_FEE_PERCENT", Defaults.ExitFeePercent); err != nil {
		return nil, err
	}
	if cfg.SlippagePercent, err = getEnvAsPercentOr("SLIPPAGE_PERCENT", Defaults.SlippagePercent); err != nil {
		return nil, err
	}
	if cfg.DefaultGasLimit, err = getEnvAsUint64Or("GAS_DEFAULT_LIMIT", Defaults.GasLimit); err != nil {
		return nil, err
	}
	if cfg.GasAdjustment, err = getEnvAsFloat64Or("GAS_ADJUSTMENT", Defaults.GasAdjustment); err != nil {
		return nil, err
	}
	if cfg.GasAdjustment < 1 {
		return nil, errors.New("environment variable GAS_ADJUSTMENT must be >= 1")
	}

	cfg.WebPort = getEnvOr("WEB_PORT", Defaults.WebPort)

	cfg.Logging = Logging{
		Level: getEnvOr("LOG_LEVEL", "info"),
		JSON:  strings.EqualFold(getEnvOr("LOG_FORMAT", ""), "json"),
		File:  expandHome(getEnvOr("LOG_FILE", "")),
	}

	if cfg.Endpoints, err = loadEndpointConfig(); err != nil {
		return nil, err
	}
	cfg.Database = loadDatabaseConfig()

	log.Debug().
		Str("Network", cfg.Network).
		Uint64("ChainID", cfg.ChainID).
		Str("Vault", cfg.VaultAddress.Hex()).
		Str("SignerMode", cfg.SignerMode).
		Dur("PollInterval", cfg.PollInterval).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

func validateSignerConfig(cfg *AppConfig) error {
	switch cfg.SignerMode {
	case SignerModeKey, SignerModeExternal:
		return nil
	default:
		return errors.New("environment variable SIGNER_MODE must be \"key\" or \"external\", got: " + cfg.SignerMode)
	}
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable, falling back to def when unset or blank.
func getEnvOr(key, def string) string {
	if value, err := getEnv(key); err == nil {
		return value
	}
	return def
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsUint64Or(key string, def uint64) (uint64, error) {
	if _, err := getEnv(key); err != nil {
		return def, nil
	}
	return getEnvAsUint64(key)
}

// getEnvAsFloat64Or retrieves an optional float64 environment variable.
func getEnvAsFloat64Or(key string, def float64) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return def, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsDurationOr(key string, def time.Duration) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return def, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsPercentOr reads a percentage in [0, 100].
func getEnvAsPercentOr(key string, def decimal.Decimal) (decimal.Decimal, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return def, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, errors.New("environment variable " + key + " must be a decimal, got: " + valueStr)
	}
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, errors.New("environment variable " + key + " must be between 0 and 100, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a hex address, got: " + valueStr)
	}
	return common.HexToAddress(valueStr), nil
}

// expandHome expands a leading tilde (~) to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
