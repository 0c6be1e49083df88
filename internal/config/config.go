package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const lamportsPerSOL = 1_000_000_000

// Tunables are the deployment-time policy knobs, loadable from an
// optional YAML file and overridable nowhere else. Secrets never live
// here; they come from the environment.
type Tunables struct {
	Model              string  `yaml:"model"`
	RPCURL             string  `yaml:"rpc_url"`
	WSURL              string  `yaml:"ws_url"`
	Cluster            string  `yaml:"cluster"`
	TransferAmountSOL  float64 `yaml:"transfer_amount_sol"`
	FeeReserveLamports uint64  `yaml:"fee_reserve_lamports"`
	MaxUploadBytes     int64   `yaml:"max_upload_bytes"`
	FallbackMode       string  `yaml:"fallback_mode"`
	StagingDir         string  `yaml:"staging_dir"`
	WebhookURL         string  `yaml:"webhook_url"`
}

type Config struct {
	ListenAddr   string
	GeminiAPIKey string
	WalletSecret string
	Tunables
}

func Defaults() Tunables {
	return Tunables{
		Model:              "gemini-2.0-flash",
		RPCURL:             "https://api.devnet.solana.com",
		WSURL:              "wss://api.devnet.solana.com",
		Cluster:            "devnet",
		TransferAmountSOL:  0.01,
		FeeReserveLamports: 5_000,
		MaxUploadBytes:     10 << 20,
		FallbackMode:       "filename",
		StagingDir:         "",
	}
}

// Load reads configuration from the environment plus the optional YAML
// tunables file named by FOUNDRY_CONFIG. Absence of either credential is
// a fatal startup condition, surfaced here as an error.
func Load() (Config, error) {
	cfg := Config{Tunables: Defaults()}

	if path := os.Getenv("FOUNDRY_CONFIG"); path != "" {
		if err := loadFile(path, &cfg.Tunables); err != nil {
			return Config{}, err
		}
	}

	cfg.ListenAddr = os.Getenv("FOUNDRY_LISTEN_ADDR")
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.GeminiAPIKey = os.Getenv("FOUNDRY_GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("missing FOUNDRY_GEMINI_API_KEY")
	}

	cfg.WalletSecret = os.Getenv("FOUNDRY_WALLET_SECRET")
	if cfg.WalletSecret == "" {
		return Config{}, fmt.Errorf("missing FOUNDRY_WALLET_SECRET")
	}

	if err := cfg.Tunables.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, t *Tunables) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (t Tunables) validate() error {
	if t.FallbackMode != "filename" && t.FallbackMode != "generic" {
		return fmt.Errorf("invalid fallback_mode %q", t.FallbackMode)
	}
	if t.TransferAmountSOL <= 0 {
		return fmt.Errorf("transfer_amount_sol must be positive")
	}
	if t.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	return nil
}

// TransferLamports converts the configured SOL amount to lamports, the
// unit every ledger call uses.
func (t Tunables) TransferLamports() uint64 {
	return uint64(t.TransferAmountSOL * lamportsPerSOL)
}
