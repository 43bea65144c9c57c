package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so intervals can be written as "30s"
// in the TOML file.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// VRF holds the randomness-service request parameters.
type VRF struct {
	KeyHash          string   `toml:"key_hash"`
	SubscriptionID   uint64   `toml:"subscription_id"`
	MinConfirmations uint16   `toml:"min_confirmations"`
	CallbackGasLimit uint32   `toml:"callback_gas_limit"`
	NumWords         uint32   `toml:"num_words"`
	FulfillDelay     Duration `toml:"fulfill_delay"` // zero: fulfill manually via the API
}

// Config is the full startup configuration. It is decoded once and
// never mutated afterwards.
type Config struct {
	ListenAddr   string   `toml:"listen_addr"`
	JournalPath  string   `toml:"journal_path"`
	Account      string   `toml:"account"`
	EntranceFee  uint64   `toml:"entrance_fee"`
	DrawInterval Duration `toml:"draw_interval"`
	KeeperPoll   Duration `toml:"keeper_poll"`
	VRF          VRF      `toml:"vrf"`
}

// Default returns a configuration suitable for local runs.
func Default() Config {
	return Config{
		ListenAddr:   ":8080",
		JournalPath:  "raffle.db",
		Account:      "raffle",
		EntranceFee:  10_000_000_000_000_000, // 0.01 in base units
		DrawInterval: Duration{30 * time.Second},
		KeeperPoll:   Duration{5 * time.Second},
		VRF: VRF{
			KeyHash:          "default-gas-lane",
			SubscriptionID:   1,
			MinConfirmations: 3,
			CallbackGasLimit: 500_000,
			NumWords:         1,
			FulfillDelay:     Duration{2 * time.Second},
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the raffle cannot run with.
func (c Config) Validate() error {
	if c.EntranceFee == 0 {
		return errors.New("entrance_fee must be positive")
	}
	if c.DrawInterval.Duration <= 0 {
		return errors.New("draw_interval must be positive")
	}
	if c.Account == "" {
		return errors.New("account must not be empty")
	}
	if c.VRF.NumWords == 0 {
		return errors.New("vrf.num_words must be at least 1")
	}
	return nil
}
