// Package config holds daemon configuration.
//
// Values resolve in three layers: compiled defaults, then an optional YAML
// file, then environment variables. The environment names follow the ones
// the product has always used (TELEGRAM_BOT_TOKEN, ADMIN_CHAT_ID, ...), so
// an existing deployment keeps working with no file at all.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	RPCURL        string `yaml:"rpc_url" env:"SOLANA_RPC_URL"`
	DataDir       string `yaml:"data_dir" env:"SOLMON_DATA_DIR"`
	DatabasePath  string `yaml:"database_path" env:"SOLMON_DB_PATH"` // defaults to <data_dir>/solmon.db
	BotToken      string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	AdminChatID   int64  `yaml:"admin_chat_id" env:"ADMIN_CHAT_ID"`
	Channel       string `yaml:"channel" env:"MONITORING_CHANNEL"` // @username or numeric chat id
	EncryptionKey string `yaml:"-" env:"ENCRYPTION_KEY"`           // base64 32-byte AEAD key; file fallback when empty
	HealthAddr    string `yaml:"health_addr" env:"SOLMON_HEALTH_ADDR"`
	LogLevel      string `yaml:"log_level" env:"SOLMON_LOG_LEVEL"`
	NTPPool       string `yaml:"ntp_pool" env:"SOLMON_NTP_POOL"`
}

// Default returns the compiled-in baseline.
func Default() Config {
	return Config{
		RPCURL:     "https://api.mainnet-beta.solana.com",
		DataDir:    "/var/lib/solmon",
		HealthAddr: ":5000",
		LogLevel:   "info",
		NTPPool:    "pool.ntp.org",
	}
}

// Load resolves the configuration. A missing file at path is not an error;
// an empty path skips the file layer entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults plus environment only
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "solmon.db")
	}
	return cfg, nil
}

// ValidateDaemon checks the fields the monitoring daemon cannot run without.
// The offline CLI only needs the database and skips this.
func (c Config) ValidateDaemon() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("bot token is required (TELEGRAM_BOT_TOKEN)")
	}
	if c.AdminChatID == 0 {
		return errors.New("admin chat id is required (ADMIN_CHAT_ID)")
	}
	if strings.TrimSpace(c.RPCURL) == "" {
		return errors.New("rpc url is required (SOLANA_RPC_URL)")
	}
	return nil
}

// ChannelTarget splits the broadcast channel setting into a numeric chat id
// or an @username. ok is false when no channel is configured.
func (c Config) ChannelTarget() (id int64, username string, ok bool) {
	ch := strings.TrimSpace(c.Channel)
	if ch == "" {
		return 0, "", false
	}
	if strings.HasPrefix(ch, "@") {
		return 0, ch, true
	}
	n, err := strconv.ParseInt(ch, 10, 64)
	if err != nil {
		return 0, "@" + ch, true
	}
	return n, "", true
}
