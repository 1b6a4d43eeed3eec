// solmon is the operator CLI. It works directly against the daemon's
// database, so run mutating commands while the daemon is stopped, or accept
// that the next poll cycle picks the changes up.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"solmon/config"
	"solmon/internal/keyring"
	"solmon/internal/logging"
	"solmon/internal/store"
)

var version = "dev"

func main() {
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var debug bool

	root := &cobra.Command{
		Use:           "solmon",
		Short:         "Operate the Solana wallet monitor",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_ = godotenv.Load()
			if debug {
				return logging.Configure(logging.LevelDebug)
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/solmon/solmon.yaml", "YAML config path")

	root.AddCommand(watchCmd(&configPath))
	root.AddCommand(settingCmd(&configPath))
	root.AddCommand(keysCmd(&configPath))
	root.AddCommand(transferCmd(&configPath))
	root.AddCommand(ledgerCmd(&configPath))
	return root
}

// openStore resolves config and opens the shared database. The CLI skips
// daemon validation: only the database path matters here.
func openStore(configPath string) (*store.Store, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, config.Config{}, err
	}
	return st, cfg, nil
}

// openKeyring builds the same keyring the daemon uses, so sealed
// credentials round-trip between the two.
func openKeyring(cfg config.Config) (*keyring.Keyring, error) {
	return keyring.New(cfg.EncryptionKey, cfg.DataDir)
}
