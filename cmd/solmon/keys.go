package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"solmon"
)

func keysCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Work with stored credentials",
	}
	cmd.AddCommand(keysExportCmd(configPath))
	return cmd
}

func keysExportCmd(configPath *string) *cobra.Command {
	var subscriber int64
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Decrypt and export private keys, one address/key pair per block",
		RunE: func(*cobra.Command, []string) error {
			st, cfg, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			keys, err := openKeyring(cfg)
			if err != nil {
				return err
			}

			var watches []solmon.Watch
			if subscriber != 0 {
				watches, err = st.WatchesFor(subscriber)
			} else {
				watches, err = st.AllActive()
			}
			if err != nil {
				return err
			}
			if len(watches) == 0 {
				return fmt.Errorf("no active watches to export")
			}

			dst := os.Stdout
			if out != "" {
				f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}

			exported := 0
			for _, w := range watches {
				key, err := keys.Open(w.Credential)
				if err != nil {
					fmt.Fprintf(os.Stderr, "skipping %s: %v\n", solmon.TruncateAddress(w.Account), err)
					continue
				}
				fmt.Fprintf(dst, "%s\n%s\n\n", w.Account, key)
				exported++
			}
			if out != "" {
				fmt.Printf("exported %d of %d keys to %s\n", exported, len(watches), out)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&subscriber, "subscriber", 0, "Export only this chat id's watches (0 = all)")
	cmd.Flags().StringVar(&out, "out", "", "Write to a file instead of stdout (created 0600)")
	return cmd
}
