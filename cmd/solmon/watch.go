package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"solmon"
	"solmon/internal/keyring"
)

func watchCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage watched wallets",
	}
	cmd.AddCommand(watchListCmd(configPath))
	cmd.AddCommand(watchAddCmd(configPath))
	cmd.AddCommand(watchRemoveCmd(configPath))
	return cmd
}

func watchListCmd(configPath *string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active watches",
		RunE: func(*cobra.Command, []string) error {
			st, _, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			watches, err := st.AllActive()
			if err != nil {
				return err
			}
			if len(watches) == 0 {
				fmt.Println("no active watches")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSUBSCRIBER\tACCOUNT\tCURSOR\tSINCE")
			for _, watch := range watches {
				account := watch.Account
				if !all {
					account = solmon.TruncateAddress(account)
				}
				cursor := "(unseeded)"
				if watch.Seeded() {
					cursor = solmon.TruncateAddress(watch.Cursor)
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
					watch.ID, watch.Subscriber, account, cursor,
					watch.Inception.UTC().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "full", false, "Print full addresses and cursors")
	return cmd
}

func watchAddCmd(configPath *string) *cobra.Command {
	var subscriber int64
	var nickname string
	cmd := &cobra.Command{
		Use:   "add <private-key>",
		Short: "Add a watch from a private key (base58 or JSON array)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			account, err := keyring.DeriveAddress(args[0])
			if err != nil {
				return err
			}

			st, cfg, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			keys, err := openKeyring(cfg)
			if err != nil {
				return err
			}
			sealed, err := keys.Seal(args[0])
			if err != nil {
				return err
			}

			outcome, err := st.AddWatch(solmon.Watch{
				Subscriber: subscriber,
				Account:    account,
				Credential: sealed,
				Nickname:   nickname,
				Active:     true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", outcome, account)
			return nil
		},
	}
	cmd.Flags().Int64Var(&subscriber, "subscriber", 0, "Owning chat id")
	cmd.Flags().StringVar(&nickname, "nickname", "", "Optional wallet nickname")
	_ = cmd.MarkFlagRequired("subscriber")
	return cmd
}

func watchRemoveCmd(configPath *string) *cobra.Command {
	var subscriber int64
	cmd := &cobra.Command{
		Use:     "remove <account>",
		Aliases: []string{"rm"},
		Short:   "Stop watching an account for one subscriber",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, _, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			outcome, err := st.RemoveWatch(subscriber, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", outcome, args[0])
			return nil
		},
	}
	cmd.Flags().Int64Var(&subscriber, "subscriber", 0, "Owning chat id")
	_ = cmd.MarkFlagRequired("subscriber")
	return cmd
}
