package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func transferCmd(configPath *string) *cobra.Command {
	var to int64
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Reassign every active watch to one subscriber",
		Long: "Reassign every active watch to one subscriber. Used for operator\n" +
			"handoff; cursors and credentials move with the watches, so no\n" +
			"historical activity is replayed.",
		RunE: func(*cobra.Command, []string) error {
			st, _, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.TransferAllTo(to)
			if err != nil {
				return err
			}
			fmt.Printf("transferred %d, already owned %d, deactivated %d\n",
				stats.Transferred, stats.AlreadyOwned, stats.Deactivated)
			return nil
		},
	}
	cmd.Flags().Int64Var(&to, "to", 0, "Target chat id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
