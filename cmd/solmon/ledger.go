package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"solmon"
)

func ledgerCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show recent notified-signature ledger rows",
		RunE: func(*cobra.Command, []string) error {
			st, _, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.RecentLedger(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("ledger is empty")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tSIGNATURE\tSOL\tKIND\tNOTIFIED\tBLOCK TIME")
			for _, e := range entries {
				when := "-"
				if e.BlockTime > 0 {
					when = time.Unix(e.BlockTime, 0).UTC().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%.9f\t%s\t%t\t%s\n",
					solmon.TruncateAddress(e.Account),
					solmon.TruncateAddress(e.Signature),
					e.AmountSOL, e.Kind, e.Notified, when)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Rows to show, newest first")
	return cmd
}
