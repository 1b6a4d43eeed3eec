package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func settingCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: "Read and write persisted settings",
	}
	cmd.AddCommand(settingGetCmd(configPath))
	cmd.AddCommand(settingSetCmd(configPath))
	return cmd
}

func settingGetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, _, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			value, ok, err := st.ReadSetting(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("setting %q is not set", args[0])
			}
			fmt.Println(value)
			return nil
		},
	}
}

func settingSetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			st, _, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.WriteSetting(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	}
}
