package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <vdsNo>",
		Short: "Decode a VDS number into its segments",
		Long: `Decode parses the VDS number against the valve-type grammar and prints
the decoded record: valve type, bore, piping class, end connection and the
service modifier flags.`,
		Example: `  vds decode BSFA1R
  vds decode BSFMG1LNJ`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd.Context(), args[0])
		},
	}
}

func runDecode(ctx context.Context, vdsNo string) error {
	eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	decoded, err := eng.Decode(vdsNo)
	if err != nil {
		return err
	}
	return printJSON(decoded)
}
