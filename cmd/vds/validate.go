package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <vdsNo>",
		Short: "Check a VDS number against the grammar and piping classes",
		Long: `Validate decodes the VDS number without generating a datasheet. It prints
VALID, or INVALID with the rejection reason; an invalid number exits with
code 2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), args[0])
		},
	}
}

func runValidate(ctx context.Context, vdsNo string) error {
	eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	if _, err := eng.Decode(vdsNo); err != nil {
		fmt.Printf("INVALID: %v\n", err)
		return err
	}
	fmt.Println("VALID")
	return nil
}
