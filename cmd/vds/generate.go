package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newGenerateCmd() *cobra.Command {
	var (
		flat       bool
		structured bool
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "generate <vdsNo>",
		Short: "Generate the datasheet for one VDS number",
		Long: `Generate decodes the VDS number, resolves all forty datasheet fields and
prints the result as JSON. The structured form groups fields into sections
with per-field traceability; --flat emits only the populated field values.

A datasheet whose validation found problems is still emitted - the
validation status and the per-field errors are part of the payload.`,
		Example: `  vds generate BSFA1R
  vds generate BSFA1R --flat
  vds generate GSRD1W --out GSRD1W.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), args[0], flat, outPath)
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "Emit the flat field map")
	cmd.Flags().BoolVar(&structured, "structured", false, "Emit the sectioned datasheet (default)")
	cmd.MarkFlagsMutuallyExclusive("flat", "structured")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the JSON to a file instead of stdout")

	return cmd
}

func runGenerate(ctx context.Context, vdsNo string, flat bool, outPath string) error {
	eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	ds, err := eng.Generate(ctx, vdsNo)
	if err != nil {
		return err
	}
	logger.Debug("datasheet generated",
		zap.String("vdsNo", ds.Metadata.VdsNo),
		zap.String("status", string(ds.Metadata.ValidationStatus)),
		zap.Float64("completion", ds.Metadata.Completion.Percentage))

	var payload any = ds
	if flat {
		payload = flatView(ds)
	}
	if outPath != "" {
		return writeJSONFile(outPath, payload)
	}
	return printJSON(payload)
}
