package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pipespec/valve-datasheet/pkg/engine"
)

func newBatchCmd() *cobra.Command {
	var (
		outDir  string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Generate datasheets for every VDS number in a file",
		Long: `Batch reads VDS numbers from a file, one per line; blank lines and lines
starting with # are skipped. Each number is generated independently: a
number the grammar rejects marks its own result as an error and never
affects the others. Results keep the input order.

Without flags the full result list is printed as JSON. With --out-dir each
generated datasheet is written to <dir>/<vdsNo>.json instead.`,
		Example: `  vds batch numbers.txt
  vds batch numbers.txt --out-dir out/ --summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), args[0], outDir, summary)
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write one JSON file per generated datasheet into this directory")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a per-item summary table")

	return cmd
}

// readBatchFile reads one VDS number per line, skipping blanks and #
// comments.
func readBatchFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errIO, err)
	}
	defer f.Close()

	var codes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errIO, err)
	}
	return codes, nil
}

func runBatch(ctx context.Context, path, outDir string, summary bool) error {
	codes, err := readBatchFile(path)
	if err != nil {
		return err
	}
	logger.Debug("batch input read", zap.String("file", path), zap.Int("codes", len(codes)))

	eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	results, err := eng.GenerateBatch(ctx, codes)
	if err != nil {
		return err
	}

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", errIO, err)
		}
		for _, item := range results {
			if !item.Succeeded() {
				continue
			}
			name := filepath.Join(outDir, item.VdsNo+".json")
			if err := writeJSONFile(name, item.Datasheet); err != nil {
				return err
			}
		}
	}

	switch {
	case summary:
		printBatchSummary(results)
	case outDir == "":
		return printJSON(results)
	}
	return nil
}

func printBatchSummary(results []engine.BatchItem) {
	rows := make([][]string, 0, len(results))
	succeeded := 0
	for _, item := range results {
		detail := item.Error
		completion := "-"
		if item.Succeeded() {
			succeeded++
			completion = fmt.Sprintf("%.1f%%", item.Datasheet.Metadata.Completion.Percentage)
			detail = string(item.Datasheet.Metadata.ValidationStatus)
		}
		rows = append(rows, []string{item.VdsNo, item.Status, completion, detail})
	}
	printTable([]string{"vds no", "status", "completion", "detail"}, rows)
	fmt.Printf("\n%d of %d datasheets generated\n", succeeded, len(results))
}
