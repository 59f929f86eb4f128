package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pipespec/valve-datasheet/pkg/datasheet"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errIO, err)
	}
	return nil
}

func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)

	upperHeaders := make([]string, len(headers))
	for i, h := range headers {
		upperHeaders[i] = strings.ToUpper(h)
	}
	fmt.Fprintln(w, strings.Join(upperHeaders, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// flatDatasheet is the flattened projection: populated field values only,
// plus the validation outcome.
type flatDatasheet struct {
	VdsNo                string            `json:"vdsNo"`
	Data                 map[string]string `json:"data"`
	ValidationStatus     string            `json:"validationStatus"`
	CompletionPercentage float64           `json:"completionPercentage"`
}

func flatView(ds *datasheet.Datasheet) flatDatasheet {
	return flatDatasheet{
		VdsNo:                ds.Metadata.VdsNo,
		Data:                 ds.Flat(),
		ValidationStatus:     string(ds.Metadata.ValidationStatus),
		CompletionPercentage: ds.Metadata.Completion.Percentage,
	}
}
