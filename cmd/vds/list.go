package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list <prefixes|classes|vds>",
		Short:     "List configured valve-type prefixes, piping classes, or indexed VDS numbers",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"prefixes", "classes", "vds"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), args[0])
		},
	}
}

func runList(ctx context.Context, what string) error {
	eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}

	switch what {
	case "prefixes":
		rows := [][]string{}
		for _, code := range eng.SupportedPrefixes() {
			p, ok := eng.PrefixInfo(code)
			if !ok {
				continue
			}
			rows = append(rows, []string{p.Code, p.Name, p.PrimaryStandard})
		}
		printTable([]string{"prefix", "valve type", "standard"}, rows)

	case "classes":
		rows := [][]string{}
		for _, info := range eng.PipingClassInfo() {
			flags := []string{}
			if info.NaceService {
				flags = append(flags, "NACE")
			}
			if info.LowTemp {
				flags = append(flags, "LT")
			}
			rows = append(rows, []string{
				info.Class,
				strconv.Itoa(info.Rating),
				info.BaseMaterial,
				strings.Join(flags, ", "),
				info.Service,
			})
		}
		printTable([]string{"class", "rating", "material", "flags", "service"}, rows)

	case "vds":
		for _, code := range eng.IndexedVDSCodes() {
			fmt.Println(code)
		}

	default:
		return fmt.Errorf("unknown listing %q (expected prefixes, classes, or vds)", what)
	}
	return nil
}
