package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/ean_catalog/internal/spreadsheet"
)

func newTemplateCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "template <out.xlsx>",
		Short: "Write an import template spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := spreadsheet.WriteTemplate(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template written to %s\n", args[0])
			return nil
		},
	}
}
