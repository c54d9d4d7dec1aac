package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/ean_catalog/internal/db"
	"github.com/Skotchmaster/ean_catalog/internal/repo"
	"github.com/Skotchmaster/ean_catalog/internal/spreadsheet"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Bulk import products from a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := spreadsheet.ReadRows(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			gdb, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			svc, closeCatalog, err := a.newCatalog(cmd.Context(), &repo.GormRepo{DB: gdb})
			if err != nil {
				return err
			}
			defer closeCatalog()

			out := cmd.OutOrStdout()
			report := svc.Import(cmd.Context(), rows, func(done, total int) {
				fmt.Fprintf(out, "batch %d/%d\n", done, total)
			})

			fmt.Fprintf(out, "imported %d of %d rows\n", report.Success, report.Total)
			for _, e := range report.Errors {
				fmt.Fprintln(out, e)
			}
			return nil
		},
	}
}
