package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/ean_catalog/internal/db"
	"github.com/Skotchmaster/ean_catalog/internal/repo"
	"github.com/Skotchmaster/ean_catalog/internal/service"
)

type seedOptions struct {
	username string
	password string
	nome     string
	hash     bool
}

func newSeedAdminCmd(a *app) *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin user if it does not exist",
		Long: `Create a user account for the catalog.

The password is stored as given unless --hash is passed, in which case a
bcrypt hash is stored. Login accepts both. The password may also come from
ADMIN_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.password == "" {
				opts.password = os.Getenv("ADMIN_PASSWORD")
			}
			return a.seedAdmin(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.username, "username", "admin", "login name")
	cmd.Flags().StringVar(&opts.password, "password", "", "password (or ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&opts.nome, "nome", "", "display name")
	cmd.Flags().BoolVar(&opts.hash, "hash", false, "store a bcrypt hash instead of the plain password")
	return cmd
}

func (a *app) seedAdmin(cmd *cobra.Command, opts seedOptions) error {
	if opts.username == "" || opts.password == "" {
		return errors.New("username and password are required")
	}

	ctx := cmd.Context()
	gdb, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	svc := &service.AuthService{Repo: &repo.GormRepo{DB: gdb}}
	u, err := svc.SeedUser(ctx, opts.username, opts.password, opts.nome, opts.hash)
	if errors.Is(err, service.ErrConflict) {
		fmt.Fprintf(cmd.OutOrStdout(), "user %q already exists\n", opts.username)
		return nil
	}
	if err != nil {
		return err
	}

	a.logger.Info("user_seeded", "user_id", u.ID, "username", u.Username, "hashed", opts.hash)
	fmt.Fprintf(cmd.OutOrStdout(), "user %q created\n", u.Username)
	return nil
}
