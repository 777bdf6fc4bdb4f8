package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devclip/internal/auth"
	"devclip/internal/billing"
	"devclip/internal/storage"
)

// app carries settings and lazily opened storage for the commands
type app struct {
	v  *viper.Viper
	db *storage.DB
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "devclipctl",
		Short:         "DevClip operator CLI",
		Long:          "devclipctl runs schema migrations, maintains accounts and credits, and mints admin credentials for the DevClip API.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("database-url", "", "PostgreSQL DSN (env DATABASE_URL)")
	flags.String("jwt-secret", "", "admin token signing secret (env JWT_SECRET)")
	_ = a.v.BindPFlag("database-url", flags.Lookup("database-url"))
	_ = a.v.BindPFlag("jwt-secret", flags.Lookup("jwt-secret"))

	rootCmd.AddCommand(
		newMigrateCmd(a),
		newRefreshCmd(a),
		newSetPlanCmd(a),
		newCreateAccountCmd(a),
		newIssueKeyCmd(a),
		newHashPasswordCmd(),
		newAdminTokenCmd(a),
	)

	return rootCmd
}

func (a *app) openDB(ctx context.Context) (*storage.DB, error) {
	if a.db != nil {
		return a.db, nil
	}

	url := a.v.GetString("database-url")
	if url == "" {
		return nil, fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
	}

	cfg := storage.DefaultDBConfig()
	cfg.URL = url
	cfg.MaxOpenConns = 2
	cfg.MaxIdleConns = 1
	db, err := storage.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Health(ctx); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) ledger(ctx context.Context) (*billing.Ledger, error) {
	db, err := a.openDB(ctx)
	if err != nil {
		return nil, err
	}
	return billing.NewLedger(db.NewAccountRepository()), nil
}

func (a *app) keys(ctx context.Context) (*auth.KeyService, error) {
	db, err := a.openDB(ctx)
	if err != nil {
		return nil, err
	}
	return auth.NewKeyService(db.NewAPIKeyRepository()), nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
