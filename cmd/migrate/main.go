package main

import (
	"errors"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/wfunc/beatroom/config"
	"github.com/wfunc/beatroom/persistence"
)

func main() {
	log.SetFlags(0)
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	var configDir string

	migrator := func(cmd *cobra.Command) (*migrate.Migrate, error) {
		cfg, err := config.LoadConfig(configDir, nil)
		if err != nil {
			return nil, err
		}
		return persistence.NewMigrator(cfg.Database.Postgres.URL())
	}

	root := &cobra.Command{
		Use:          "beatroom-migrate",
		Short:        "Apply or roll back the round history schema.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory holding config.yaml and .env")

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			log.Println("database migrations applied")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back one migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Steps(-1); err != nil {
				return err
			}
			log.Println("rolled back one migration")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			defer m.Close()
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			log.Printf("version %d (dirty=%v)", version, dirty)
			return nil
		},
	})

	return root
}
