package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand crea el comando migrate con up, down y version.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migraciones del esquema PostgreSQL",
	}
	cmd.AddCommand(
		migrateStep(opts, "up", "Aplica las migraciones pendientes", func(m Migrator) error { return m.Up() }),
		migrateStep(opts, "down", "Revierte todas las migraciones", func(m Migrator) error { return m.Down() }),
		&cobra.Command{
			Use:   "version",
			Short: "Muestra la versión actual del esquema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(opts, func(m Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					p := newPrinter(opts, cmd.OutOrStdout())
					if p.format == "json" {
						return p.writeJSON(map[string]any{"version": v, "dirty": dirty})
					}
					fmt.Fprintf(p.w, "versión %d (dirty=%t)\n", v, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func migrateStep(opts *RootOptions, use, short string, fn func(Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, func(m Migrator) error {
				if err := fn(m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", use)
				return nil
			})
		},
	}
}

func withMigrator(opts *RootOptions, fn func(Migrator) error) error {
	if opts.OpenMigrator == nil {
		return fmt.Errorf("migrador no configurado")
	}
	m, err := opts.OpenMigrator()
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
