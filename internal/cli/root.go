// Package cli comandos de operador de fuelctl.
package cli

import (
	"context"
	"fmt"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/spf13/cobra"
)

// Opener abre el ledger y devuelve la función que libera sus recursos.
type Opener func(ctx context.Context) (*ledger.Service, func(), error)

// Migrator migraciones de esquema.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// MigratorOpener abre el migrador contra la base configurada.
type MigratorOpener func() (Migrator, error)

// RootOptions flags globales y dependencias de los subcomandos.
type RootOptions struct {
	Format       string // "text" | "json"
	Open         Opener
	OpenMigrator MigratorOpener
}

// ValidFormats formatos de salida admitidos.
var ValidFormats = []string{"text", "json"}

// NewRootCommand crea el comando raíz de fuelctl.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuelctl",
		Short: "Herramienta de operador del ledger de combustible",
		Long:  "Migraciones, chequeos de consistencia, reconciliación y emisión de overrides sobre el ledger de combustible.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("formato inválido %q: debe ser uno de %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "formato de salida (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewOverrideCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withLedger abre el ledger, ejecuta fn y libera los recursos.
func withLedger(cmd *cobra.Command, opts *RootOptions, fn func(svc *ledger.Service) error) error {
	if opts.Open == nil {
		return fmt.Errorf("ledger no configurado")
	}
	svc, closeFn, err := opts.Open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}
