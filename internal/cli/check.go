package cli

import (
	"errors"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/spf13/cobra"
)

// CheckOptions flags del comando check.
type CheckOptions struct {
	FailOnDrift bool
}

// ErrDrift se devuelve con --fail-on-drift cuando algún tanque no cuadra.
var ErrDrift = errors.New("hay tanques inconsistentes")

// NewCheckCommand crea el comando check [tank-id].
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check [tank-id]",
		Short: "Compara la cantidad de cada tanque contra la suma de sus lotes",
		Long: `Sin argumentos chequea todos los tanques. Solo lectura: no modifica datos
ni registra auditoría.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rootOpts, func(svc *ledger.Service) error {
				var reports []entity.ConsistencyReport
				if len(args) == 1 {
					rep, err := svc.Checker.Check(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					reports = []entity.ConsistencyReport{rep}
				} else {
					all, err := svc.Checker.CheckAll(cmd.Context())
					if err != nil {
						return err
					}
					reports = all
				}
				if err := newPrinter(rootOpts, cmd.OutOrStdout()).reports(reports); err != nil {
					return err
				}
				if opts.FailOnDrift {
					for _, r := range reports {
						if !r.IsConsistent {
							return ErrDrift
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.FailOnDrift, "fail-on-drift", false, "termina con error si algún tanque es inconsistente")
	return cmd
}
