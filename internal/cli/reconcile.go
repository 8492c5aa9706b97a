package cli

import (
	"fmt"

	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
	"github.com/spf13/cobra"
)

// ReconcileOptions flags del comando reconcile.
type ReconcileOptions struct {
	Strategy string
	TankID   string
	Actor    string
}

// NewReconcileCommand crea el comando reconcile --strategy <S> [--tank <id>].
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{}
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcilia uno o todos los tanques con la estrategia indicada",
		Long: fmt.Sprintf(`Estrategias: %s, %s, %s.
Sin --tank recorre todos los tanques; los fallos individuales no detienen la pasada.`,
			entity.StrategyReportOnly, entity.StrategyAdjustTankQuantity, entity.StrategyAdjustMRNRecords),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !entity.ValidStrategy(opts.Strategy) {
				return fmt.Errorf("estrategia desconocida %q", opts.Strategy)
			}
			return withLedger(cmd, rootOpts, func(svc *ledger.Service) error {
				p := newPrinter(rootOpts, cmd.OutOrStdout())
				if opts.TankID != "" {
					res, err := svc.Reconciler.Reconcile(cmd.Context(), opts.TankID, opts.Strategy, opts.Actor)
					if err != nil {
						return err
					}
					return p.syncResults([]*entity.SyncResult{res})
				}
				results, err := svc.Reconciler.ReconcileAll(cmd.Context(), opts.Strategy, opts.Actor)
				if perr := p.syncResults(results); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&opts.Strategy, "strategy", entity.StrategyReportOnly, "estrategia de reconciliación")
	cmd.Flags().StringVar(&opts.TankID, "tank", "", "ID del tanque (vacío = todos)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "fuelctl", "actor registrado en auditoría")
	return cmd
}
