package cli

import (
	"fmt"
	"time"

	"github.com/jhoicas/fuel-ledger/internal/application/dto"
	"github.com/jhoicas/fuel-ledger/internal/application/ledger"
	"github.com/spf13/cobra"
)

// OverrideOptions flags del comando override.
type OverrideOptions struct {
	TankID        string
	OperationType string
	Actor         string
	TTL           time.Duration
}

// NewOverrideCommand crea el comando override --tank --op --actor.
func NewOverrideCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OverrideOptions{}
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Emite un token de un solo uso que salta el pre-chequeo de consistencia",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rootOpts, func(svc *ledger.Service) error {
				tok, err := svc.Overrides.IssueToken(cmd.Context(), opts.TankID, opts.OperationType, opts.Actor, opts.TTL)
				if err != nil {
					return err
				}
				p := newPrinter(rootOpts, cmd.OutOrStdout())
				if p.format == "json" {
					return p.writeJSON(dto.OverrideResponse{
						Token:            tok.Token,
						TankID:           tok.TankID,
						OperationType:    tok.OperationType,
						ExpiresAt:        tok.ExpiresAt,
						ExpiresInSeconds: tok.ExpiresIn(tok.IssuedAt),
					})
				}
				fmt.Fprintf(p.w, "%s\t%s\t%s\texpira=%s\n", tok.Token, tok.TankID, tok.OperationType, tok.ExpiresAt.Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.TankID, "tank", "", "ID del tanque")
	cmd.Flags().StringVar(&opts.OperationType, "op", "", "operación autorizada (TRANSFER|DISPENSE|DRAIN)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "supervisor que emite el token")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "vigencia del token (0 = valor configurado)")
	_ = cmd.MarkFlagRequired("tank")
	_ = cmd.MarkFlagRequired("op")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
