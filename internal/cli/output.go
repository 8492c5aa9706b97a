package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jhoicas/fuel-ledger/internal/application/dto"
	"github.com/jhoicas/fuel-ledger/internal/domain/entity"
)

// printer escribe en texto o JSON según --format.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(opts *RootOptions, w io.Writer) *printer {
	return &printer{format: opts.Format, w: w}
}

func (p *printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) reports(reports []entity.ConsistencyReport) error {
	if p.format == "json" {
		return p.writeJSON(dto.ConsistencyListResponse{Items: dto.NewConsistencyReports(reports)})
	}
	for _, r := range reports {
		p.reportLine(r)
	}
	return nil
}

func (p *printer) reportLine(r entity.ConsistencyReport) {
	state := "OK"
	if !r.IsConsistent {
		state = "DERIVA"
	}
	fmt.Fprintf(p.w, "%s\t%s\ttanque=%s\tlotes=%s\tdiferencia=%s\n",
		r.TankID, state, r.TankQuantity.String(), r.LotSum.String(), r.Difference.String())
}

func (p *printer) syncResults(results []*entity.SyncResult) error {
	if p.format == "json" {
		items := make([]dto.SyncResultResponse, 0, len(results))
		for _, r := range results {
			items = append(items, dto.NewSyncResultResponse(r))
		}
		return p.writeJSON(map[string]any{"items": items})
	}
	for _, r := range results {
		fmt.Fprintf(p.w, "%s\t%s\taplicado=%t\tpendiente=%s\n", r.TankID, r.Strategy, r.Applied, r.Unresolved.String())
		for _, a := range r.Adjustments {
			fmt.Fprintf(p.w, "  lote %s (%s): %s -> %s\n", a.LotID, a.DeclarationNumber, a.Before.String(), a.After.String())
		}
		p.reportLine(r.After)
	}
	return nil
}
