package dto

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit" validate:"min=0,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

// DefaultPage aplica valores por defecto si Limit/Offset son cero.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// FieldError detalle de un campo rechazado por la validación.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	Drift   *DriftDTO    `json:"drift,omitempty"`
}

// DriftDTO detalle de la deriva en un rechazo por consistencia.
type DriftDTO struct {
	TankID       string `json:"tank_id"`
	TankQuantity string `json:"tank_quantity"`
	LotSum       string `json:"lot_sum"`
	Difference   string `json:"difference"`
	Tolerance    string `json:"tolerance"`
}
