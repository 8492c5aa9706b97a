package entity

import "time"

// OverrideToken credencial de corta duración que permite saltar un pre-chequeo de consistencia fallido.
// Se valida una sola vez y no persiste más allá de su TTL.
type OverrideToken struct {
	Token          string
	TankID         string
	OperationType  string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	IssuingActorID string
}

// ExpiresIn segundos restantes respecto a now.
func (o *OverrideToken) ExpiresIn(now time.Time) int {
	d := o.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}
