package domain

import "time"

// Establishment is the tenant boundary: every case load and commit is scoped
// to one establishment explicitly, never through ambient context.
type Establishment struct {
	ID        string
	Name      string
	Commune   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
