package project

import (
	"context"
	"time"
)

// Project is the portal-side project record the workflow core reads. The
// wider portal owns the rest of the project's data (briefs, files, invoices).
type Project struct {
	ID           int64
	ClientUserID int64
	ClientEmail  string
	Name         string
	ServiceCodes []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines the read port for project records.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Project, error)
}
