package phase

import "context"

// CatalogRepository loads phase and service catalog data.
type CatalogRepository interface {
	// ListPhases returns every phase definition with its required actions,
	// ordered by sort_order.
	ListPhases(ctx context.Context) ([]Definition, error)

	// ListServices returns every service definition.
	ListServices(ctx context.Context) ([]ServiceDefinition, error)
}
