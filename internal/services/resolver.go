package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/surflamp/surf-lamp-processor/internal/catalog"
)

// LocationStore is the slice of the database the resolver needs.
type LocationStore interface {
	ActiveLocations(ctx context.Context) ([]string, error)
}

// Plan pairs one populated location with its priority-ordered endpoints.
type Plan struct {
	Location  string
	Endpoints []catalog.Endpoint
}

// Resolver joins the registered device population against the endpoint
// catalog to decide what the next cycle has to fetch.
type Resolver struct {
	store   LocationStore
	catalog *catalog.Catalog
	logger  *zap.Logger
}

func NewResolver(store LocationStore, cat *catalog.Catalog, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:   store,
		catalog: cat,
		logger:  logger,
	}
}

// Resolve returns a plan per active location. Locations without a catalog
// entry are logged and skipped; nobody can fetch for them. The store query
// failing is the only error, and it aborts the whole cycle.
func (r *Resolver) Resolve(ctx context.Context) ([]Plan, error) {
	locations, err := r.store.ActiveLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active locations: %w", err)
	}

	plans := make([]Plan, 0, len(locations))
	for _, loc := range locations {
		endpoints, ok := r.catalog.Endpoints(loc)
		if !ok {
			r.logger.Warn("Location has no catalog entry, skipping",
				zap.String("location", loc))
			continue
		}
		plans = append(plans, Plan{Location: loc, Endpoints: endpoints})
	}
	return plans, nil
}
