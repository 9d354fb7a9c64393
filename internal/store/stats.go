package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider exposes helper methods to retrieve collection counts for basic
// diagnostics without leaking MongoDB internals to callers.
type StatsProvider struct {
	benches   countCollection
	locations countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the provided bench and
// location collections.
func NewStatsProvider(benches, locations countCollection) *StatsProvider {
	return &StatsProvider{
		benches:   benches,
		locations: locations,
	}
}

// CountBenches returns the number of documents in the benches collection.
func (p *StatsProvider) CountBenches(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.benches == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.benches.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count benches: %w", err)
	}

	return count, nil
}

// CountLocations returns the number of documents in the locations collection.
func (p *StatsProvider) CountLocations(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.locations == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.locations.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}

	return count, nil
}
