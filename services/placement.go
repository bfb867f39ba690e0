package services

import (
	"context"
	"fmt"

	"slipsync/cache"
	"slipsync/models"
)

type PlacementStore interface {
	FindMasterSlip(ctx context.Context, masterSlipID string) (*models.MasterSlip, error)
	FindGeneratedSlipsByMaster(ctx context.Context, masterSlipID string) ([]models.GeneratedSlip, error)
	FindLegs(ctx context.Context, slipIDs []string) ([]models.GeneratedSlipLeg, error)
}

type Resolver interface {
	Resolve(ctx context.Context, masterSlipID int64, matchIDs []int64) (map[int64]cache.TeamPair, error)
}

type PlacementService struct {
	store      PlacementStore
	resolver   Resolver
	normalizer Normalizer
}

func NewPlacementService(store PlacementStore, resolver Resolver, normalizer Normalizer) *PlacementService {
	return &PlacementService{store: store, resolver: resolver, normalizer: normalizer}
}

// Get builds the placement response for one master slip. An unknown master
// slip returns the store's NotFoundError before any match lookup happens.
func (s *PlacementService) Get(ctx context.Context, masterSlipID string) (*PlacementResponse, error) {
	master, err := s.store.FindMasterSlip(ctx, masterSlipID)
	if err != nil {
		return nil, err
	}

	slips, err := s.store.FindGeneratedSlipsByMaster(ctx, master.MasterSlipID)
	if err != nil {
		return nil, fmt.Errorf("load generated slips: %w", err)
	}

	// only slips without embedded legs need the leg rows
	var external []string
	for _, slip := range slips {
		if embedded, ok := asSlice(slip.Document["legs"]); !ok || len(embedded) == 0 {
			external = append(external, slip.SlipID)
		}
	}
	legs, err := s.store.FindLegs(ctx, external)
	if err != nil {
		return nil, fmt.Errorf("load legs: %w", err)
	}
	bySlip := make(map[string][]models.GeneratedSlipLeg, len(external))
	for _, leg := range legs {
		bySlip[leg.SlipID] = append(bySlip[leg.SlipID], leg)
	}

	sources := make([]SlipSource, len(slips))
	for i, slip := range slips {
		sources[i] = SlipSource{Slip: slip, Legs: bySlip[slip.SlipID]}
	}

	masterInt, _ := toInt(master.MasterSlipID)
	matches, err := s.resolver.Resolve(ctx, masterInt, legMatchIDs(sources))
	if err != nil {
		return nil, err
	}

	resp := s.normalizer.Build(master, sources, matches)
	return &resp, nil
}
