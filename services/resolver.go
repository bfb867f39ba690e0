package services

import (
	"context"
	"fmt"
	"log/slog"

	"slipsync/cache"
	"slipsync/models"
)

type MatchStore interface {
	FindMasterSlipMatches(ctx context.Context, masterSlipID int64, matchIDs []int64) ([]models.MasterSlipMatch, error)
	FindMatches(ctx context.Context, matchIDs []int64) ([]models.Match, error)
}

// MatchResolver maps match ids to team names. The match context stored with
// the master slip wins; the global registry (read through the team cache)
// fills in what is left. Ids found in neither are left out of the result.
type MatchResolver struct {
	store  MatchStore
	teams  cache.TeamCache
	logger *slog.Logger
}

func NewMatchResolver(store MatchStore, teams cache.TeamCache, logger *slog.Logger) *MatchResolver {
	if teams == nil {
		teams = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchResolver{store: store, teams: teams, logger: logger.With("component", "match_resolver")}
}

func (r *MatchResolver) Resolve(ctx context.Context, masterSlipID int64, matchIDs []int64) (map[int64]cache.TeamPair, error) {
	ids := uniqueIDs(matchIDs)
	out := make(map[int64]cache.TeamPair, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	scoped, err := r.store.FindMasterSlipMatches(ctx, masterSlipID, ids)
	if err != nil {
		return nil, fmt.Errorf("load match context: %w", err)
	}
	for _, row := range scoped {
		// an empty match_data reads back the same as a missing one
		if len(row.MatchData) == 0 {
			continue
		}
		out[row.MatchID] = cache.TeamPair{
			HomeTeam: teamName(firstValue(row.MatchData, homeTeamAliases)),
			AwayTeam: teamName(firstValue(row.MatchData, awayTeamAliases)),
		}
	}

	remaining := missingIDs(ids, out)
	if len(remaining) == 0 {
		return out, nil
	}

	for id, pair := range r.teams.GetTeams(ctx, remaining) {
		out[id] = pair
	}
	remaining = missingIDs(remaining, out)
	if len(remaining) == 0 {
		return out, nil
	}

	registry, err := r.store.FindMatches(ctx, remaining)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	found := make(map[int64]cache.TeamPair, len(registry))
	for _, m := range registry {
		pair := cache.TeamPair{HomeTeam: m.HomeTeam, AwayTeam: m.AwayTeam}
		out[m.MatchID] = pair
		found[m.MatchID] = pair
	}
	r.teams.SetTeams(ctx, found)

	if unresolved := len(ids) - len(out); unresolved > 0 {
		r.logger.Debug("matches left unresolved", "master_slip_id", masterSlipID, "count", unresolved)
	}
	return out, nil
}

func firstValue(doc map[string]any, aliases []string) any {
	v, _ := firstPresent(doc, aliases)
	return v
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(ids []int64, resolved map[int64]cache.TeamPair) []int64 {
	var out []int64
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
