package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"slipsync/apperrors"
	"slipsync/cache"
	"slipsync/models"
	"slipsync/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPayload = `{
  "master_slip": {"id": 1001, "user_id": "u-1", "stake": 10, "total_odds": 12.5, "currency": "USD"},
  "generated_slips": [
    {
      "id": 7, "total_odds": 5.0, "confidence_score": 80, "stake": 10,
      "possible_return": 50, "risk_level": "HIGH",
      "legs": [
        {"match_id": 501, "market": "1X2", "selection": "1", "odds": 2.5},
        {"match_id": 502, "market": "BTTS", "selection": "Yes", "odds": 2.0, "match": {"homeTeam": "Inter", "awayTeam": "Milan"}}
      ]
    },
    {
      "slip_id": "slip-b", "total_odds": 3.2, "confidence_score": "90",
      "legs": [{"id": "leg-x", "match_id": 503, "market": "OU", "selection": "Over 2.5", "odds": 1.8}]
    }
  ],
  "optimized_slips": [{"id": "opt-1", "score": 0.9}],
  "matches": [
    {"match_id": 501, "match_data": {"home_team": "Arsenal", "homeTeam": "Gunners", "away_team": "Chelsea", "league": "EPL"}},
    {"id": "custom-502", "match_data": {"match_id": 502, "homeTeam": "Inter", "awayTeam": "Milan"}}
  ]
}`

func TestSync_AppliesEveryStep(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	teams := newMemoryTeams()
	proc := NewSyncProcessor(store, teams, testIDs(), nil)

	report, err := proc.Sync(ctx, decode(t, fullPayload))
	require.NoError(t, err)

	assert.Equal(t, SyncCounts{
		MasterSlips:      1,
		GeneratedSlips:   2,
		Legs:             3,
		OptimizedSlips:   1,
		Matches:          2,
		CanonicalMatches: 2,
	}, report.Synced)
	assert.Equal(t, SyncDetails{
		MasterSlipID: "1001",
		SlipIDs:      []string{"7", "slip-b"},
		OptimizedIDs: []string{"opt-1"},
		MatchIDs:     []int64{501, 502},
	}, report.Details)

	master, err := store.FindMasterSlip(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "u-1", master.UserID)
	assert.Equal(t, "12.5", master.TotalOdds.String())
	assert.Equal(t, "USD", master.Attributes["currency"])
	assert.NotContains(t, master.Attributes, "id")

	slip, err := store.FindGeneratedSlip(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "1001", slip.MasterSlipID)
	assert.Equal(t, "7", slip.Document["slip_id"])
	assert.Equal(t, 5.0, slip.TotalOdds)
	assert.Equal(t, 80.0, slip.ConfidenceScore)
	assert.Equal(t, models.SlipStatusActive, slip.Status)

	legs, err := store.FindLegs(ctx, []string{"7", "slip-b"})
	require.NoError(t, err)
	require.Len(t, legs, 3)
	var legIDs []string
	for _, l := range legs {
		legIDs = append(legIDs, l.LegID)
	}
	assert.ElementsMatch(t, []string{"7_leg_0", "7_leg_1", "leg-x"}, legIDs)

	scoped, err := store.FindMasterSlipMatches(ctx, 1001, []int64{501, 502})
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.ElementsMatch(t, []string{"1001_501", "custom-502"}, []string{scoped[0].RecordID, scoped[1].RecordID})

	registry, err := store.FindMatches(ctx, []int64{501})
	require.NoError(t, err)
	require.Len(t, registry, 1)
	assert.Equal(t, "Arsenal", registry[0].HomeTeam, "snake_case wins over camelCase")
	assert.Equal(t, "Chelsea", registry[0].AwayTeam)
	assert.Equal(t, "EPL", registry[0].Attributes["league"])
	assert.NotContains(t, registry[0].Attributes, "homeTeam")

	assert.ElementsMatch(t, []int64{501, 502}, teams.wrote)
	assert.Equal(t, cache.TeamPair{HomeTeam: "Inter", AwayTeam: "Milan"}, teams.data[502])
}

func TestSync_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	proc := NewSyncProcessor(store, nil, testIDs(), nil)
	placement := NewPlacementService(store, NewMatchResolver(store, nil, nil), Normalizer{EngineVersion: "1.0.0", Now: func() time.Time { return fixedNow }})

	_, err := proc.Sync(ctx, decode(t, fullPayload))
	require.NoError(t, err)
	first, err := placement.Get(ctx, "1001")
	require.NoError(t, err)

	_, err = proc.Sync(ctx, decode(t, fullPayload))
	require.NoError(t, err)
	second, err := placement.Get(ctx, "1001")
	require.NoError(t, err)

	n, err := store.CountGeneratedSlips(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	legs, err := store.FindLegs(ctx, []string{"7", "slip-b"})
	require.NoError(t, err)
	assert.Len(t, legs, 3)

	scoped, err := store.FindMasterSlipMatches(ctx, 1001, []int64{501, 502})
	require.NoError(t, err)
	assert.Len(t, scoped, 2)

	master, err := store.FindMasterSlip(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, 0, master.SlipCount)

	assert.Equal(t, first, second)
}

func TestSync_ReusesNormalizedSlipID(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	proc := NewSyncProcessor(store, nil, testIDs(), nil)

	report, err := proc.Sync(ctx, decode(t, `{"master_slip": {"master_slip_id": "55"}, "generated_slips": [{"id": 7, "confidence_score": 1}]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"7"}, report.Details.SlipIDs)

	_, err = proc.Sync(ctx, decode(t, `{"master_slip": {"master_slip_id": "55"}, "generated_slips": [{"slip_id": "7", "confidence_score": 2}]}`))
	require.NoError(t, err)

	n, err := store.CountGeneratedSlips(ctx, "55")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	slip, err := store.FindGeneratedSlip(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 2.0, slip.ConfidenceScore)
	assert.Equal(t, json.Number("7"), slip.Document["id"], "fields from the first sync survive the merge")
}

func TestSync_SynthesizesMissingSlipID(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	proc := NewSyncProcessor(store, nil, testIDs(), nil)

	report, err := proc.Sync(ctx, decode(t, `{"master_slip": {"id": "m-1"}, "generated_slips": [{"total_odds": 2}]}`))
	require.NoError(t, err)
	require.Len(t, report.Details.SlipIDs, 1)
	assert.Regexp(t, `^slip_1748779200000_[0-9a-f]{8}$`, report.Details.SlipIDs[0])

	_, err = store.FindGeneratedSlip(ctx, report.Details.SlipIDs[0])
	assert.NoError(t, err)
}

func TestSync_RejectsMalformedPayloadBeforeWriting(t *testing.T) {
	cases := map[string]string{
		"missing master slip":    `{"generated_slips": []}`,
		"master slip without id": `{"master_slip": {"user_id": "u"}}`,
		"non-integer master id":  `{"master_slip": {"id": "abc"}, "matches": [{"match_id": 1}]}`,
		"match without match id": `{"master_slip": {"id": 1}, "matches": [{"match_data": {"home_team": "A"}}]}`,
		"bad slip status":        `{"master_slip": {"id": 1}, "generated_slips": [{"status": "pending"}]}`,
		"legs not an array":      `{"master_slip": {"id": 1}, "generated_slips": [{"legs": "x"}]}`,
		"non-numeric stake":      `{"master_slip": {"id": 1, "stake": "ten"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			proc := NewSyncProcessor(store, nil, testIDs(), nil)

			_, err := proc.Sync(ctx, decode(t, body))
			var ve *apperrors.ValidationError
			require.ErrorAs(t, err, &ve)

			_, err = store.FindMasterSlip(ctx, "1")
			assert.Equal(t, 404, apperrors.StatusCode(err))
		})
	}
}

func TestDecodeSyncPayload_InvalidJSON(t *testing.T) {
	_, err := DecodeSyncPayload(strings.NewReader(`{"master_slip":`))
	assert.Equal(t, 400, apperrors.StatusCode(err))
}

type failingOptimized struct {
	*repository.Store
}

func (failingOptimized) UpsertOptimizedSlip(context.Context, string, int64, map[string]any) (*models.OptimizedSlip, error) {
	return nil, errors.New("write timeout")
}

func TestSync_FailureKeepsEarlierSteps(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	proc := NewSyncProcessor(failingOptimized{store}, nil, testIDs(), nil)

	report, err := proc.Sync(ctx, decode(t, fullPayload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opt-1")
	assert.Equal(t, 500, apperrors.StatusCode(err))

	assert.Equal(t, 1, report.Synced.MasterSlips)
	assert.Equal(t, 2, report.Synced.GeneratedSlips)
	assert.Equal(t, 0, report.Synced.Matches)

	_, err = store.FindMasterSlip(ctx, "1001")
	assert.NoError(t, err)
	n, err := store.CountGeneratedSlips(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	registry, err := store.FindMatches(ctx, []int64{501, 502})
	require.NoError(t, err)
	assert.Empty(t, registry)
}

// failingSecondMatch accepts the first canonical match and fails the rest.
type failingSecondMatch struct {
	*repository.Store
	calls int
}

func (f *failingSecondMatch) MergeMatch(ctx context.Context, matchID int64, apply func(*models.Match, bool)) (*models.Match, error) {
	f.calls++
	if f.calls > 1 {
		return nil, errors.New("write timeout")
	}
	return f.Store.MergeMatch(ctx, matchID, apply)
}

func TestSync_PartialMatchFailureRefreshesCache(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	teams := newMemoryTeams()
	teams.data[501] = cache.TeamPair{HomeTeam: "Old", AwayTeam: "Old"}
	proc := NewSyncProcessor(&failingSecondMatch{Store: store}, teams, testIDs(), nil)

	report, err := proc.Sync(ctx, decode(t, fullPayload))
	require.Error(t, err)
	assert.Equal(t, 1, report.Synced.CanonicalMatches)

	assert.Equal(t, cache.TeamPair{HomeTeam: "Arsenal", AwayTeam: "Chelsea"}, teams.data[501])
	assert.Equal(t, []int64{501}, teams.wrote)

	// another master slip has no scoped context, so names come from the cache
	got, err := NewMatchResolver(store, teams, nil).Resolve(ctx, 999, []int64{501})
	require.NoError(t, err)
	assert.Equal(t, cache.TeamPair{HomeTeam: "Arsenal", AwayTeam: "Chelsea"}, got[501])
}

func TestIDGenerator_UsesPrefix(t *testing.T) {
	ids := testIDs()
	assert.True(t, strings.HasPrefix(ids.New(""), "slip_1748779200000_"))
	assert.True(t, strings.HasPrefix(ids.New("opt"), "opt_1748779200000_"))
	assert.NotEqual(t, ids.New(""), ids.New(""))
}
