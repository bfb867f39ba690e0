package services

import (
	"sort"
	"time"

	"slipsync/cache"
	"slipsync/models"
)

// PlacementResponse is the legacy placement contract. Field order and types
// are fixed by the downstream consumer, including confidence_score as a string.
type PlacementResponse struct {
	MasterSlipID  int64           `json:"master_slip_id"`
	EngineVersion string          `json:"engine_version"`
	GeneratedAt   string          `json:"generated_at"`
	Slips         []PlacementSlip `json:"slips"`
}

type PlacementSlip struct {
	SlipID          string         `json:"slip_id"`
	MasterSlipID    int64          `json:"master_slip_id"`
	Legs            []PlacementLeg `json:"legs"`
	TotalOdds       float64        `json:"total_odds"`
	ConfidenceScore string         `json:"confidence_score"`
	Stake           float64        `json:"stake"`
	EstimatedReturn float64        `json:"estimated_return"`
	RiskCategory    string         `json:"risk_category"`
	DiversityScore  *float64       `json:"diversity_score"`
	CreatedAt       string         `json:"created_at"`
}

type PlacementLeg struct {
	MatchID   int64   `json:"match_id"`
	HomeTeam  string  `json:"home_team"`
	AwayTeam  string  `json:"away_team"`
	Market    string  `json:"market"`
	Selection string  `json:"selection"`
	Odds      float64 `json:"odds"`
}

// SlipSource is one stored generated slip plus its externally stored legs.
type SlipSource struct {
	Slip models.GeneratedSlip
	Legs []models.GeneratedSlipLeg
}

type Normalizer struct {
	EngineVersion string
	Now           func() time.Time
}

// Build assembles the placement response. The master slip must already be
// known to exist; legs whose match is unknown come out with empty team names.
func (n Normalizer) Build(master *models.MasterSlip, sources []SlipSource, matches map[int64]cache.TeamPair) PlacementResponse {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	masterID, _ := toInt(master.MasterSlipID)

	type ranked struct {
		slip       PlacementSlip
		confidence float64
	}
	rows := make([]ranked, 0, len(sources))
	for _, src := range sources {
		s := n.slip(src, matches)
		rows = append(rows, ranked{slip: s, confidence: toFloat(s.ConfidenceScore)})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.slip.TotalOdds != b.slip.TotalOdds {
			return a.slip.TotalOdds > b.slip.TotalOdds
		}
		return a.slip.SlipID < b.slip.SlipID
	})

	slips := make([]PlacementSlip, len(rows))
	for i, r := range rows {
		slips[i] = r.slip
	}
	return PlacementResponse{
		MasterSlipID:  masterID,
		EngineVersion: n.EngineVersion,
		GeneratedAt:   isoTime(now()),
		Slips:         slips,
	}
}

func (n Normalizer) slip(src SlipSource, matches map[int64]cache.TeamPair) PlacementSlip {
	doc := map[string]any(src.Slip.Document)

	slipID := src.Slip.SlipID
	if slipID == "" {
		slipID = firstText(doc, slipIDAliases)
	}
	masterID, _ := toInt(src.Slip.MasterSlipID)

	out := PlacementSlip{
		SlipID:          slipID,
		MasterSlipID:    masterID,
		TotalOdds:       toFloat(doc["total_odds"]),
		ConfidenceScore: toString(doc["confidence_score"]),
		Stake:           toFloat(doc["stake"]),
		EstimatedReturn: toFloat(firstValue(doc, estimatedReturnAliases)),
		RiskCategory:    "unknown",
		Legs:            n.legs(src, matches),
	}
	if v, ok := firstPresent(doc, riskCategoryAliases); ok {
		out.RiskCategory = toString(v)
	}
	out.RiskCategory = lower(out.RiskCategory)

	if f, ok := toFloatOK(doc["diversity_score"]); ok {
		out.DiversityScore = &f
	}

	if v, ok := firstPresent(doc, createdAtAliases); ok {
		out.CreatedAt = timeText(v)
	} else if !src.Slip.CreatedAt.IsZero() {
		out.CreatedAt = isoTime(src.Slip.CreatedAt)
	}
	return out
}

// legs prefers the legs embedded in the slip document and falls back to the
// externally stored rows.
func (n Normalizer) legs(src SlipSource, matches map[int64]cache.TeamPair) []PlacementLeg {
	if embedded, ok := asSlice(src.Slip.Document["legs"]); ok && len(embedded) > 0 {
		out := make([]PlacementLeg, 0, len(embedded))
		for _, item := range embedded {
			leg, _ := asMap(item)
			out = append(out, placementLeg(leg, matches))
		}
		return out
	}

	out := make([]PlacementLeg, 0, len(src.Legs))
	for _, row := range src.Legs {
		leg := map[string]any(row.Document)
		if _, ok := leg["match_id"]; !ok && row.MatchID != nil {
			leg = without(leg)
			leg["match_id"] = *row.MatchID
		}
		out = append(out, placementLeg(leg, matches))
	}
	return out
}

func placementLeg(leg map[string]any, matches map[int64]cache.TeamPair) PlacementLeg {
	matchID, _ := toInt(leg["match_id"])
	out := PlacementLeg{
		MatchID:   matchID,
		Market:    toString(leg["market"]),
		Selection: toString(leg["selection"]),
		Odds:      toFloat(leg["odds"]),
	}

	if snapshot, ok := asMap(leg["match"]); ok && len(snapshot) > 0 {
		out.HomeTeam = toString(firstValue(snapshot, homeTeamAliases))
		out.AwayTeam = toString(firstValue(snapshot, awayTeamAliases))
	} else if pair, ok := matches[matchID]; ok {
		out.HomeTeam = pair.HomeTeam
		out.AwayTeam = pair.AwayTeam
	}
	return out
}

// legMatchIDs lists the match ids that need the resolver: legs carrying their
// own match snapshot are skipped.
func legMatchIDs(sources []SlipSource) []int64 {
	var ids []int64
	collect := func(leg map[string]any) {
		if snapshot, ok := asMap(leg["match"]); ok && len(snapshot) > 0 {
			return
		}
		if id, ok := toInt(leg["match_id"]); ok {
			ids = append(ids, id)
		}
	}
	for _, src := range sources {
		if embedded, ok := asSlice(src.Slip.Document["legs"]); ok && len(embedded) > 0 {
			for _, item := range embedded {
				leg, _ := asMap(item)
				collect(leg)
			}
			continue
		}
		for _, row := range src.Legs {
			if _, ok := row.Document["match_id"]; !ok && row.MatchID != nil {
				ids = append(ids, *row.MatchID)
				continue
			}
			collect(row.Document)
		}
	}
	return uniqueIDs(ids)
}
