package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"slipsync/apperrors"
	"slipsync/cache"
	"slipsync/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncStore is the write side of storage the sync processor needs.
type SyncStore interface {
	UpsertMasterSlip(ctx context.Context, masterSlipID string, apply func(m *models.MasterSlip, exists bool)) (*models.MasterSlip, error)
	UpsertGeneratedSlip(ctx context.Context, slipID string, apply func(g *models.GeneratedSlip, exists bool)) (*models.GeneratedSlip, error)
	UpsertLegs(ctx context.Context, legs []models.GeneratedSlipLeg) error
	UpsertOptimizedSlip(ctx context.Context, recordID string, masterSlipID int64, doc map[string]any) (*models.OptimizedSlip, error)
	UpsertMasterSlipMatch(ctx context.Context, recordID string, apply func(m *models.MasterSlipMatch, exists bool)) (*models.MasterSlipMatch, error)
	MergeMatch(ctx context.Context, matchID int64, apply func(m *models.Match, exists bool)) (*models.Match, error)
}

type SyncPayload struct {
	MasterSlip     map[string]any   `json:"master_slip"`
	GeneratedSlips []map[string]any `json:"generated_slips"`
	OptimizedSlips []map[string]any `json:"optimized_slips"`
	Matches        []map[string]any `json:"matches"`
}

// DecodeSyncPayload reads a payload keeping numbers as json.Number, so large
// ids survive without float rounding.
func DecodeSyncPayload(r io.Reader) (SyncPayload, error) {
	var p SyncPayload
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return p, apperrors.Validation("", "invalid JSON body: "+err.Error())
	}
	return p, nil
}

type SyncCounts struct {
	MasterSlips      int `json:"master_slips"`
	GeneratedSlips   int `json:"generated_slips"`
	Legs             int `json:"legs"`
	OptimizedSlips   int `json:"optimized_slips"`
	Matches          int `json:"matches"`
	CanonicalMatches int `json:"canonical_matches"`
}

type SyncDetails struct {
	MasterSlipID string   `json:"master_slip_id"`
	SlipIDs      []string `json:"slip_ids"`
	OptimizedIDs []string `json:"optimized_ids"`
	MatchIDs     []int64  `json:"match_ids"`
}

type SyncReport struct {
	Synced  SyncCounts  `json:"synced"`
	Details SyncDetails `json:"details"`
}

// IDGenerator synthesises ids of the form <prefix>_<unix millis>_<8 hex chars>.
type IDGenerator struct {
	Prefix string
	Now    func() time.Time
}

func (g IDGenerator) New(prefix string) string {
	if prefix == "" {
		prefix = g.Prefix
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now().UnixMilli(), uuid.NewString()[:8])
}

type SyncProcessor struct {
	store  SyncStore
	teams  cache.TeamCache
	ids    IDGenerator
	logger *slog.Logger
}

func NewSyncProcessor(store SyncStore, teams cache.TeamCache, ids IDGenerator, logger *slog.Logger) *SyncProcessor {
	if teams == nil {
		teams = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncProcessor{store: store, teams: teams, ids: ids, logger: logger.With("component", "sync")}
}

// masterSlipColumns are the payload keys stored as typed columns; every other
// key lands in Attributes.
var masterSlipColumns = []string{"id", "master_slip_id", "user_id", "stake", "total_odds", "status", "created_at", "updated_at", "slip_count"}

// Sync applies one payload as an ordered series of independent upserts:
// master slip, generated slips with their legs, optimized slips, then match
// context with the canonical matches extracted from it. Nothing is rolled
// back; when a step fails the returned report covers the steps that landed.
func (p *SyncProcessor) Sync(ctx context.Context, payload SyncPayload) (SyncReport, error) {
	var report SyncReport

	plan, err := p.validate(payload)
	if err != nil {
		return report, err
	}
	report.Details = SyncDetails{
		MasterSlipID: plan.masterKey,
		SlipIDs:      []string{},
		OptimizedIDs: []string{},
		MatchIDs:     []int64{},
	}

	// 1. master slip
	master, err := masterSlipFields(payload.MasterSlip)
	if err != nil {
		return report, err
	}
	if _, err := p.store.UpsertMasterSlip(ctx, plan.masterKey, master.apply); err != nil {
		return report, fmt.Errorf("upsert master slip %s: %w", plan.masterKey, err)
	}
	report.Synced.MasterSlips = 1

	// 2. generated slips and legs
	for _, raw := range payload.GeneratedSlips {
		slipID := firstText(raw, syncSlipIDAliases)
		if slipID == "" {
			slipID = p.ids.New("")
		}
		if err := p.syncGeneratedSlip(ctx, plan.masterKey, slipID, raw); err != nil {
			return report, err
		}
		report.Synced.GeneratedSlips++
		report.Details.SlipIDs = append(report.Details.SlipIDs, slipID)

		legs := legRows(plan.masterKey, slipID, raw["legs"])
		if err := p.store.UpsertLegs(ctx, legs); err != nil {
			return report, fmt.Errorf("upsert legs of %s: %w", slipID, err)
		}
		report.Synced.Legs += len(legs)
	}

	// 3. optimized slips
	for _, raw := range payload.OptimizedSlips {
		recordID := toString(raw["id"])
		if recordID == "" {
			recordID = p.ids.New("opt")
		}
		doc := without(raw, "id", "master_slip_id")
		doc["id"] = recordID
		doc["master_slip_id"] = plan.masterInt
		if _, err := p.store.UpsertOptimizedSlip(ctx, recordID, plan.masterInt, doc); err != nil {
			return report, fmt.Errorf("upsert optimized slip %s: %w", recordID, err)
		}
		report.Synced.OptimizedSlips++
		report.Details.OptimizedIDs = append(report.Details.OptimizedIDs, recordID)
	}

	// 4. match context and canonical matches
	resolved := make(map[int64]cache.TeamPair)
	// matches merged before a failure still refresh the cache
	defer func() {
		if len(resolved) > 0 {
			p.teams.SetTeams(ctx, resolved)
		}
	}()
	for i, raw := range payload.Matches {
		matchID := plan.matchIDs[i]
		recordID := toString(raw["id"])
		if recordID == "" {
			recordID = fmt.Sprintf("%s_%d", plan.masterKey, matchID)
		}
		matchData, hasData := asMap(raw["match_data"])

		_, err := p.store.UpsertMasterSlipMatch(ctx, recordID, func(m *models.MasterSlipMatch, _ bool) {
			m.MasterSlipID = plan.masterInt
			m.MatchID = matchID
			if hasData {
				m.MatchData = matchData
			}
			m.Document = models.MergeDocument(m.Document, without(raw, "id", "master_slip_id", "match_id", "match_data"))
		})
		if err != nil {
			return report, fmt.Errorf("upsert match context %s: %w", recordID, err)
		}
		report.Synced.Matches++

		if !hasData {
			continue
		}
		merged, err := p.store.MergeMatch(ctx, matchID, canonicalMatch(matchData))
		if err != nil {
			return report, fmt.Errorf("upsert match %d: %w", matchID, err)
		}
		report.Synced.CanonicalMatches++
		report.Details.MatchIDs = append(report.Details.MatchIDs, matchID)
		resolved[matchID] = cache.TeamPair{HomeTeam: merged.HomeTeam, AwayTeam: merged.AwayTeam}
	}

	p.logger.Info("sync applied",
		"master_slip_id", plan.masterKey,
		"generated_slips", report.Synced.GeneratedSlips,
		"legs", report.Synced.Legs,
		"optimized_slips", report.Synced.OptimizedSlips,
		"matches", report.Synced.Matches,
	)
	return report, nil
}

type syncPlan struct {
	masterKey string
	masterInt int64
	matchIDs  []int64
}

// validate rejects a malformed payload before anything is written.
func (p *SyncProcessor) validate(payload SyncPayload) (syncPlan, error) {
	var plan syncPlan
	if payload.MasterSlip == nil {
		return plan, apperrors.Validation("master_slip", "is required")
	}
	key, ok := firstPresent(payload.MasterSlip, masterSlipKeyAliases)
	plan.masterKey = toString(key)
	if !ok || plan.masterKey == "" {
		return plan, apperrors.Validation("master_slip", "id or master_slip_id is required")
	}

	masterInt, isInt := toExactInt(key)
	if (len(payload.OptimizedSlips) > 0 || len(payload.Matches) > 0) && !isInt {
		return plan, apperrors.Validation("master_slip.id", "must be an integer when optimized_slips or matches are present")
	}
	plan.masterInt = masterInt

	for i, raw := range payload.GeneratedSlips {
		if status := toString(raw["status"]); status != "" && !models.ValidSlipStatus(status) {
			return plan, apperrors.Validation(fmt.Sprintf("generated_slips[%d].status", i), "must be one of active, won, lost, void")
		}
		if v, ok := raw["legs"]; ok && v != nil {
			legs, ok := asSlice(v)
			if !ok {
				return plan, apperrors.Validation(fmt.Sprintf("generated_slips[%d].legs", i), "must be an array")
			}
			for j, leg := range legs {
				if _, ok := asMap(leg); !ok {
					return plan, apperrors.Validation(fmt.Sprintf("generated_slips[%d].legs[%d]", i, j), "must be an object")
				}
			}
		}
	}

	plan.matchIDs = make([]int64, len(payload.Matches))
	for i, raw := range payload.Matches {
		id, ok := matchIDOf(raw)
		if !ok {
			return plan, apperrors.Validation(fmt.Sprintf("matches[%d].match_id", i), "is required and must be an integer")
		}
		plan.matchIDs[i] = id
	}
	return plan, nil
}

// matchIDOf reads match_id from the entry, falling back to its match_data.
func matchIDOf(raw map[string]any) (int64, bool) {
	if v, ok := raw["match_id"]; ok && v != nil {
		return toExactInt(v)
	}
	data, ok := asMap(raw["match_data"])
	if !ok {
		return 0, false
	}
	v, ok := firstPresent(data, embeddedMatchIDAliases)
	if !ok {
		return 0, false
	}
	return toExactInt(v)
}

func (p *SyncProcessor) syncGeneratedSlip(ctx context.Context, masterKey, slipID string, raw map[string]any) error {
	doc := without(raw, "slip_id", "master_slip_id")
	doc["slip_id"] = slipID
	doc["master_slip_id"] = masterKey
	status := toString(raw["status"])

	_, err := p.store.UpsertGeneratedSlip(ctx, slipID, func(g *models.GeneratedSlip, _ bool) {
		g.MasterSlipID = masterKey
		if status != "" {
			g.Status = status
		}
		g.Document = models.MergeDocument(g.Document, doc)
		g.TotalOdds = toFloat(g.Document["total_odds"])
		g.ConfidenceScore = toFloat(g.Document["confidence_score"])
	})
	if err != nil {
		return fmt.Errorf("upsert generated slip %s: %w", slipID, err)
	}
	return nil
}

// legRows turns the embedded legs of a generated slip into leg rows. A leg
// without an id is keyed by its slip and position.
func legRows(masterKey, slipID string, embedded any) []models.GeneratedSlipLeg {
	items, _ := asSlice(embedded)
	legs := make([]models.GeneratedSlipLeg, 0, len(items))
	for i, item := range items {
		leg, _ := asMap(item)
		legID := toString(leg["id"])
		if legID == "" {
			legID = fmt.Sprintf("%s_leg_%d", slipID, i)
		}
		doc := without(leg, "slip_id", "master_slip_id")
		doc["id"] = legID
		doc["slip_id"] = slipID
		doc["master_slip_id"] = masterKey

		row := models.GeneratedSlipLeg{
			LegID:        legID,
			SlipID:       slipID,
			MasterSlipID: masterKey,
			Position:     i,
			Document:     doc,
		}
		if id, ok := toExactInt(leg["match_id"]); ok {
			row.MatchID = &id
		}
		legs = append(legs, row)
	}
	return legs
}

// canonicalMatch builds the merge for the global registry entry. Team names
// prefer snake_case keys; a name missing from match_data keeps its stored value.
func canonicalMatch(data map[string]any) func(m *models.Match, exists bool) {
	extras := without(data, "id", "match_id", "home_team", "homeTeam", "away_team", "awayTeam")
	return func(m *models.Match, _ bool) {
		if v, ok := firstPresent(data, homeTeamAliases); ok {
			m.HomeTeam = teamName(v)
		}
		if v, ok := firstPresent(data, awayTeamAliases); ok {
			m.AwayTeam = teamName(v)
		}
		m.Attributes = models.MergeDocument(m.Attributes, extras)
	}
}

type masterSlipPatch struct {
	userID     *string
	stake      *decimal.Decimal
	totalOdds  *decimal.Decimal
	status     *string
	attributes map[string]any
}

// masterSlipFields pulls the provided mutable fields out of a master slip
// document. Fields that are absent stay untouched on update.
func masterSlipFields(raw map[string]any) (masterSlipPatch, error) {
	var patch masterSlipPatch
	if v, ok := raw["user_id"]; ok && v != nil {
		s := toString(v)
		patch.userID = &s
	}
	for field, dst := range map[string]**decimal.Decimal{"stake": &patch.stake, "total_odds": &patch.totalOdds} {
		v, ok := raw[field]
		if !ok || v == nil {
			continue
		}
		d, err := decimal.NewFromString(toString(v))
		if err != nil {
			return patch, apperrors.Validation("master_slip."+field, "must be numeric")
		}
		*dst = &d
	}
	if v, ok := raw["status"]; ok && v != nil {
		s := toString(v)
		patch.status = &s
	}
	patch.attributes = without(raw, masterSlipColumns...)
	return patch, nil
}

func (patch masterSlipPatch) apply(m *models.MasterSlip, _ bool) {
	if patch.userID != nil {
		m.UserID = *patch.userID
	}
	if patch.stake != nil {
		m.Stake = *patch.stake
	}
	if patch.totalOdds != nil {
		m.TotalOdds = *patch.totalOdds
	}
	if patch.status != nil {
		m.Status = *patch.status
	}
	if len(patch.attributes) > 0 {
		m.Attributes = models.MergeDocument(m.Attributes, patch.attributes)
	}
}
