package repository

import (
	"context"

	"slipsync/models"
)

// UpsertOptimizedSlip writes an optimized slip keyed by (id, master_slip_id).
func (s *Store) UpsertOptimizedSlip(ctx context.Context, recordID string, masterSlipID int64, doc map[string]any) (*models.OptimizedSlip, error) {
	return upsertRow(ctx, s, func(o *models.OptimizedSlip, _ bool) {
		o.RecordID = recordID
		o.MasterSlipID = masterSlipID
		o.Document = models.MergeDocument(o.Document, doc)
	}, "record_id = ? AND master_slip_id = ?", recordID, masterSlipID)
}

func (s *Store) UpsertMasterSlipMatch(ctx context.Context, recordID string, apply func(m *models.MasterSlipMatch, exists bool)) (*models.MasterSlipMatch, error) {
	return upsertRow(ctx, s, func(m *models.MasterSlipMatch, exists bool) {
		m.RecordID = recordID
		apply(m, exists)
	}, "record_id = ?", recordID)
}

// MergeMatch upserts the canonical match and returns the stored result.
func (s *Store) MergeMatch(ctx context.Context, matchID int64, apply func(m *models.Match, exists bool)) (*models.Match, error) {
	return upsertRow(ctx, s, func(m *models.Match, exists bool) {
		m.MatchID = matchID
		apply(m, exists)
	}, "match_id = ?", matchID)
}

// FindMasterSlipMatches is the scoped tier of team-name resolution. Rows come
// back oldest first so later writes win when a caller folds them into a map.
func (s *Store) FindMasterSlipMatches(ctx context.Context, masterSlipID int64, matchIDs []int64) ([]models.MasterSlipMatch, error) {
	if len(matchIDs) == 0 {
		return nil, nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.MasterSlipMatch
	err = db.Where("master_slip_id = ? AND match_id IN ?", masterSlipID, matchIDs).
		Order("updated_at").Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, s.gw.Observe(err)
	}
	return rows, nil
}

func (s *Store) FindMatches(ctx context.Context, matchIDs []int64) ([]models.Match, error) {
	if len(matchIDs) == 0 {
		return nil, nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.Match
	if err := db.Where("match_id IN ?", matchIDs).Find(&rows).Error; err != nil {
		return nil, s.gw.Observe(err)
	}
	return rows, nil
}
