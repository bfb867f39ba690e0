package repository

import (
	"context"
	"errors"

	"slipsync/apperrors"
	"slipsync/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeleteResult struct {
	Slips int64 `json:"slips_deleted"`
	Legs  int64 `json:"legs_deleted"`
}

// UpsertGeneratedSlip inserts or merges the generated slip keyed by slipID.
func (s *Store) UpsertGeneratedSlip(ctx context.Context, slipID string, apply func(g *models.GeneratedSlip, exists bool)) (*models.GeneratedSlip, error) {
	return upsertRow(ctx, s, func(g *models.GeneratedSlip, exists bool) {
		g.SlipID = slipID
		apply(g, exists)
		if g.Status == "" {
			g.Status = models.SlipStatusActive
		}
	}, "slip_id = ?", slipID)
}

// UpsertLegs writes every leg in one statement, replacing legs that already
// exist under the same id.
func (s *Store) UpsertLegs(ctx context.Context, legs []models.GeneratedSlipLeg) error {
	if len(legs) == 0 {
		return nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "leg_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"slip_id", "master_slip_id", "position", "match_id", "document", "updated_at",
		}),
	}).Create(&legs).Error
	return s.gw.Observe(err)
}

func (s *Store) FindGeneratedSlip(ctx context.Context, slipID string) (*models.GeneratedSlip, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var g models.GeneratedSlip
	err = db.Where("slip_id = ?", slipID).Take(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Generated slip", slipID)
	}
	if err != nil {
		return nil, s.gw.Observe(err)
	}
	return &g, nil
}

// FindGeneratedSlipsByMaster returns every slip of a master slip in insertion order.
func (s *Store) FindGeneratedSlipsByMaster(ctx context.Context, masterSlipID string) ([]models.GeneratedSlip, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.GeneratedSlip
	if err := db.Where("master_slip_id = ?", masterSlipID).Order("id").Find(&rows).Error; err != nil {
		return nil, s.gw.Observe(err)
	}
	return rows, nil
}

func (s *Store) ListGeneratedSlips(ctx context.Context, masterSlipID, status string, q ListQuery) ([]models.GeneratedSlip, int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	scope := db.Model(&models.GeneratedSlip{}).Where("master_slip_id = ?", masterSlipID)
	if status != "" {
		scope = scope.Where("status = ?", status)
	}

	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, s.gw.Observe(err)
	}

	var rows []models.GeneratedSlip
	if err := q.apply(scope.Session(&gorm.Session{})).Find(&rows).Error; err != nil {
		return nil, 0, s.gw.Observe(err)
	}
	return rows, total, nil
}

func (s *Store) CountGeneratedSlips(ctx context.Context, masterSlipID string) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	err = db.Model(&models.GeneratedSlip{}).Where("master_slip_id = ?", masterSlipID).Count(&total).Error
	return total, s.gw.Observe(err)
}

// FindLegs loads the externally stored legs of the given slips ordered by
// slip and position.
func (s *Store) FindLegs(ctx context.Context, slipIDs []string) ([]models.GeneratedSlipLeg, error) {
	if len(slipIDs) == 0 {
		return nil, nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.GeneratedSlipLeg
	if err := db.Where("slip_id IN ?", slipIDs).Order("slip_id").Order("position").Find(&rows).Error; err != nil {
		return nil, s.gw.Observe(err)
	}
	return rows, nil
}

// InsertGeneratedSlips creates new slips and their legs. A slip_id that is
// already taken fails the whole batch with a ConflictError.
func (s *Store) InsertGeneratedSlips(ctx context.Context, slips []models.GeneratedSlip, legs []models.GeneratedSlipLeg) error {
	if len(slips) == 0 {
		return nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&slips).Error; err != nil {
			return err
		}
		if len(legs) > 0 {
			return tx.Create(&legs).Error
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict("generated slip or leg id already exists")
	}
	return s.gw.Observe(err)
}

// UpdateGeneratedSlipStatus sets the status column and the status field of
// the stored document.
func (s *Store) UpdateGeneratedSlipStatus(ctx context.Context, slipID, status string) (*models.GeneratedSlip, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var g models.GeneratedSlip
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("slip_id = ?", slipID).
			Take(&g).Error; err != nil {
			return err
		}
		g.Status = status
		g.Document = models.MergeDocument(g.Document, map[string]any{"status": status})
		return tx.Save(&g).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Generated slip", slipID)
	}
	if err != nil {
		return nil, s.gw.Observe(err)
	}
	return &g, nil
}

// DeleteSlipsByMaster removes legs, then slips, then resets slip_count. The
// steps are independent: a failure part way leaves the earlier deletes applied.
func (s *Store) DeleteSlipsByMaster(ctx context.Context, masterSlipID string) (DeleteResult, error) {
	var res DeleteResult
	db, err := s.conn(ctx)
	if err != nil {
		return res, err
	}

	legs := db.Where("master_slip_id = ?", masterSlipID).
		Or("slip_id IN (?)", db.Model(&models.GeneratedSlip{}).Select("slip_id").Where("master_slip_id = ?", masterSlipID)).
		Delete(&models.GeneratedSlipLeg{})
	if legs.Error != nil {
		return res, s.gw.Observe(legs.Error)
	}
	res.Legs = legs.RowsAffected

	slips := db.Where("master_slip_id = ?", masterSlipID).Delete(&models.GeneratedSlip{})
	if slips.Error != nil {
		return res, s.gw.Observe(slips.Error)
	}
	res.Slips = slips.RowsAffected

	err = db.Model(&models.MasterSlip{}).
		Where("master_slip_id = ?", masterSlipID).
		UpdateColumn("slip_count", 0).Error
	return res, s.gw.Observe(err)
}
