package repository

import (
	"context"
	"errors"

	"slipsync/apperrors"
	"slipsync/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MasterSlipFilter struct {
	UserID string
	Status string
}

// UpsertMasterSlip inserts or updates the master slip keyed by masterSlipID.
// apply only sets the fields the caller was given; created_at is left alone.
func (s *Store) UpsertMasterSlip(ctx context.Context, masterSlipID string, apply func(m *models.MasterSlip, exists bool)) (*models.MasterSlip, error) {
	return upsertRow(ctx, s, func(m *models.MasterSlip, exists bool) {
		m.MasterSlipID = masterSlipID
		apply(m, exists)
		if m.Status == "" {
			m.Status = models.MasterSlipStatusPending
		}
	}, "master_slip_id = ?", masterSlipID)
}

func (s *Store) FindMasterSlip(ctx context.Context, masterSlipID string) (*models.MasterSlip, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var m models.MasterSlip
	err = db.Where("master_slip_id = ?", masterSlipID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Master slip", masterSlipID)
	}
	if err != nil {
		return nil, s.gw.Observe(err)
	}
	return &m, nil
}

func (s *Store) ListMasterSlips(ctx context.Context, f MasterSlipFilter, q ListQuery) ([]models.MasterSlip, int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	scope := db.Model(&models.MasterSlip{})
	if f.UserID != "" {
		scope = scope.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		scope = scope.Where("status = ?", f.Status)
	}

	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, s.gw.Observe(err)
	}

	var rows []models.MasterSlip
	if err := q.apply(scope.Session(&gorm.Session{})).Find(&rows).Error; err != nil {
		return nil, 0, s.gw.Observe(err)
	}
	return rows, total, nil
}

func (s *Store) CreateMasterSlip(ctx context.Context, m *models.MasterSlip) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if m.Status == "" {
		m.Status = models.MasterSlipStatusPending
	}

	err = db.Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict("master slip '%s' already exists", m.MasterSlipID)
	}
	return s.gw.Observe(err)
}

// UpdateMasterSlip changes an existing master slip under a row lock.
func (s *Store) UpdateMasterSlip(ctx context.Context, masterSlipID string, apply func(m *models.MasterSlip)) (*models.MasterSlip, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var m models.MasterSlip
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("master_slip_id = ?", masterSlipID).
			Take(&m).Error; err != nil {
			return err
		}
		apply(&m)
		return tx.Save(&m).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Master slip", masterSlipID)
	}
	if err != nil {
		return nil, s.gw.Observe(err)
	}
	return &m, nil
}

// IncrementSlipCount bumps slip_count without coordinating with sync, which
// never maintains it.
func (s *Store) IncrementSlipCount(ctx context.Context, masterSlipID string, n int) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = db.Model(&models.MasterSlip{}).
		Where("master_slip_id = ?", masterSlipID).
		UpdateColumn("slip_count", gorm.Expr("slip_count + ?", n)).Error
	return s.gw.Observe(err)
}
