package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"slipsync/apperrors"
	"slipsync/models"
	"slipsync/repository"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

var (
	MasterSlipSortFields    = []string{"created_at", "updated_at", "master_slip_id", "status", "stake", "total_odds"}
	GeneratedSlipSortFields = []string{"created_at", "updated_at", "slip_id", "status", "total_odds", "confidence_score"}
)

type SlipStore interface {
	CreateMasterSlip(ctx context.Context, m *models.MasterSlip) error
	FindMasterSlip(ctx context.Context, masterSlipID string) (*models.MasterSlip, error)
	ListMasterSlips(ctx context.Context, f repository.MasterSlipFilter, q repository.ListQuery) ([]models.MasterSlip, int64, error)
	UpdateMasterSlip(ctx context.Context, masterSlipID string, apply func(m *models.MasterSlip)) (*models.MasterSlip, error)
	IncrementSlipCount(ctx context.Context, masterSlipID string, n int) error
	ListGeneratedSlips(ctx context.Context, masterSlipID, status string, q repository.ListQuery) ([]models.GeneratedSlip, int64, error)
	InsertGeneratedSlips(ctx context.Context, slips []models.GeneratedSlip, legs []models.GeneratedSlipLeg) error
	FindGeneratedSlip(ctx context.Context, slipID string) (*models.GeneratedSlip, error)
	FindLegs(ctx context.Context, slipIDs []string) ([]models.GeneratedSlipLeg, error)
	UpdateGeneratedSlipStatus(ctx context.Context, slipID, status string) (*models.GeneratedSlip, error)
	DeleteSlipsByMaster(ctx context.Context, masterSlipID string) (repository.DeleteResult, error)
}

type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

func (p Page[T]) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(p.Total) / float64(p.Limit)))
}

type GeneratedSlipDetail struct {
	models.GeneratedSlip
	Legs []models.GeneratedSlipLeg `json:"legs"`
}

// SlipService backs the master slip and generated slip CRUD endpoints.
type SlipService struct {
	store  SlipStore
	ids    IDGenerator
	logger *slog.Logger
}

func NewSlipService(store SlipStore, ids IDGenerator, logger *slog.Logger) *SlipService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlipService{store: store, ids: ids, logger: logger.With("component", "slips")}
}

// NormalizeQuery clamps paging and checks sort_by against the allowed columns.
func NormalizeQuery(q repository.ListQuery, sortable []string) (repository.ListQuery, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}

	if q.SortBy == "" {
		q.SortBy = "created_at"
	}
	if !slices.Contains(sortable, q.SortBy) {
		return q, apperrors.Validation("sort_by", "must be one of "+strings.Join(sortable, ", "))
	}

	q.SortOrder = strings.ToLower(q.SortOrder)
	switch q.SortOrder {
	case "":
		q.SortOrder = "desc"
	case "asc", "desc":
	default:
		return q, apperrors.Validation("sort_order", "must be asc or desc")
	}
	return q, nil
}

func (s *SlipService) CreateMasterSlip(ctx context.Context, body map[string]any) (*models.MasterSlip, error) {
	id := toString(body["master_slip_id"])
	if id == "" {
		return nil, apperrors.Validation("master_slip_id", "is required")
	}
	patch, err := masterSlipFields(body)
	if err != nil {
		return nil, err
	}

	m := &models.MasterSlip{MasterSlipID: id}
	patch.apply(m, false)
	if err := s.store.CreateMasterSlip(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("master slip created", "master_slip_id", id)
	return m, nil
}

func (s *SlipService) GetMasterSlip(ctx context.Context, masterSlipID string) (*models.MasterSlip, error) {
	return s.store.FindMasterSlip(ctx, masterSlipID)
}

func (s *SlipService) ListMasterSlips(ctx context.Context, f repository.MasterSlipFilter, q repository.ListQuery) (Page[models.MasterSlip], error) {
	q, err := NormalizeQuery(q, MasterSlipSortFields)
	if err != nil {
		return Page[models.MasterSlip]{}, err
	}
	rows, total, err := s.store.ListMasterSlips(ctx, f, q)
	if err != nil {
		return Page[models.MasterSlip]{}, err
	}
	return Page[models.MasterSlip]{Items: rows, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// UpdateMasterSlip changes user_id, stake, total_odds, status and free-form
// attributes. The business key itself cannot change.
func (s *SlipService) UpdateMasterSlip(ctx context.Context, masterSlipID string, body map[string]any) (*models.MasterSlip, error) {
	if v := toString(body["master_slip_id"]); v != "" && v != masterSlipID {
		return nil, apperrors.Validation("master_slip_id", "cannot be changed")
	}
	patch, err := masterSlipFields(body)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateMasterSlip(ctx, masterSlipID, func(m *models.MasterSlip) {
		patch.apply(m, true)
	})
}

func (s *SlipService) ListGeneratedSlips(ctx context.Context, masterSlipID, status string, q repository.ListQuery) (Page[models.GeneratedSlip], error) {
	if status != "" && !models.ValidSlipStatus(status) {
		return Page[models.GeneratedSlip]{}, apperrors.Validation("status", "must be one of active, won, lost, void")
	}
	q, err := NormalizeQuery(q, GeneratedSlipSortFields)
	if err != nil {
		return Page[models.GeneratedSlip]{}, err
	}
	if _, err := s.store.FindMasterSlip(ctx, masterSlipID); err != nil {
		return Page[models.GeneratedSlip]{}, err
	}
	rows, total, err := s.store.ListGeneratedSlips(ctx, masterSlipID, status, q)
	if err != nil {
		return Page[models.GeneratedSlip]{}, err
	}
	return Page[models.GeneratedSlip]{Items: rows, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// CreateGeneratedSlips inserts a batch of new slips under an existing master
// slip and then bumps its slip_count. The increment is a separate write and is
// not coordinated with concurrent syncs.
func (s *SlipService) CreateGeneratedSlips(ctx context.Context, masterSlipID string, items []map[string]any) ([]models.GeneratedSlip, error) {
	if len(items) == 0 {
		return nil, apperrors.Validation("slips", "at least one slip is required")
	}
	master, err := s.store.FindMasterSlip(ctx, masterSlipID)
	if err != nil {
		return nil, err
	}

	slips := make([]models.GeneratedSlip, 0, len(items))
	var legs []models.GeneratedSlipLeg
	for i, raw := range items {
		status := toString(raw["status"])
		if status == "" {
			status = models.SlipStatusActive
		}
		if !models.ValidSlipStatus(status) {
			return nil, apperrors.Validation(fmt.Sprintf("slips[%d].status", i), "must be one of active, won, lost, void")
		}
		embedded, hasLegs := asSlice(raw["legs"])
		if raw["legs"] != nil && !hasLegs {
			return nil, apperrors.Validation(fmt.Sprintf("slips[%d].legs", i), "must be an array")
		}
		for j, leg := range embedded {
			if _, ok := asMap(leg); !ok {
				return nil, apperrors.Validation(fmt.Sprintf("slips[%d].legs[%d]", i, j), "must be an object")
			}
		}

		slipID := firstText(raw, syncSlipIDAliases)
		if slipID == "" {
			slipID = s.ids.New("")
		}
		doc := without(raw, "legs", "slip_id", "master_slip_id")
		doc["slip_id"] = slipID
		doc["master_slip_id"] = master.MasterSlipID
		doc["status"] = status
		if err := fillEstimatedReturn(doc, master.Stake); err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("slips[%d]", i), err.Error())
		}

		slips = append(slips, models.GeneratedSlip{
			SlipID:          slipID,
			MasterSlipID:    master.MasterSlipID,
			Status:          status,
			TotalOdds:       toFloat(doc["total_odds"]),
			ConfidenceScore: toFloat(doc["confidence_score"]),
			Document:        doc,
		})
		legs = append(legs, legRows(master.MasterSlipID, slipID, embedded)...)
	}

	if err := s.store.InsertGeneratedSlips(ctx, slips, legs); err != nil {
		return nil, err
	}
	if err := s.store.IncrementSlipCount(ctx, master.MasterSlipID, len(slips)); err != nil {
		s.logger.Error("failed to bump slip_count", "master_slip_id", master.MasterSlipID, "error", err)
	}
	return slips, nil
}

// fillEstimatedReturn sets stake (inherited from the master slip when absent)
// and, when no return alias is present, estimated_return = stake * total_odds
// rounded to cents.
func fillEstimatedReturn(doc map[string]any, masterStake decimal.Decimal) error {
	stake := masterStake
	if v, ok := doc["stake"]; ok && v != nil {
		d, err := decimal.NewFromString(toString(v))
		if err != nil {
			return errors.New("stake must be numeric")
		}
		stake = d
	} else {
		doc["stake"] = stake.InexactFloat64()
	}

	if _, ok := firstPresent(doc, estimatedReturnAliases); ok {
		return nil
	}
	v, ok := doc["total_odds"]
	if !ok || v == nil {
		return nil
	}
	odds, err := decimal.NewFromString(toString(v))
	if err != nil {
		return errors.New("total_odds must be numeric")
	}
	doc["estimated_return"] = stake.Mul(odds).Round(2).InexactFloat64()
	return nil
}

func (s *SlipService) GetGeneratedSlip(ctx context.Context, slipID string) (*GeneratedSlipDetail, error) {
	slip, err := s.store.FindGeneratedSlip(ctx, slipID)
	if err != nil {
		return nil, err
	}
	legs, err := s.store.FindLegs(ctx, []string{slip.SlipID})
	if err != nil {
		return nil, err
	}
	if legs == nil {
		legs = []models.GeneratedSlipLeg{}
	}
	return &GeneratedSlipDetail{GeneratedSlip: *slip, Legs: legs}, nil
}

func (s *SlipService) UpdateGeneratedSlipStatus(ctx context.Context, slipID, status string) (*models.GeneratedSlip, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidSlipStatus(status) {
		return nil, apperrors.Validation("status", "must be one of active, won, lost, void")
	}
	return s.store.UpdateGeneratedSlipStatus(ctx, slipID, status)
}

func (s *SlipService) DeleteSlipsByMaster(ctx context.Context, masterSlipID string) (repository.DeleteResult, error) {
	if _, err := s.store.FindMasterSlip(ctx, masterSlipID); err != nil {
		return repository.DeleteResult{}, err
	}
	res, err := s.store.DeleteSlipsByMaster(ctx, masterSlipID)
	if err != nil {
		return res, err
	}
	s.logger.Info("generated slips deleted", "master_slip_id", masterSlipID, "slips", res.Slips, "legs", res.Legs)
	return res, nil
}
