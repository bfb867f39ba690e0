package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SlipStatusActive = "active"
	SlipStatusWon    = "won"
	SlipStatusLost   = "lost"
	SlipStatusVoid   = "void"
)

var SlipStatuses = []string{SlipStatusActive, SlipStatusWon, SlipStatusLost, SlipStatusVoid}

func ValidSlipStatus(status string) bool {
	for _, s := range SlipStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// GeneratedSlip keeps the upstream document verbatim in Document. The scalar
// columns are copies used for lookups and sorting.
type GeneratedSlip struct {
	ID uint `gorm:"primaryKey" json:"-"`

	SlipID          string  `gorm:"uniqueIndex;size:128;not null" json:"slip_id"`
	MasterSlipID    string  `gorm:"index;size:64;not null" json:"master_slip_id"`
	Status          string  `gorm:"size:16;index;not null;default:active" json:"status"`
	TotalOdds       float64 `gorm:"index" json:"total_odds"`
	ConfidenceScore float64 `gorm:"index" json:"confidence_score"`

	Document datatypes.JSONMap `json:"document"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GeneratedSlip) TableName() string { return "generated_slips" }

type GeneratedSlipLeg struct {
	ID uint `gorm:"primaryKey" json:"-"`

	LegID        string `gorm:"uniqueIndex;size:160;not null" json:"id"`
	SlipID       string `gorm:"index;size:128;not null" json:"slip_id"`
	MasterSlipID string `gorm:"index;size:64" json:"master_slip_id"`
	Position     int    `json:"position"`
	MatchID      *int64 `gorm:"index" json:"match_id"`

	// Document holds match_id, market, selection, odds and the embedded match snapshot as received.
	Document datatypes.JSONMap `json:"document"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GeneratedSlipLeg) TableName() string { return "generated_slip_legs" }
